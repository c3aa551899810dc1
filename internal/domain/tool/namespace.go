package tool

import (
	"strings"

	"github.com/semroute/semroute/internal/domain/fault"
)

// NamespacePrefix returns the prefix under which an upstream's tools are
// published: the semantic prefix when configured, else the canonical id.
func NamespacePrefix(upstreamID, semanticPrefix string) string {
	if semanticPrefix != "" {
		return semanticPrefix
	}
	return upstreamID
}

// GenerateNamespace composes the globally unique tool name
// "<prefix>.<original name>".
func GenerateNamespace(upstreamID, originalName, semanticPrefix string) string {
	return NamespacePrefix(upstreamID, semanticPrefix) + "." + originalName
}

// ParseNamespace splits a namespaced tool name at the first dot. Tool
// names may themselves contain dots, so only the first separates the
// prefix. The prefix must trim to something non-empty; the remainder must
// be non-empty and not consist solely of dots and whitespace.
func ParseNamespace(namespacedName string) (prefix, originalName string, err error) {
	idx := strings.IndexByte(namespacedName, '.')
	if idx < 0 {
		return "", "", malformedName(namespacedName)
	}

	prefix = namespacedName[:idx]
	originalName = namespacedName[idx+1:]

	if strings.TrimSpace(prefix) == "" {
		return "", "", malformedName(namespacedName)
	}
	rest := strings.TrimSpace(originalName)
	if rest == "" || strings.TrimSpace(strings.ReplaceAll(rest, ".", "")) == "" {
		return "", "", malformedName(namespacedName)
	}

	return prefix, originalName, nil
}

func malformedName(name string) error {
	return fault.Validation("Tool name must be namespaced with format 'prefix.toolname', got: '%s'", name)
}
