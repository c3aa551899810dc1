package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/semroute/semroute/internal/domain/fault"
)

// aliasPattern allows alphanumerics, spaces, hyphens, and underscores.
var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)

// Validate checks the configuration using struct tags plus the
// cross-field rules the tags cannot express (transport-dependent
// requirements, alias syntax).
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	for id, u := range c.MCPServers {
		if err := validateUpstream(id, u); err != nil {
			return err
		}
	}

	return nil
}

// validateUpstream enforces per-upstream rules: command for stdio, url
// for sse/http, and conforming aliases.
func validateUpstream(id string, u UpstreamConfig) error {
	switch u.Transport {
	case TransportStdio:
		if u.Command == "" {
			return describeUpstream(id, "command is required for stdio transport")
		}
	case TransportSSE, TransportHTTP:
		if u.URL == "" {
			return describeUpstream(id, fmt.Sprintf("url is required for %s transport", u.Transport))
		}
	default:
		return describeUpstream(id, fmt.Sprintf("transport must be %q, %q, or %q", TransportStdio, TransportSSE, TransportHTTP))
	}

	for _, alias := range u.Aliases {
		if alias == "" {
			return describeUpstream(id, "alias cannot be empty")
		}
		if !aliasPattern.MatchString(alias) {
			return describeUpstream(id, fmt.Sprintf(
				"invalid alias %q: aliases must contain only alphanumeric characters, spaces, hyphens, and underscores", alias))
		}
	}

	return nil
}

// formatValidationErrors converts validator errors into one descriptive
// configuration fault.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fault.Configuration("Invalid configuration: %v", err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatFieldError(e))
	}
	return fault.Configuration("Invalid configuration: %s", strings.Join(messages, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s entry", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be positive", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
