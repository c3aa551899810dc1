package service

import (
	"sort"
	"strings"

	"github.com/semroute/semroute/internal/config"
	"github.com/semroute/semroute/internal/domain/fault"
)

// AliasResolver maps operator-supplied aliases to canonical upstream ids.
// Canonical ids match case-sensitively and always win over aliases;
// aliases resolve case-insensitively. Duplicate aliases are accepted with
// last-registered-wins semantics, registration order being the sorted
// canonical-id order so resolution is deterministic for a fixed config.
type AliasResolver struct {
	canonical map[string]struct{}
	aliases   map[string]string
}

// NewAliasResolver builds the resolver from the router configuration.
func NewAliasResolver(cfg *config.Config) *AliasResolver {
	r := &AliasResolver{
		canonical: make(map[string]struct{}, len(cfg.MCPServers)),
		aliases:   make(map[string]string),
	}

	ids := make([]string, 0, len(cfg.MCPServers))
	for id := range cfg.MCPServers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		r.canonical[id] = struct{}{}
		for _, alias := range cfg.MCPServers[id].Aliases {
			r.aliases[strings.ToLower(alias)] = id
		}
	}
	return r
}

// Resolve maps a user-provided name to a canonical upstream id, or fails
// with a message listing everything that would have resolved.
func (r *AliasResolver) Resolve(name string) (string, error) {
	if _, ok := r.canonical[name]; ok {
		return name, nil
	}
	if id, ok := r.aliases[strings.ToLower(name)]; ok {
		return id, nil
	}

	aliases := make([]string, 0, len(r.aliases))
	for alias := range r.aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	upstreams := make([]string, 0, len(r.canonical))
	for id := range r.canonical {
		upstreams = append(upstreams, id)
	}
	sort.Strings(upstreams)

	msg := "Unknown upstream or alias: '" + name + "'. "
	if len(aliases) > 0 {
		msg += "Available aliases: " + strings.Join(aliases, ", ") + ". "
	}
	msg += "Available upstreams: " + strings.Join(upstreams, ", ")
	return "", fault.Validation("%s", msg)
}
