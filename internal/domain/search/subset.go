package search

import (
	"sort"

	"github.com/semroute/semroute/internal/domain/tool"
)

// DefaultSubset selects up to maxTools tools with coverage across
// upstreams, so a single tool-heavy upstream cannot dominate the default
// tools/list response.
//
// Strategy: group by upstream, sort each group by original name, take a
// proportional base share from each group in sorted-upstream order, then
// round-robin the remainder. The result is deterministic for a given
// multiset of tools.
func DefaultSubset(tools []*tool.Metadata, maxTools int) []*tool.Metadata {
	if len(tools) == 0 || maxTools <= 0 {
		return nil
	}

	byUpstream := make(map[string][]*tool.Metadata)
	for _, t := range tools {
		byUpstream[t.UpstreamID] = append(byUpstream[t.UpstreamID], t)
	}

	upstreamIDs := make([]string, 0, len(byUpstream))
	for id, group := range byUpstream {
		sort.Slice(group, func(i, j int) bool {
			if group[i].OriginalName != group[j].OriginalName {
				return group[i].OriginalName < group[j].OriginalName
			}
			return group[i].NamespacedName < group[j].NamespacedName
		})
		upstreamIDs = append(upstreamIDs, id)
	}
	sort.Strings(upstreamIDs)

	base := maxTools / len(upstreamIDs)
	if base < 1 {
		base = 1
	}

	selected := make([]*tool.Metadata, 0, maxTools)
	taken := make(map[string]int, len(upstreamIDs))
	for _, id := range upstreamIDs {
		group := byUpstream[id]
		n := base
		if n > len(group) {
			n = len(group)
		}
		selected = append(selected, group[:n]...)
		taken[id] = n
	}

	// Round-robin the remaining slots until full or every group is drained.
	for len(selected) < maxTools {
		added := false
		for _, id := range upstreamIDs {
			if len(selected) >= maxTools {
				break
			}
			group := byUpstream[id]
			if taken[id] < len(group) {
				selected = append(selected, group[taken[id]])
				taken[id]++
				added = true
			}
		}
		if !added {
			break
		}
	}

	if len(selected) > maxTools {
		selected = selected[:maxTools]
	}
	return selected
}
