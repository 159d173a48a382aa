package matcher

import (
	"sort"
	"strings"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

// BlockSet is a deduplicated set of lowercase blocked hosts.
type BlockSet map[string]struct{}

// NewBlockSet builds a set from hosts, lowercasing each.
func NewBlockSet(hosts ...string) BlockSet {
	s := make(BlockSet, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			s[h] = struct{}{}
		}
	}
	return s
}

// Has reports whether host is in the set verbatim.
func (s BlockSet) Has(host string) bool {
	_, ok := s[host]
	return ok
}

// Sorted returns the hosts in lexical order.
func (s BlockSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// MergeBlockedDomains flattens every enabled group into one set.
// An item contributes only if both the group and the item are enabled.
func MergeBlockedDomains(groups map[string]domain.BlockGroup) BlockSet {
	set := make(BlockSet)
	for _, g := range groups {
		if !g.Enabled || g.Items == nil {
			continue
		}
		for _, item := range g.Items {
			if !item.IsPlain() && !item.IsEnabled() {
				continue
			}
			if host := strings.ToLower(item.Value()); host != "" {
				set[host] = struct{}{}
			}
		}
	}
	return set
}

// IsBlockedByDomain reports whether rawURL's host, or any parent domain of it,
// is in blocked. Uses FailOpen.
func IsBlockedByDomain(rawURL string, blocked BlockSet) bool {
	return defaultMatcher.IsBlockedByDomain(rawURL, blocked)
}

// IsBlockedByDomain reports whether rawURL's host, or any parent domain of it,
// is in blocked. An unparseable URL is blocked only under FailClosed.
func (m Matcher) IsBlockedByDomain(rawURL string, blocked BlockSet) bool {
	host, ok := NormalizeHost(rawURL)
	if !ok {
		return m.OnParseFailure == FailClosed
	}
	_, matched := BlockedBy(host, blocked)
	return matched
}

// BlockedBy returns the set entry that blocks host. Walking the dot-separated
// suffixes is equivalent to testing host == d || host ends with "."+d for every d.
func BlockedBy(host string, blocked BlockSet) (string, bool) {
	if len(blocked) == 0 {
		return "", false
	}
	if blocked.Has(host) {
		return host, true
	}
	for i := 0; i < len(host); i++ {
		if host[i] != '.' {
			continue
		}
		if suffix := host[i+1:]; blocked.Has(suffix) {
			return suffix, true
		}
	}
	return "", false
}
