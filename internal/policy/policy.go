// Package policy implements the Strategy pattern for blocking rules.
// Each default block group is a GroupPolicy; relevance verdicts for AI mode
// come from pluggable RelevanceJudge strategies.
package policy

import (
	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

// GroupPolicy defines a named collection of hosts shipped as a default block group.
type GroupPolicy interface {
	// ID returns the group key used in settings (e.g., "SocialMedia").
	ID() string

	// Hosts returns the blocked hosts, lowercase.
	Hosts() []string

	// EnabledByDefault reports whether the group starts enabled on install.
	EnabledByDefault() bool
}

// ToBlockGroup converts a GroupPolicy to a domain.BlockGroup.
func ToBlockGroup(p GroupPolicy) domain.BlockGroup {
	hosts := p.Hosts()
	items := make([]domain.BlockItem, len(hosts))
	for i, h := range hosts {
		items[i] = domain.HostItem(h)
	}
	return domain.BlockGroup{
		Enabled: p.EnabledByDefault(),
		Items:   items,
	}
}

// staticGroup is a GroupPolicy backed by a fixed host list.
type staticGroup struct {
	id      string
	hosts   []string
	enabled bool
}

func (g *staticGroup) ID() string { return g.id }

func (g *staticGroup) Hosts() []string {
	out := make([]string, len(g.hosts))
	copy(out, g.hosts)
	return out
}

func (g *staticGroup) EnabledByDefault() bool { return g.enabled }

// NewStaticGroup creates a group policy from a fixed list.
func NewStaticGroup(id string, enabled bool, hosts ...string) GroupPolicy {
	return &staticGroup{id: id, hosts: hosts, enabled: enabled}
}

// Ensure staticGroup implements GroupPolicy.
var _ GroupPolicy = (*staticGroup)(nil)
