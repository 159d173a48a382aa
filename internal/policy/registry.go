package policy

import (
	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

// Registry holds the default block group policies.
type Registry struct {
	groups map[string]GroupPolicy
}

// NewRegistry creates a registry with all default groups.
func NewRegistry() *Registry {
	return NewRegistryWithGroups(
		NewAIGroup(),
		NewSocialMediaGroup(),
		NewEntertainmentGroup(),
		NewNewsGroup(),
		NewShoppingGroup(),
		NewEmailGroup(),
	)
}

// NewRegistryWithGroups creates a registry with custom groups (for testing).
func NewRegistryWithGroups(groups ...GroupPolicy) *Registry {
	r := &Registry{
		groups: make(map[string]GroupPolicy),
	}
	for _, g := range groups {
		r.Register(g)
	}
	return r
}

// Register adds a group to the registry, replacing any with the same ID.
func (r *Registry) Register(g GroupPolicy) {
	r.groups[g.ID()] = g
}

// Get returns a group by ID.
func (r *Registry) Get(id string) (GroupPolicy, bool) {
	g, ok := r.groups[id]
	return g, ok
}

// BlockGroups converts every registered group to settings form.
func (r *Registry) BlockGroups() map[string]domain.BlockGroup {
	out := make(map[string]domain.BlockGroup, len(r.groups))
	for id, g := range r.groups {
		out[id] = ToBlockGroup(g)
	}
	return out
}

// DefaultBlockedGroups returns the groups written on first install.
func DefaultBlockedGroups() map[string]domain.BlockGroup {
	return NewRegistry().BlockGroups()
}
