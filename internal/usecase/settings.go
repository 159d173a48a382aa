// Package usecase contains application business logic.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
	"github.com/eliteGoblin/focusd/focusguard/internal/policy"
)

// Storage keys in the durable area.
const (
	KeyFocusMode         = "focusMode"
	KeyCurrentFocusTopic = "currentFocusTopic"
	KeyAllowedDomains    = "allowedDomains"
	KeyBlockedGroups     = "blockedGroups"
	KeyWarnMinutes       = "warnMinutes"
	KeyHardBlockMinutes  = "hardBlockMinutes"

	// KeyLegacyBlockedDomains is the pre-groups flat block list.
	KeyLegacyBlockedDomains = "blockedDomains"
)

// Defaults written on install.
const (
	DefaultFocusTopic       = "Focus"
	DefaultWarnMinutes      = 5
	DefaultHardBlockMinutes = 5
)

var settingsKeys = []string{
	KeyFocusMode,
	KeyCurrentFocusTopic,
	KeyAllowedDomains,
	KeyBlockedGroups,
	KeyWarnMinutes,
	KeyHardBlockMinutes,
}

// InstallResult reports what Install changed.
type InstallResult struct {
	DefaultsWritten []string
	MigratedDomains int
}

// SettingsService reads and updates focus settings in the durable store.
// Updates are serialized; reads are not.
type SettingsService struct {
	store    domain.KeyValueStore
	registry *policy.Registry
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewSettingsService creates a settings service over store.
func NewSettingsService(store domain.KeyValueStore, registry *policy.Registry, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// Load returns the current settings. Absent or malformed values fall back to
// defaults or empty collections; only a store failure is an error.
func (s *SettingsService) Load(ctx context.Context) (domain.Settings, error) {
	raw, err := s.store.Get(ctx, domain.AreaDurable, settingsKeys...)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	settings := domain.Settings{
		FocusMode:         domain.ModeManual,
		CurrentFocusTopic: "",
		AllowedDomains:    []domain.AllowEntry{},
		BlockedGroups:     map[string]domain.BlockGroup{},
		WarnMinutes:       DefaultWarnMinutes,
		HardBlockMinutes:  DefaultHardBlockMinutes,
	}

	var mode domain.FocusMode
	if s.decode(raw, KeyFocusMode, &mode) {
		if mode.Valid() {
			settings.FocusMode = mode
		} else {
			s.logger.Warn("unknown focus mode, using manual", zap.String("mode", string(mode)))
		}
	}
	s.decode(raw, KeyCurrentFocusTopic, &settings.CurrentFocusTopic)

	settings.AllowedDomains = s.decodeAllowList(raw)
	if groups, ok := s.decodeGroups(raw); ok {
		settings.BlockedGroups = groups
	}

	settings.WarnMinutes = s.decodeMinutes(raw, KeyWarnMinutes, DefaultWarnMinutes)
	settings.HardBlockMinutes = s.decodeMinutes(raw, KeyHardBlockMinutes, DefaultHardBlockMinutes)

	return settings, nil
}

// decode unmarshals raw[key] into v. Reports false if absent or malformed.
func (s *SettingsService) decode(raw map[string]json.RawMessage, key string, v any) bool {
	data, ok := raw[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("malformed setting, using default",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	return true
}

// decodeAllowList keeps every entry that decodes; the rest are skipped.
func (s *SettingsService) decodeAllowList(raw map[string]json.RawMessage) []domain.AllowEntry {
	out := []domain.AllowEntry{}
	var entries []json.RawMessage
	if !s.decode(raw, KeyAllowedDomains, &entries) {
		return out
	}
	for i, data := range entries {
		var e domain.AllowEntry
		if err := json.Unmarshal(data, &e); err != nil {
			s.logger.Warn("skipping malformed allow entry",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out
}

// decodeGroups decodes each group on its own so one malformed group or item
// never hides the others. Reports false if the key is absent or not an object.
func (s *SettingsService) decodeGroups(raw map[string]json.RawMessage) (map[string]domain.BlockGroup, bool) {
	var groups map[string]json.RawMessage
	if !s.decode(raw, KeyBlockedGroups, &groups) || groups == nil {
		return nil, false
	}
	out := make(map[string]domain.BlockGroup, len(groups))
	for name, data := range groups {
		g, dropped, err := domain.DecodeBlockGroup(data)
		if err != nil {
			s.logger.Warn("skipping malformed block group",
				zap.String("group", name),
				zap.Error(err))
			continue
		}
		if dropped > 0 {
			s.logger.Warn("skipped malformed block group items",
				zap.String("group", name),
				zap.Int("dropped", dropped))
		}
		out[name] = g
	}
	return out, true
}

// decodeMinutes accepts whole or fractional minutes of at least one.
func (s *SettingsService) decodeMinutes(raw map[string]json.RawMessage, key string, def int) int {
	var f float64
	if !s.decode(raw, key, &f) || f < 1 {
		return def
	}
	return int(f)
}

// Install writes defaults for keys not yet present, then folds any legacy
// blockedDomains list into the Custom group and clears it. Safe to repeat.
func (s *SettingsService) Install(ctx context.Context) (InstallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result InstallResult
	keys := append(append([]string{}, settingsKeys...), KeyLegacyBlockedDomains)
	existing, err := s.store.Get(ctx, domain.AreaDurable, keys...)
	if err != nil {
		return result, fmt.Errorf("failed to read settings: %w", err)
	}

	defaults := map[string]any{
		KeyFocusMode:         domain.ModeManual,
		KeyCurrentFocusTopic: DefaultFocusTopic,
		KeyAllowedDomains:    []domain.AllowEntry{},
		KeyBlockedGroups:     s.registry.BlockGroups(),
		KeyWarnMinutes:       DefaultWarnMinutes,
		KeyHardBlockMinutes:  DefaultHardBlockMinutes,
	}
	toSet := make(map[string]any)
	for _, k := range settingsKeys {
		if _, ok := existing[k]; !ok {
			toSet[k] = defaults[k]
			result.DefaultsWritten = append(result.DefaultsWritten, k)
		}
	}
	if len(toSet) > 0 {
		if err := s.store.Set(ctx, domain.AreaDurable, toSet); err != nil {
			return result, fmt.Errorf("failed to write defaults: %w", err)
		}
	}

	var legacy []string
	if !s.decode(existing, KeyLegacyBlockedDomains, &legacy) || len(legacy) == 0 {
		return result, nil
	}

	groups := s.registry.BlockGroups()
	if current, ok := s.decodeGroups(existing); ok {
		groups = current
	}
	custom, ok := groups[policy.GroupCustom]
	if !ok {
		custom = domain.BlockGroup{Enabled: true, Items: []domain.BlockItem{}}
	}
	for _, d := range legacy {
		if d == "" {
			continue
		}
		custom.Items = append(custom.Items, domain.HostItem(strings.ToLower(d)))
		result.MigratedDomains++
	}
	groups[policy.GroupCustom] = custom

	if err := s.store.Set(ctx, domain.AreaDurable, map[string]any{
		KeyBlockedGroups:        groups,
		KeyLegacyBlockedDomains: []string{},
	}); err != nil {
		return result, fmt.Errorf("failed to migrate legacy domains: %w", err)
	}

	s.logger.Info("migrated legacy blocked domains",
		zap.Int("count", result.MigratedDomains))
	return result, nil
}

// update loads settings, applies fn, and writes back the keys fn reports.
func (s *SettingsService) update(ctx context.Context, fn func(*domain.Settings) (map[string]any, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.Load(ctx)
	if err != nil {
		return err
	}
	changes, err := fn(&settings)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	if err := s.store.Set(ctx, domain.AreaDurable, changes); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// SetMode switches between manual and AI mode.
func (s *SettingsService) SetMode(ctx context.Context, mode domain.FocusMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid focus mode: %q", mode)
	}
	return s.update(ctx, func(*domain.Settings) (map[string]any, error) {
		return map[string]any{KeyFocusMode: mode}, nil
	})
}

// SetTopic sets the AI-mode focus topic.
func (s *SettingsService) SetTopic(ctx context.Context, topic string) error {
	return s.update(ctx, func(*domain.Settings) (map[string]any, error) {
		return map[string]any{KeyCurrentFocusTopic: strings.TrimSpace(topic)}, nil
	})
}

// AddAllowEntry prepends entry to the allow list unless already present.
func (s *SettingsService) AddAllowEntry(ctx context.Context, entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return fmt.Errorf("allow entry is empty")
	}
	return s.update(ctx, func(st *domain.Settings) (map[string]any, error) {
		for _, e := range st.AllowedDomains {
			if e.Raw() == entry {
				return nil, nil
			}
		}
		next := append([]domain.AllowEntry{domain.NewAllowEntry(entry)}, st.AllowedDomains...)
		return map[string]any{KeyAllowedDomains: next}, nil
	})
}

// RemoveAllowEntry removes every entry whose value equals entry.
func (s *SettingsService) RemoveAllowEntry(ctx context.Context, entry string) error {
	entry = strings.TrimSpace(entry)
	return s.update(ctx, func(st *domain.Settings) (map[string]any, error) {
		next := make([]domain.AllowEntry, 0, len(st.AllowedDomains))
		for _, e := range st.AllowedDomains {
			if strings.TrimSpace(e.Raw()) != entry {
				next = append(next, e)
			}
		}
		if len(next) == len(st.AllowedDomains) {
			return nil, fmt.Errorf("allow entry %q not found", entry)
		}
		return map[string]any{KeyAllowedDomains: next}, nil
	})
}

// SetGroupEnabled toggles a block group.
func (s *SettingsService) SetGroupEnabled(ctx context.Context, name string, enabled bool) error {
	return s.update(ctx, func(st *domain.Settings) (map[string]any, error) {
		g, ok := st.BlockedGroups[name]
		if !ok {
			return nil, fmt.Errorf("block group %q not found", name)
		}
		g.Enabled = enabled
		st.BlockedGroups[name] = g
		return map[string]any{KeyBlockedGroups: st.BlockedGroups}, nil
	})
}

// AddGroupItem appends host to a group, creating an enabled group if needed.
func (s *SettingsService) AddGroupItem(ctx context.Context, name, host string) error {
	host = strings.ToLower(strings.TrimSpace(host))
	if name == "" || host == "" {
		return fmt.Errorf("group name and host are required")
	}
	return s.update(ctx, func(st *domain.Settings) (map[string]any, error) {
		g, ok := st.BlockedGroups[name]
		if !ok {
			g = domain.BlockGroup{Enabled: true}
		}
		for _, item := range g.Items {
			if strings.ToLower(item.Value()) == host {
				return nil, nil
			}
		}
		g.Items = append(g.Items, domain.HostItem(host))
		st.BlockedGroups[name] = g
		return map[string]any{KeyBlockedGroups: st.BlockedGroups}, nil
	})
}

// ResetGroup restores a default group's hosts, keeping its enabled state.
func (s *SettingsService) ResetGroup(ctx context.Context, name string) error {
	def, ok := s.registry.Get(name)
	if !ok {
		return fmt.Errorf("%q is not a default block group", name)
	}
	return s.update(ctx, func(st *domain.Settings) (map[string]any, error) {
		g := policy.ToBlockGroup(def)
		if current, ok := st.BlockedGroups[name]; ok {
			g.Enabled = current.Enabled
		}
		st.BlockedGroups[name] = g
		return map[string]any{KeyBlockedGroups: st.BlockedGroups}, nil
	})
}

// SetEscalation sets the warn and hard-block delays in minutes.
func (s *SettingsService) SetEscalation(ctx context.Context, warnMinutes, hardBlockMinutes int) error {
	if warnMinutes <= 0 || hardBlockMinutes <= 0 {
		return fmt.Errorf("escalation delays must be positive, got warn=%d hard=%d", warnMinutes, hardBlockMinutes)
	}
	return s.update(ctx, func(*domain.Settings) (map[string]any, error) {
		return map[string]any{
			KeyWarnMinutes:      warnMinutes,
			KeyHardBlockMinutes: hardBlockMinutes,
		}, nil
	})
}
