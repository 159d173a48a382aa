package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
	"github.com/eliteGoblin/focusd/focusguard/internal/policy"
)

func newTestSettings(store *mockStore) *SettingsService {
	return NewSettingsService(store, policy.NewRegistry(), zap.NewNop())
}

func TestSettings_LoadEmptyStore(t *testing.T) {
	s := newTestSettings(newMockStore())

	got, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.ModeManual, got.FocusMode)
	assert.Empty(t, got.CurrentFocusTopic)
	assert.NotNil(t, got.AllowedDomains)
	assert.NotNil(t, got.BlockedGroups)
	assert.Equal(t, DefaultWarnMinutes, got.WarnMinutes)
	assert.Equal(t, DefaultHardBlockMinutes, got.HardBlockMinutes)
}

func TestSettings_LoadFallbacks(t *testing.T) {
	store := newMockStore()
	store.seed(KeyFocusMode, `"turbo"`)
	store.seed(KeyAllowedDomains, `{"not":"a list"}`)
	store.seed(KeyBlockedGroups, `null`)
	s := newTestSettings(store)

	got, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.ModeManual, got.FocusMode)
	assert.Empty(t, got.AllowedDomains)
	assert.NotNil(t, got.BlockedGroups)
}

func TestSettings_LoadMinutes(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`3`, 3},
		{`2.5`, 2},
		{`1`, 1},
		{`0.5`, DefaultWarnMinutes},
		{`0`, DefaultWarnMinutes},
		{`-4`, DefaultWarnMinutes},
		{`"7"`, DefaultWarnMinutes},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			store := newMockStore()
			store.seed(KeyWarnMinutes, tt.raw)

			got, err := newTestSettings(store).Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.WarnMinutes)
		})
	}
}

func TestSettings_LoadSkipsMalformedGroups(t *testing.T) {
	store := newMockStore()
	store.seed(KeyBlockedGroups, `{
		"Work":{"enabled":true,"items":["news.example.com",42,{"host":"b.example.com"}]},
		"Broken":{"enabled":true,"items":"oops"},
		"Odd":{"enabled":"yes","items":["shop.example.com"]},
		"Junk":17
	}`)
	s := newTestSettings(store)

	got, err := s.Load(context.Background())
	require.NoError(t, err)

	require.Contains(t, got.BlockedGroups, "Work")
	work := got.BlockedGroups["Work"]
	assert.True(t, work.Enabled)
	require.Len(t, work.Items, 2)
	assert.Equal(t, "news.example.com", work.Items[0].Value())
	assert.Equal(t, "b.example.com", work.Items[1].Value())

	assert.Empty(t, got.BlockedGroups["Broken"].Items)
	assert.False(t, got.BlockedGroups["Odd"].Enabled)
	assert.NotContains(t, got.BlockedGroups, "Junk")
}

func TestSettings_LoadSkipsMalformedAllowEntries(t *testing.T) {
	store := newMockStore()
	store.seed(KeyAllowedDomains, `["github.com",42,{"url":"https://go.dev/"},true]`)
	s := newTestSettings(store)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got.AllowedDomains, 2)
	assert.Equal(t, "github.com", got.AllowedDomains[0].Raw())
	assert.Equal(t, "https://go.dev/", got.AllowedDomains[1].Raw())
}

func TestSettings_UpdateKeepsGroupsBesideMalformedOne(t *testing.T) {
	store := newMockStore()
	store.seed(KeyBlockedGroups, `{
		"Work":{"enabled":false,"items":["news.example.com"]},
		"Broken":{"enabled":true,"items":"oops"}
	}`)
	s := newTestSettings(store)
	ctx := context.Background()

	require.NoError(t, s.SetGroupEnabled(ctx, "Work", true))
	require.NoError(t, s.AddGroupItem(ctx, "Games", "steam.com"))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.BlockedGroups, 3)
	work := got.BlockedGroups["Work"]
	assert.True(t, work.Enabled)
	require.Len(t, work.Items, 1)
	assert.Equal(t, "news.example.com", work.Items[0].Value())
}

func TestSettings_LoadStoreError(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("disk gone")

	_, err := newTestSettings(store).Load(context.Background())
	assert.Error(t, err)
}

func TestSettings_InstallWritesDefaults(t *testing.T) {
	store := newMockStore()
	s := newTestSettings(store)
	ctx := context.Background()

	result, err := s.Install(ctx)
	require.NoError(t, err)
	assert.Len(t, result.DefaultsWritten, 6)
	assert.Zero(t, result.MigratedDomains)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeManual, got.FocusMode)
	assert.Equal(t, DefaultFocusTopic, got.CurrentFocusTopic)
	assert.Len(t, got.BlockedGroups, 6)
	assert.Empty(t, store.raw(KeyLegacyBlockedDomains))
}

func TestSettings_InstallKeepsExisting(t *testing.T) {
	store := newMockStore()
	store.seed(KeyFocusMode, `"ai"`)
	store.seed(KeyCurrentFocusTopic, `"rust"`)
	s := newTestSettings(store)
	ctx := context.Background()

	result, err := s.Install(ctx)
	require.NoError(t, err)
	assert.NotContains(t, result.DefaultsWritten, KeyFocusMode)
	assert.NotContains(t, result.DefaultsWritten, KeyCurrentFocusTopic)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeAI, got.FocusMode)
	assert.Equal(t, "rust", got.CurrentFocusTopic)

	// Second install is a no-op.
	setsBefore := store.sets
	result, err = s.Install(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.DefaultsWritten)
	assert.Equal(t, setsBefore, store.sets)
}

func TestSettings_InstallMigratesLegacyDomains(t *testing.T) {
	store := newMockStore()
	store.seed(KeyLegacyBlockedDomains, `["Reddit.com","","x.com"]`)
	s := newTestSettings(store)
	ctx := context.Background()

	result, err := s.Install(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.MigratedDomains)
	assert.Equal(t, `[]`, store.raw(KeyLegacyBlockedDomains))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	custom, ok := got.BlockedGroups[policy.GroupCustom]
	require.True(t, ok)
	assert.True(t, custom.Enabled)
	require.Len(t, custom.Items, 2)
	assert.Equal(t, "reddit.com", custom.Items[0].Value())

	// Cleared legacy list migrates nothing the second time.
	result, err = s.Install(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.MigratedDomains)
}

func TestSettings_SetMode(t *testing.T) {
	store := newMockStore()
	s := newTestSettings(store)
	ctx := context.Background()

	require.NoError(t, s.SetMode(ctx, domain.ModeAI))
	assert.Equal(t, `"ai"`, store.raw(KeyFocusMode))

	assert.Error(t, s.SetMode(ctx, domain.FocusMode("turbo")))
	assert.Equal(t, `"ai"`, store.raw(KeyFocusMode))
}

func TestSettings_AllowEntries(t *testing.T) {
	store := newMockStore()
	s := newTestSettings(store)
	ctx := context.Background()

	require.NoError(t, s.AddAllowEntry(ctx, "docs.google.com"))
	require.NoError(t, s.AddAllowEntry(ctx, " https://www.youtube.com/watch?v=abc "))
	require.NoError(t, s.AddAllowEntry(ctx, "docs.google.com"))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.AllowedDomains, 2)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", got.AllowedDomains[0].Raw())

	require.NoError(t, s.RemoveAllowEntry(ctx, "docs.google.com"))
	assert.Error(t, s.RemoveAllowEntry(ctx, "docs.google.com"))
	assert.Error(t, s.AddAllowEntry(ctx, "  "))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.AllowedDomains, 1)
}

func TestSettings_Groups(t *testing.T) {
	store := newMockStore()
	s := newTestSettings(store)
	ctx := context.Background()
	_, err := s.Install(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SetGroupEnabled(ctx, policy.GroupSocialMedia, true))
	assert.Error(t, s.SetGroupEnabled(ctx, "Nope", true))

	require.NoError(t, s.AddGroupItem(ctx, "Games", "Steam.com"))
	require.NoError(t, s.AddGroupItem(ctx, "Games", "steam.com"))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.BlockedGroups[policy.GroupSocialMedia].Enabled)
	games := got.BlockedGroups["Games"]
	assert.True(t, games.Enabled)
	require.Len(t, games.Items, 1)
	assert.Equal(t, "steam.com", games.Items[0].Value())
}

func TestSettings_SetEscalation(t *testing.T) {
	store := newMockStore()
	s := newTestSettings(store)
	ctx := context.Background()

	require.NoError(t, s.SetEscalation(ctx, 1, 3))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.WarnMinutes)
	assert.Equal(t, 3, got.HardBlockMinutes)

	assert.Error(t, s.SetEscalation(ctx, 0, 3))
}

func TestSettings_WriteError(t *testing.T) {
	store := newMockStore()
	store.setErr = errors.New("read-only")

	err := newTestSettings(store).SetTopic(context.Background(), "x")
	assert.Error(t, err)
}

func TestSettings_ResetGroup(t *testing.T) {
	store := newMockStore()
	s := newTestSettings(store)
	ctx := context.Background()
	_, err := s.Install(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SetGroupEnabled(ctx, policy.GroupNews, true))
	require.NoError(t, s.AddGroupItem(ctx, policy.GroupNews, "local.example.com"))

	require.NoError(t, s.ResetGroup(ctx, policy.GroupNews))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	news := got.BlockedGroups[policy.GroupNews]
	assert.True(t, news.Enabled, "reset keeps the enabled state")
	assert.Equal(t, policy.DefaultBlockedGroups()[policy.GroupNews].Items, news.Items)

	assert.Error(t, s.ResetGroup(ctx, "Games"))
}
