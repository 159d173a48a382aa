package matcher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

func TestIsBlockedByDomain(t *testing.T) {
	blocked := NewBlockSet("facebook.com", "News.Example.com")

	tests := []struct {
		url  string
		want bool
	}{
		{url: "https://facebook.com", want: true},
		{url: "https://www.facebook.com/feed", want: true},
		{url: "https://m.facebook.com", want: true},
		{url: "https://a.b.facebook.com", want: true},
		{url: "https://notfacebook.com", want: false},
		{url: "https://facebook.com.evil.io", want: false},
		{url: "https://news.example.com/a", want: true},
		{url: "https://shop.example.com", want: false},
		{url: "https://example.com", want: false},
		{url: "not a url", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlockedByDomain(tt.url, blocked))
		})
	}
}

func TestIsBlockedByDomain_ParseFailurePolicy(t *testing.T) {
	blocked := NewBlockSet("facebook.com")

	assert.False(t, New(FailOpen).IsBlockedByDomain("::bad", blocked))
	assert.True(t, New(FailClosed).IsBlockedByDomain("::bad", blocked))

	// Policy only affects parse failures.
	assert.False(t, New(FailClosed).IsBlockedByDomain("https://example.com", blocked))
	assert.False(t, New(FailClosed).IsAllowedURL("::bad", entries("example.com")))
}

func TestParseParseFailurePolicy(t *testing.T) {
	p, ok := ParseParseFailurePolicy("fail-closed")
	require.True(t, ok)
	assert.Equal(t, FailClosed, p)

	p, ok = ParseParseFailurePolicy("")
	require.True(t, ok)
	assert.Equal(t, FailOpen, p)

	_, ok = ParseParseFailurePolicy("sometimes")
	assert.False(t, ok)
}

// blockedBySpecDefinition is the literal host == d || host ends with "."+d scan.
func blockedBySpecDefinition(host string, set BlockSet) bool {
	for d := range set {
		if hostMatches(host, d) {
			return true
		}
	}
	return false
}

func TestBlockedBy_EquivalentToSuffixScan(t *testing.T) {
	set := NewBlockSet("a.com", "b.a.com", "co.uk", "x")
	hosts := []string{"a.com", "b.a.com", "c.b.a.com", "aa.com", "bbc.co.uk", "co.uk", "uk", "x", "y.x", "xx", "", "."}

	for _, h := range hosts {
		_, got := BlockedBy(h, set)
		assert.Equal(t, blockedBySpecDefinition(h, set), got, h)
	}
}

func mustGroups(t *testing.T, raw string) map[string]domain.BlockGroup {
	t.Helper()
	var groups map[string]domain.BlockGroup
	require.NoError(t, json.Unmarshal([]byte(raw), &groups))
	return groups
}

func TestMergeBlockedDomains(t *testing.T) {
	tests := []struct {
		name   string
		groups string
		want   []string
	}{
		{
			name:   "disabled group contributes nothing",
			groups: `{"Social":{"enabled":false,"items":["facebook.com",{"host":"x.com","enabled":true}]}}`,
			want:   []string{},
		},
		{
			name:   "item disabled inside enabled group",
			groups: `{"Social":{"enabled":true,"items":[{"host":"x.com","enabled":false},"reddit.com"]}}`,
			want:   []string{"reddit.com"},
		},
		{
			name:   "item enabled omitted defaults to true",
			groups: `{"Social":{"enabled":true,"items":[{"host":"X.com"}]}}`,
			want:   []string{"x.com"},
		},
		{
			name:   "url used when host missing",
			groups: `{"Custom":{"enabled":true,"items":[{"url":"Example.org"}]}}`,
			want:   []string{"example.org"},
		},
		{
			name:   "union and dedupe across groups",
			groups: `{"A":{"enabled":true,"items":["a.com","B.com"]},"B":{"enabled":true,"items":["b.com","c.com"]}}`,
			want:   []string{"a.com", "b.com", "c.com"},
		},
		{
			name:   "missing items",
			groups: `{"A":{"enabled":true}}`,
			want:   []string{},
		},
		{
			name:   "empty values skipped",
			groups: `{"A":{"enabled":true,"items":["",{"name":"nothing"},null]}}`,
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeBlockedDomains(mustGroups(t, tt.groups))
			assert.Equal(t, tt.want, got.Sorted())
		})
	}
}

func TestMergeBlockedDomains_Idempotent(t *testing.T) {
	groups := mustGroups(t, `{"A":{"enabled":true,"items":["a.com","b.com"]},"B":{"enabled":true,"items":["b.com"]}}`)

	first := MergeBlockedDomains(groups)
	second := MergeBlockedDomains(groups)
	assert.Equal(t, first, second)
	assert.Equal(t, first.Sorted(), MergeBlockedDomains(groups).Sorted())
}

func TestMergeBlockedDomains_NilGroups(t *testing.T) {
	assert.Empty(t, MergeBlockedDomains(nil))
}
