package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Area partitions the key-value store.
type Area string

const (
	// AreaDurable persists indefinitely.
	AreaDurable Area = "durable"
	// AreaSession is cleared when the browser session ends.
	AreaSession Area = "session"
)

// KeyValueStore provides persistent JSON key-value state.
// Implementation: SQLCipher database, or in-memory for tests.
type KeyValueStore interface {
	// Get returns the raw JSON values for the keys that exist.
	// Missing keys are absent from the result, never an error.
	Get(ctx context.Context, area Area, keys ...string) (map[string]json.RawMessage, error)

	// Set writes every key in values, marshaling each to JSON.
	Set(ctx context.Context, area Area, values map[string]any) error

	// Delete removes keys.
	Delete(ctx context.Context, area Area, keys ...string) error
}

// SessionBlockList records URLs blocked for the rest of the browser session.
// Add must be atomic: concurrent adds of different URLs never lose an entry.
type SessionBlockList interface {
	// Add marks url as session-blocked. Idempotent.
	Add(ctx context.Context, url string) error

	// Has reports whether the exact url is session-blocked.
	Has(ctx context.Context, url string) (bool, error)

	// List returns all session-blocked URLs.
	List(ctx context.Context) ([]string, error)
}

// Scheduler runs one-shot delayed callbacks keyed by AlarmKey.
type Scheduler interface {
	// Create schedules key to fire after delay.
	Create(ctx context.Context, key AlarmKey, delay time.Duration) error

	// Clear cancels a pending alarm. Clearing an absent alarm is not an error.
	Clear(ctx context.Context, key AlarmKey) error
}

// TabController reads and redirects browser tabs.
type TabController interface {
	// Get returns the tab, or an error if it no longer exists.
	Get(ctx context.Context, tabID int) (*Tab, error)

	// Redirect navigates the tab to url.
	Redirect(ctx context.Context, tabID int, url string) error
}

// Notifier shows user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ContentClassifier labels a page as work or entertainment.
// Implementation: generative-text endpoint. Optional.
type ContentClassifier interface {
	Classify(ctx context.Context, page PageInfo) (Category, error)
}

// RelevanceJudge decides whether a page is related to the focus topic.
// It never fails; uncertain input yields VerdictRelated.
type RelevanceJudge interface {
	Judge(ctx context.Context, topic string, tab Tab) Verdict
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
