package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

// mockStore implements domain.KeyValueStore for testing
type mockStore struct {
	mu     sync.Mutex
	data   map[domain.Area]map[string]json.RawMessage
	getErr error
	setErr error
	sets   int
}

func newMockStore() *mockStore {
	return &mockStore{data: map[domain.Area]map[string]json.RawMessage{}}
}

// seed stores raw JSON for a durable key.
func (m *mockStore) seed(key, raw string) {
	if m.data[domain.AreaDurable] == nil {
		m.data[domain.AreaDurable] = map[string]json.RawMessage{}
	}
	m.data[domain.AreaDurable][key] = json.RawMessage(raw)
}

func (m *mockStore) raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data[domain.AreaDurable][key])
}

func (m *mockStore) Get(ctx context.Context, area domain.Area, keys ...string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make(map[string]json.RawMessage)
	for _, k := range keys {
		if v, ok := m.data[area][k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *mockStore) Set(ctx context.Context, area domain.Area, values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if m.data[area] == nil {
		m.data[area] = map[string]json.RawMessage{}
	}
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		m.data[area][k] = b
	}
	m.sets++
	return nil
}

func (m *mockStore) Delete(ctx context.Context, area domain.Area, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data[area], k)
	}
	return nil
}

// mockSessionBlocks implements domain.SessionBlockList for testing
type mockSessionBlocks struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (m *mockSessionBlocks) Add(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, u := range m.urls {
		if u == url {
			return nil
		}
	}
	m.urls = append(m.urls, url)
	return nil
}

func (m *mockSessionBlocks) Has(ctx context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, u := range m.urls {
		if u == url {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSessionBlocks) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.urls...), m.err
}

// mockScheduler implements domain.Scheduler for testing.
// Pending alarms are kept by name so duplicates are visible.
type mockScheduler struct {
	pending   map[string]time.Duration
	created   []domain.AlarmKey
	cleared   []domain.AlarmKey
	createErr error
}

func newMockScheduler() *mockScheduler {
	return &mockScheduler{pending: map[string]time.Duration{}}
}

func (m *mockScheduler) Create(ctx context.Context, key domain.AlarmKey, delay time.Duration) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.pending[key.String()] = delay
	m.created = append(m.created, key)
	return nil
}

func (m *mockScheduler) Clear(ctx context.Context, key domain.AlarmKey) error {
	delete(m.pending, key.String())
	m.cleared = append(m.cleared, key)
	return nil
}

// mockTabs implements domain.TabController for testing
type mockTabs struct {
	tabs        map[int]domain.Tab
	redirects   map[int]string
	redirectErr error
}

func newMockTabs() *mockTabs {
	return &mockTabs{tabs: map[int]domain.Tab{}, redirects: map[int]string{}}
}

func (m *mockTabs) Get(ctx context.Context, tabID int) (*domain.Tab, error) {
	t, ok := m.tabs[tabID]
	if !ok {
		return nil, errors.New("no tab with id")
	}
	return &t, nil
}

func (m *mockTabs) Redirect(ctx context.Context, tabID int, url string) error {
	if m.redirectErr != nil {
		return m.redirectErr
	}
	m.redirects[tabID] = url
	if t, ok := m.tabs[tabID]; ok {
		t.URL = url
		m.tabs[tabID] = t
	}
	return nil
}

// mockNotifier implements domain.Notifier for testing
type mockNotifier struct {
	sent []domain.Notification
	err  error
}

func (m *mockNotifier) Notify(ctx context.Context, n domain.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

// stubJudge implements domain.RelevanceJudge with a fixed verdict
type stubJudge struct {
	verdict domain.Verdict
	calls   int
}

func (s *stubJudge) Judge(ctx context.Context, topic string, tab domain.Tab) domain.Verdict {
	s.calls++
	return s.verdict
}
