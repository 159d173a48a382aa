//go:build integration

package integration

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
	"github.com/eliteGoblin/focusd/focusguard/internal/infra"
)

// fakeBrowser is the extension end of the native messaging pipes. It answers
// get_tab from its own tab table, applies redirects to it, and forwards every
// other host message to Outbox.
type fakeBrowser struct {
	writer *infra.FrameWriter
	reader *infra.FrameReader
	stdin  io.Closer

	mu   sync.Mutex
	tabs map[int]domain.Tab

	Outbox chan map[string]any
}

func newFakeBrowser(stdin io.WriteCloser, stdout io.Reader) *fakeBrowser {
	b := &fakeBrowser{
		writer: infra.NewFrameWriter(stdin),
		reader: infra.NewFrameReader(stdout),
		stdin:  stdin,
		tabs:   make(map[int]domain.Tab),
		Outbox: make(chan map[string]any, 32),
	}
	go b.serve()
	return b
}

func (b *fakeBrowser) serve() {
	defer close(b.Outbox)
	for {
		body, err := b.reader.ReadFrame()
		if err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(body, &msg); err != nil {
			continue
		}

		switch msg["type"] {
		case "get_tab":
			b.answerGetTab(msg)
			continue
		case "redirect":
			b.navigate(int(msg["tabId"].(float64)), msg["url"].(string))
		}
		b.Outbox <- msg
	}
}

func (b *fakeBrowser) answerGetTab(msg map[string]any) {
	tabID := int(msg["tabId"].(float64))
	reply := map[string]any{"type": "response", "id": msg["id"]}

	b.mu.Lock()
	tab, ok := b.tabs[tabID]
	b.mu.Unlock()
	if ok {
		reply["tab"] = tab
	} else {
		reply["error"] = "No tab with id"
	}
	_ = b.writer.WriteJSON(reply)
}

// Open puts a tab on url and tells the host it finished loading.
func (b *fakeBrowser) Open(tabID int, url, title string) {
	tab := domain.Tab{ID: tabID, URL: url, Title: title, Active: true}
	b.mu.Lock()
	b.tabs[tabID] = tab
	b.mu.Unlock()
	b.Send(map[string]any{"type": "tab_updated", "tabId": tabID, "status": "complete", "tab": tab})
}

// CloseTab removes a tab.
func (b *fakeBrowser) CloseTab(tabID int) {
	b.mu.Lock()
	delete(b.tabs, tabID)
	b.mu.Unlock()
}

func (b *fakeBrowser) Tab(tabID int) domain.Tab {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tabs[tabID]
}

func (b *fakeBrowser) navigate(tabID int, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tab, ok := b.tabs[tabID]; ok {
		tab.URL = url
		b.tabs[tabID] = tab
	}
}

func (b *fakeBrowser) FireAlarm(key domain.AlarmKey) {
	b.Send(map[string]any{"type": "alarm", "name": key.String()})
}

func (b *fakeBrowser) Send(v any) {
	_ = b.writer.WriteJSON(v)
}

func (b *fakeBrowser) Disconnect() error {
	return b.stdin.Close()
}
