// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FocusMode selects which decision path runs on navigation events.
type FocusMode string

const (
	ModeManual FocusMode = "manual"
	ModeAI     FocusMode = "ai"
)

// Valid reports whether m is a known mode.
func (m FocusMode) Valid() bool {
	return m == ModeManual || m == ModeAI
}

// AlarmType identifies the escalation stage an alarm belongs to.
type AlarmType string

const (
	AlarmWarn AlarmType = "warn"
	AlarmHard AlarmType = "hard"
)

// Verdict is the binary relevance result used in AI mode.
type Verdict string

const (
	VerdictRelated   Verdict = "related"
	VerdictUnrelated Verdict = "unrelated"
)

// Category is the coarse label returned by a ContentClassifier.
type Category string

const (
	CategoryWork          Category = "work"
	CategoryEntertainment Category = "entertainment"
)

// Settings is the durable focus configuration.
type Settings struct {
	FocusMode         FocusMode             `json:"focusMode"`
	CurrentFocusTopic string                `json:"currentFocusTopic"`
	AllowedDomains    []AllowEntry          `json:"allowedDomains"`
	BlockedGroups     map[string]BlockGroup `json:"blockedGroups"`
	WarnMinutes       int                   `json:"warnMinutes"`
	HardBlockMinutes  int                   `json:"hardBlockMinutes"`
}

// AllowEntry is a user exception. Stored either as a bare string or as an
// object carrying url/host (the options page writes {name, url}).
type AllowEntry struct {
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
	Host  string `json:"host,omitempty"`
	plain string
}

// NewAllowEntry returns a bare-string entry.
func NewAllowEntry(s string) AllowEntry {
	return AllowEntry{plain: s}
}

// Raw returns the matchable string: the bare value, else url, else host.
func (e AllowEntry) Raw() string {
	if e.plain != "" {
		return e.plain
	}
	if e.URL != "" {
		return e.URL
	}
	return e.Host
}

func (e AllowEntry) MarshalJSON() ([]byte, error) {
	if e.plain != "" || (e.Name == "" && e.URL == "" && e.Host == "") {
		return json.Marshal(e.plain)
	}
	type obj AllowEntry
	return json.Marshal(obj(e))
}

func (e *AllowEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = AllowEntry{plain: s}
		return nil
	}
	type obj AllowEntry
	var o obj
	if err := json.Unmarshal(data, &o); err != nil {
		return err
	}
	*e = AllowEntry(o)
	return nil
}

// BlockGroup is a named, toggleable collection of blocked hosts.
type BlockGroup struct {
	Enabled bool        `json:"enabled"`
	Items   []BlockItem `json:"items"`
}

// DecodeBlockGroup decodes one stored group leniently. Enabled is true only
// for the JSON literal true. An items value that is not an array decodes as
// no items. dropped counts skipped items, plus one for a non-array items value.
// Only data that is not a JSON object is an error.
func DecodeBlockGroup(data []byte) (g BlockGroup, dropped int, err error) {
	var raw struct {
		Enabled json.RawMessage `json:"enabled"`
		Items   json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return BlockGroup{}, 0, err
	}

	g = BlockGroup{Enabled: string(raw.Enabled) == "true", Items: []BlockItem{}}
	if len(raw.Items) == 0 {
		return g, 0, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw.Items, &items); err != nil {
		return g, 1, nil
	}
	for _, itemData := range items {
		var item BlockItem
		if err := json.Unmarshal(itemData, &item); err != nil {
			dropped++
			continue
		}
		g.Items = append(g.Items, item)
	}
	return g, dropped, nil
}

func (g *BlockGroup) UnmarshalJSON(data []byte) error {
	decoded, _, err := DecodeBlockGroup(data)
	if err != nil {
		return err
	}
	*g = decoded
	return nil
}

// BlockItem is a bare host string (implicitly enabled) or an object with its
// own enabled flag. Enabled is nil when the flag was omitted.
type BlockItem struct {
	Name    string `json:"name,omitempty"`
	Host    string `json:"host,omitempty"`
	URL     string `json:"url,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
	plain   string
	isPlain bool
}

// HostItem returns a bare-string item.
func HostItem(host string) BlockItem {
	return BlockItem{plain: host, isPlain: true}
}

// IsPlain reports whether the item was a bare string.
func (i BlockItem) IsPlain() bool { return i.isPlain }

// Value returns the host the item contributes: the bare value, else host, else url.
func (i BlockItem) Value() string {
	if i.isPlain {
		return i.plain
	}
	if i.Host != "" {
		return i.Host
	}
	return i.URL
}

// IsEnabled is false only when the flag was explicitly set to false.
func (i BlockItem) IsEnabled() bool {
	return i.Enabled == nil || *i.Enabled
}

func (i BlockItem) MarshalJSON() ([]byte, error) {
	if i.isPlain {
		return json.Marshal(i.plain)
	}
	type obj BlockItem
	return json.Marshal(obj(i))
}

func (i *BlockItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = BlockItem{plain: s, isPlain: true}
		return nil
	}
	type obj BlockItem
	var o obj
	if err := json.Unmarshal(data, &o); err != nil {
		return err
	}
	*i = BlockItem(o)
	return nil
}

// AlarmKey is the structured identity of a pending escalation alarm.
// At most one alarm per key may be pending.
type AlarmKey struct {
	Type  AlarmType
	TabID int
	URL   string
}

// String renders the key in the extension's alarm-name format.
func (k AlarmKey) String() string {
	return fmt.Sprintf("focus_%s_%d_%s", k.Type, k.TabID, k.URL)
}

var alarmNamePattern = regexp.MustCompile(`^focus_(warn|hard)_(\d+)_(.*)$`)

// ParseAlarmName decodes a name produced by AlarmKey.String.
func ParseAlarmName(name string) (AlarmKey, bool) {
	m := alarmNamePattern.FindStringSubmatch(name)
	if m == nil {
		return AlarmKey{}, false
	}
	tabID, err := strconv.Atoi(m[2])
	if err != nil {
		return AlarmKey{}, false
	}
	return AlarmKey{Type: AlarmType(m[1]), TabID: tabID, URL: m[3]}, true
}

// Tab is the host's view of a browser tab.
type Tab struct {
	ID     int    `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Active bool   `json:"active"`
}

// PageInfo is the page metadata sent for classification.
type PageInfo struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Notification is a basic system notification.
type Notification struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Message string `json:"message"`
	IconURL string `json:"iconUrl,omitempty"`
}

// Action is what the engine did in response to an event.
type Action string

const (
	ActionNone          Action = "none"
	ActionAllow         Action = "allow"
	ActionRedirect      Action = "redirect"
	ActionWarnScheduled Action = "warn_scheduled"
	ActionTimersCleared Action = "timers_cleared"
	ActionHardScheduled Action = "hard_scheduled"
	ActionSessionBlock  Action = "session_blocked"
	ActionStale         Action = "stale"
)

// Decision records an Action and why it was taken.
type Decision struct {
	Action Action
	Reason string
}

// NormalizeTopicKeywords splits a topic into lowercase keywords longer than two characters.
func NormalizeTopicKeywords(topic string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(topic)) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}
