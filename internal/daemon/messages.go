package daemon

import (
	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

// Inbound message types (extension -> host).
const (
	MsgTabUpdated          = "tab_updated"
	MsgTabActivated        = "tab_activated"
	MsgNavigationCommitted = "navigation_committed"
	MsgAlarm               = "alarm"
	MsgClassify            = "classify"
	MsgResponse            = "response"
)

// Outbound message types (host -> extension).
const (
	MsgRedirect       = "redirect"
	MsgNotify         = "notify"
	MsgGetTab         = "get_tab"
	MsgClassification = "classification"
)

// inboundMessage is the union of every message the extension sends.
type inboundMessage struct {
	Type    string           `json:"type"`
	ID      string           `json:"id,omitempty"`
	TabID   int              `json:"tabId"`
	Status  string           `json:"status,omitempty"`
	Tab     *domain.Tab      `json:"tab,omitempty"`
	URL     string           `json:"url,omitempty"`
	FrameID int              `json:"frameId,omitempty"`
	Name    string           `json:"name,omitempty"`
	Page    *domain.PageInfo `json:"page,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// outboundMessage is the union of every message the host sends.
type outboundMessage struct {
	Type         string               `json:"type"`
	ID           string               `json:"id,omitempty"`
	TabID        int                  `json:"tabId,omitempty"`
	URL          string               `json:"url,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Payload      *classificationReply `json:"payload,omitempty"`
}

type classificationReply struct {
	URL        string          `json:"url"`
	Label      domain.Category `json:"label"`
	Confidence float64         `json:"confidence"`
}
