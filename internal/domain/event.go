package domain

// TabStatusComplete is the tab-updated status that triggers evaluation.
const TabStatusComplete = "complete"

// TabUpdatedEvent is sent when a tab finishes loading or changes.
type TabUpdatedEvent struct {
	TabID  int    `json:"tabId"`
	Status string `json:"status"`
	Tab    Tab    `json:"tab"`
}

// NavigationCommittedEvent is sent when a frame commits a navigation.
// FrameID 0 is the top-level frame.
type NavigationCommittedEvent struct {
	TabID   int    `json:"tabId"`
	URL     string `json:"url"`
	FrameID int    `json:"frameId"`
}

// TabActivatedEvent is sent when the user switches to a tab.
type TabActivatedEvent struct {
	TabID int `json:"tabId"`
}
