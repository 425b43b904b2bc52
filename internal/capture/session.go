package capture

// Event is one recorded feed frame. RawData is kept exactly as received
// so a replay emits byte-equivalent payloads.
type Event struct {
	Timestamp string `json:"timestamp"`
	RawData   any    `json:"rawData"`
}

// Session is the on-disk capture document.
type Session struct {
	StartTime  string  `json:"startTime"`
	EndTime    string  `json:"endTime,omitempty"`
	EventCount int     `json:"eventCount"`
	Events     []Event `json:"events"`
}
