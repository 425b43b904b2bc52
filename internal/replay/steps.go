package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// CapturedEvent is the read-side view of one capture file event. RawData
// stays an opaque message so a replay pushes the captured bytes untouched.
type CapturedEvent struct {
	Timestamp string          `json:"timestamp"`
	RawData   json.RawMessage `json:"rawData"`
}

// Capture is a parsed capture file.
type Capture struct {
	StartTime  string          `json:"startTime"`
	EndTime    string          `json:"endTime,omitempty"`
	EventCount int             `json:"eventCount"`
	Events     []CapturedEvent `json:"events"`
}

// Step is a replay-ready unit derived from a captured event.
type Step struct {
	Index     int
	Timestamp time.Time
	Raw       json.RawMessage
	EventType string
	Summary   string
}

// LoadCapture reads and parses a capture file.
func LoadCapture(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}

	var c Capture
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse capture: %w", err)
	}

	return &c, nil
}

// BuildSteps converts capture events to replay steps.
func BuildSteps(c *Capture) []Step {
	steps := make([]Step, 0, len(c.Events))
	for idx, ev := range c.Events {
		eventType, summary := summarize(ev.RawData)
		steps = append(steps, Step{
			Index:     idx,
			Timestamp: parseTime(ev.Timestamp),
			Raw:       ev.RawData,
			EventType: eventType,
			Summary:   summary,
		})
	}

	return steps
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return t
}

// summarize extracts a one-line description for console printing. It
// degrades gracefully: shapes it cannot read summarize as a plain event.
func summarize(raw json.RawMessage) (string, string) {
	v := gjson.ParseBytes(raw)

	switch {
	case v.IsArray():
		arr := v.Array()
		if len(arr) < 3 {
			return "unknown", "event"
		}

		name := arr[1].String()
		event := arr[2]
		eventType := event.Get("eventType").String()
		if eventType == "" {
			eventType = event.Get("type").String()
		}
		phase := event.Get("data.timer.phase").String()

		summary := name
		if eventType != "" {
			summary += " | " + eventType
		}
		if phase != "" {
			summary += " | phase=" + phase
		}
		if summary == "" {
			summary = "event"
		}

		return eventType, summary

	case v.IsObject():
		eventType := v.Get("eventType").String()
		if eventType == "" {
			eventType = v.Get("type").String()
		}

		summary := eventType
		if summary == "" {
			summary = "event"
		}

		return eventType, summary

	default:
		return "unknown", "event"
	}
}
