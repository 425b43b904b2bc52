package lcu

import "strings"

// terminalEventType ends the feed entity's lifecycle in-band; there is no
// separate close handshake on the feed.
const terminalEventType = "Delete"

// Normalize extracts the session body from one raw feed frame. Two shapes
// are accepted: the live-socket tuple `[kind, feedName, event]` and the
// bare event object used by capture replay. The returned flag reports the
// terminal condition. Any other shape yields (nil, false); malformed input
// never fails.
func Normalize(raw any) (map[string]any, bool) {
	event := eventObject(raw)
	if event == nil {
		return nil, false
	}

	terminal := false
	if et, ok := event["eventType"].(string); ok && strings.EqualFold(et, terminalEventType) {
		terminal = true
	}

	// Most event kinds wrap the session under "data"; a few carry it at
	// the top level.
	if data, ok := event["data"].(map[string]any); ok {
		return data, terminal
	}

	return event, terminal
}

// eventObject resolves the frame's shape variant to the inner event map.
func eventObject(raw any) map[string]any {
	switch v := raw.(type) {
	case []any:
		if len(v) < 3 {
			return nil
		}
		if m, ok := v[2].(map[string]any); ok {
			return m
		}

		return nil
	case map[string]any:
		return v
	default:
		return nil
	}
}
