package connectors

import "time"

// ConnectionState describes the client connection lifecycle.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateSearching    ConnectionState = "searching"
	ConnectionStateWatching     ConnectionState = "watching"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConnStatus is a bus event snapshot of current connector status.
type ConnStatus struct {
	State     ConnectionState
	Err       string
	Address   string
	Port      string
	Timestamp time.Time
}

// FeedEvent is a normalized champ select session event.
type FeedEvent struct {
	Body      map[string]any
	Terminal  bool
	Timestamp time.Time
}

// RawFrame carries the wire bytes of one matched feed frame for
// capture and debug views.
type RawFrame struct {
	Data []byte
	Len  int
}
