package lcu

import "strings"

const (
	lockfileName = "lockfile"

	// The client only listens on loopback and always authenticates as
	// this fixed user; both are part of the lockfile contract, not
	// configuration.
	loopbackHost = "127.0.0.1"
	apiUsername  = "riot"
)

// ConnectionInfo holds one session's connection credentials, parsed from
// the lockfile. Immutable once created.
type ConnectionInfo struct {
	Scheme   string
	Host     string
	Port     string
	Username string
	Secret   string
}

// parseLockfile parses lockfile content shaped `name:pid:port:secret:scheme`.
// Fewer than five fields means the client has not finished writing the file;
// the caller waits for the next write event.
func parseLockfile(data []byte) (ConnectionInfo, bool) {
	parts := strings.Split(strings.TrimSpace(string(data)), ":")
	if len(parts) < 5 {
		return ConnectionInfo{}, false
	}

	return ConnectionInfo{
		Scheme:   parts[4],
		Host:     loopbackHost,
		Port:     parts[2],
		Username: apiUsername,
		Secret:   parts[3],
	}, true
}
