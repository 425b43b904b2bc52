package lcu

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// subscribeOpcode is the wire protocol's fixed discriminator for a
// subscription request frame.
const subscribeOpcode = 5

// maxFrameSize caps a single feed frame; full session snapshots run to a
// few hundred KB.
const maxFrameSize = 4 << 20

// eventSocket owns one websocket connection to the client's event API.
type eventSocket struct {
	logger *slog.Logger
	feed   string

	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func newEventSocket(logger *slog.Logger, feed string) *eventSocket {
	return &eventSocket{logger: logger, feed: feed}
}

// open dials the client and subscribes to the configured feed. Dial
// failure is returned without retry; the next lockfile event retriggers.
func (s *eventSocket) open(info ConnectionInfo) error {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	wsURL := fmt.Sprintf("wss://%s:%s@%s:%s/", info.Username, info.Secret, info.Host, info.Port)
	opts := &websocket.DialOptions{
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				// The client serves a self-signed certificate on
				// loopback; verification is skipped for this dial only.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402
			},
		},
	}

	conn, _, err := websocket.Dial(s.ctx, wsURL, opts)
	if err != nil {
		s.cancel()

		return fmt.Errorf("dial event socket: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)
	s.conn = conn

	sub, err := json.Marshal([]any{subscribeOpcode, s.feed})
	if err != nil {
		s.close()

		return fmt.Errorf("encode subscribe frame: %w", err)
	}
	if err := conn.Write(s.ctx, websocket.MessageText, sub); err != nil {
		s.close()

		return fmt.Errorf("send subscribe frame: %w", err)
	}

	s.logger.Info("subscribed", "feed", s.feed, "port", info.Port)

	return nil
}

// readLoop receives frames until the connection dies or the socket context
// is cancelled, forwarding each frame that belongs to the subscribed feed.
// The socket multiplexes other feeds and noise frames; those are dropped
// silently. The handles are captured once up front: close may nil them out
// from another goroutine, and the loop must only ever observe the pair it
// started with.
func (s *eventSocket) readLoop(onFrame func(raw []byte, payload []any)) {
	conn, ctx := s.conn, s.ctx
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.logger.Debug("read loop ended", "error", err)

			return
		}

		var payload []any
		if err := json.Unmarshal(data, &payload); err != nil || len(payload) < 3 {
			continue
		}
		feed, ok := payload[1].(string)
		if !ok || feed != s.feed {
			continue
		}

		onFrame(data, payload)
	}
}

func (s *eventSocket) close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "disconnecting")
		s.conn = nil
	}
}
