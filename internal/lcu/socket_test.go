package lcu

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// streamServer accepts websocket sessions, consumes the subscribe frame,
// and pushes feed frames until the client goes away.
func streamServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		ctx := r.Context()
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}

		for i := 0; ; i++ {
			frame := fmt.Sprintf(`[8, %q, {"eventType": "Update", "data": {"n": %d}}]`, testFeed, i)
			if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
				return
			}
		}
	}))
}

// TestSocketCloseDuringReadLoop closes the socket from another goroutine
// while the read loop is consuming a continuous stream. The loop must
// exit cleanly every cycle, never panic on a handle torn down mid-read.
func TestSocketCloseDuringReadLoop(t *testing.T) {
	srv := streamServer(t)
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	info := ConnectionInfo{
		Scheme:   "https",
		Host:     "127.0.0.1",
		Port:     u.Port(),
		Username: "riot",
		Secret:   "s3cret",
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	for cycle := 0; cycle < 20; cycle++ {
		socket := newEventSocket(logger, testFeed)
		if err := socket.open(info); err != nil {
			t.Fatalf("cycle %d: open: %v", cycle, err)
		}

		frames := make(chan struct{}, 1)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			socket.readLoop(func(raw []byte, payload []any) {
				select {
				case frames <- struct{}{}:
				default:
				}
			})
		}()

		// Close only once frames are flowing so the teardown lands
		// mid-stream, not before the loop starts reading.
		select {
		case <-frames:
		case <-time.After(5 * time.Second):
			t.Fatalf("cycle %d: no frames received", cycle)
		}
		socket.close()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("cycle %d: read loop did not exit after close", cycle)
		}
	}
}
