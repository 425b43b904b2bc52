package lcu

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
)

const testFeed = "OnJsonApiEvent_lol-champ-select_v1_session"

// feedServer serves one websocket session: it consumes the subscribe
// frame, pushes an update, waits for proceed, then pushes the terminal
// event and closes.
func feedServer(t *testing.T, proceed <-chan struct{}) *httptest.Server {
	t.Helper()

	return httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Errorf("accept: %v", err)

			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		ctx := r.Context()
		if _, _, err := conn.Read(ctx); err != nil {
			t.Errorf("read subscribe frame: %v", err)

			return
		}

		update := fmt.Sprintf(`[8, %q, {"eventType": "Update", "data": {"timer": {"phase": "BAN_PICK"}}}]`, testFeed)
		if err := conn.Write(ctx, websocket.MessageText, []byte(update)); err != nil {
			return
		}

		<-proceed

		del := fmt.Sprintf(`[8, %q, {"eventType": "Delete", "data": {}}]`, testFeed)
		if err := conn.Write(ctx, websocket.MessageText, []byte(del)); err != nil {
			return
		}

		<-proceed
	}))
}

func writeLockfile(t *testing.T, dir, port string) {
	t.Helper()

	content := "LeagueClient:1234:" + port + ":s3cret:https"
	if err := os.WriteFile(filepath.Join(dir, "lockfile"), []byte(content), 0o644); err != nil {
		t.Fatalf("write lockfile: %v", err)
	}
}

func recvTimeout[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestConnectorLifecycle(t *testing.T) {
	proceed := make(chan struct{})
	srv := feedServer(t, proceed)
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}

	dir := makeInstallDir(t)
	writeLockfile(t, dir, u.Port())

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	conn := NewConnector(logger, testFeed, dir)
	if err := conn.Start(); err != nil {
		t.Fatalf("start connector: %v", err)
	}
	defer conn.Stop()

	info := recvTimeout(t, conn.OnConnect(), "connect")
	if info.Port != u.Port() {
		t.Errorf("connected port = %q, want %q", info.Port, u.Port())
	}

	ev := recvTimeout(t, conn.OnFeedEvent(), "update event")
	if ev.Terminal {
		t.Errorf("update event marked terminal")
	}
	if _, ok := ev.Body["timer"]; !ok {
		t.Errorf("update body missing timer: %v", ev.Body)
	}
	if len(ev.Raw) == 0 {
		t.Errorf("update event missing raw frame")
	}

	proceed <- struct{}{}

	ev = recvTimeout(t, conn.OnFeedEvent(), "terminal event")
	if !ev.Terminal {
		t.Errorf("terminal event not flagged")
	}
	recvTimeout(t, conn.OnFeedEnded(), "feed ended")

	close(proceed)
	recvTimeout(t, conn.OnDisconnect(), "disconnect")
}

func TestConnectorRejectsBadInstallDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	conn := NewConnector(logger, testFeed, t.TempDir())
	if err := conn.Start(); err == nil {
		conn.Stop()
		t.Fatalf("expected invalid install dir to be rejected")
	}
}

func TestConnectorStopIdempotent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	conn := NewConnector(logger, testFeed, "")
	if err := conn.Start(); err != nil {
		t.Fatalf("start connector: %v", err)
	}

	conn.Stop()
	conn.Stop()

	if _, ok := <-conn.OnFeedEvent(); ok {
		t.Errorf("feed event channel still open after stop")
	}
}
