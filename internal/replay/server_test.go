package replay

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*httptest.Server, *Session, []Step) {
	t.Helper()

	c, steps := loadFixtureSteps(t)
	hub := NewHub(testLogger())
	session := NewSession(steps, hub, "capture.json", c.StartTime)
	srv := httptest.NewServer(NewServer(testLogger(), session, hub).Handler())
	t.Cleanup(srv.Close)

	return srv, session, steps
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	return data
}

// jsonEqual compares payloads structurally; whitespace in the capture
// file is not significant.
func jsonEqual(t *testing.T, a, b []byte) bool {
	t.Helper()

	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		t.Fatalf("unmarshal a: %v", err)
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		t.Fatalf("unmarshal b: %v", err)
	}

	na, _ := json.Marshal(va)
	nb, _ := json.Marshal(vb)

	return bytes.Equal(na, nb)
}

func TestServerPushesCurrentStepOnJoin(t *testing.T) {
	srv, _, steps := newTestServer(t)

	conn := dialWS(t, srv)
	got := readMessage(t, conn)
	if !jsonEqual(t, got, steps[0].Raw) {
		t.Errorf("initial push = %s, want step 0 payload", got)
	}
}

func TestServerBroadcastsOnMove(t *testing.T) {
	srv, session, steps := newTestServer(t)

	conn := dialWS(t, srv)
	readMessage(t, conn)

	if _, err := session.SetIndex(1, true); err != nil {
		t.Fatalf("set index: %v", err)
	}

	got := readMessage(t, conn)
	if !jsonEqual(t, got, steps[1].Raw) {
		t.Errorf("broadcast = %s, want step 1 payload", got)
	}
}

func TestServerHealth(t *testing.T) {
	srv, session, _ := newTestServer(t)

	if _, err := session.SetIndex(1, false); err != nil {
		t.Fatalf("set index: %v", err)
	}

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var status healthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode health: %v", err)
	}

	if status.Steps != 3 {
		t.Errorf("steps = %d, want 3", status.Steps)
	}
	if status.Current != 1 {
		t.Errorf("current = %d, want 1", status.Current)
	}
	if !strings.Contains(status.Summary, "Update") {
		t.Errorf("summary = %q, want Update step", status.Summary)
	}
	if status.Capture != "capture.json" {
		t.Errorf("capture = %q", status.Capture)
	}
	if status.StartedAt != "2025-11-02T10:00:00Z" {
		t.Errorf("started = %q", status.StartedAt)
	}
	if status.CurrentSent == "" {
		t.Errorf("currentStepTimestamp empty")
	}
}

func TestSessionRejectsOutOfRange(t *testing.T) {
	_, session, _ := newTestServer(t)

	if _, err := session.SetIndex(1, false); err != nil {
		t.Fatalf("set index: %v", err)
	}

	for _, idx := range []int{-1, 3, 99} {
		if _, err := session.SetIndex(idx, false); err == nil {
			t.Errorf("index %d accepted", idx)
		} else if !strings.Contains(err.Error(), "0-2") {
			t.Errorf("index %d error %q missing valid range", idx, err)
		}
	}

	// A rejected move leaves the cursor where it was.
	if session.Current().Index != 1 {
		t.Errorf("cursor moved to %d after rejected index", session.Current().Index)
	}
}

// TestReplayScenario drives the console against live websocket clients:
// next broadcasts step 1, jump 2 broadcasts step 2, and a late-joining
// client immediately receives step 2 without any further command.
func TestReplayScenario(t *testing.T) {
	c, steps := loadFixtureSteps(t)
	hub := NewHub(testLogger())
	session := NewSession(steps, hub, "capture.json", c.StartTime)
	srv := httptest.NewServer(NewServer(testLogger(), session, hub).Handler())
	t.Cleanup(srv.Close)

	conn := dialWS(t, srv)
	if got := readMessage(t, conn); !jsonEqual(t, got, steps[0].Raw) {
		t.Fatalf("initial push = %s, want step 0", got)
	}

	var out strings.Builder
	console := NewConsole(session, strings.NewReader("next\njump 2\nquit\n"), &out)
	console.Run()

	if got := readMessage(t, conn); !jsonEqual(t, got, steps[1].Raw) {
		t.Errorf("next broadcast = %s, want step 1", got)
	}
	if !strings.Contains(out.String(), "sent step 1") {
		t.Errorf("next did not print summary:\n%s", out.String())
	}
	if got := readMessage(t, conn); !jsonEqual(t, got, steps[2].Raw) {
		t.Errorf("jump broadcast = %s, want step 2", got)
	}

	late := dialWS(t, srv)
	if got := readMessage(t, late); !jsonEqual(t, got, steps[2].Raw) {
		t.Errorf("late join push = %s, want step 2", got)
	}
}

// TestReplayReproducesCapturedBytes walks every step and checks the
// broadcast payloads match the capture's rawData entries in order.
func TestReplayReproducesCapturedBytes(t *testing.T) {
	srv, session, steps := newTestServer(t)

	conn := dialWS(t, srv)
	readMessage(t, conn)

	for i := range steps {
		if _, err := session.SetIndex(i, true); err != nil {
			t.Fatalf("set index %d: %v", i, err)
		}
		got := readMessage(t, conn)
		if !bytes.Equal(got, []byte(steps[i].Raw)) {
			t.Errorf("step %d broadcast differs from captured bytes", i)
		}
	}
}

func TestHubDropsDeadClients(t *testing.T) {
	srv, session, _ := newTestServer(t)

	conn := dialWS(t, srv)
	readMessage(t, conn)
	conn.Close()

	// The broadcast after close must not block and eventually reaps the
	// client.
	for i := 0; i < 10; i++ {
		if _, err := session.SetIndex(1, true); err != nil {
			t.Fatalf("set index: %v", err)
		}
	}
}
