package capture

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readSession(t *testing.T, path string) Session {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("capture is not valid JSON: %v\n%s", err, data)
	}

	return s
}

func TestRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.json")
	rec := NewRecorder(testLogger(), path)

	events := []any{
		[]any{float64(8), "feed", map[string]any{"eventType": "Create", "data": map[string]any{"n": float64(1)}}},
		[]any{float64(8), "feed", map[string]any{"eventType": "Update", "data": map[string]any{"n": float64(2)}}},
	}
	for _, ev := range events {
		if err := rec.Record(ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := rec.RecordTerminal(); err != nil {
		t.Fatalf("record terminal: %v", err)
	}
	if err := rec.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	s := readSession(t, path)
	if s.EventCount != 3 {
		t.Errorf("eventCount = %d, want 3", s.EventCount)
	}
	if len(s.Events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(s.Events))
	}
	if s.StartTime == "" || s.EndTime == "" {
		t.Errorf("missing timestamps: start=%q end=%q", s.StartTime, s.EndTime)
	}

	// The terminal marker lands last.
	last, ok := s.Events[2].RawData.(map[string]any)
	if !ok || last["eventType"] != "Delete" {
		t.Errorf("last event = %v, want Delete marker", s.Events[2].RawData)
	}

	// Raw payloads survive unchanged.
	first, ok := s.Events[0].RawData.([]any)
	if !ok || len(first) != 3 {
		t.Fatalf("first event reshaped: %v", s.Events[0].RawData)
	}
}

func TestRecorderManyEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.json")
	rec := NewRecorder(testLogger(), path)

	// Enough events for a multi-digit count; the in-place rewrite must
	// not clobber the document.
	for i := 0; i < 120; i++ {
		if err := rec.Record(map[string]any{"n": i}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if err := rec.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	s := readSession(t, path)
	if s.EventCount != 120 {
		t.Errorf("eventCount = %d, want 120", s.EventCount)
	}
	if len(s.Events) != 120 {
		t.Errorf("len(events) = %d, want 120", len(s.Events))
	}
}

func TestRecorderNoEventsWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.json")
	rec := NewRecorder(testLogger(), path)

	if err := rec.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("capture file created despite zero events")
	}
}

func TestRecorderFinalizeIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.json")
	rec := NewRecorder(testLogger(), path)

	if err := rec.Record(map[string]any{"x": float64(1)}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := rec.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := rec.Finalize(); err != nil {
		t.Fatalf("second finalize: %v", err)
	}

	s := readSession(t, path)
	if s.EventCount != 1 {
		t.Errorf("eventCount = %d, want 1", s.EventCount)
	}

	if err := rec.Record(map[string]any{"x": float64(2)}); err == nil {
		t.Errorf("record after finalize succeeded")
	}
}

func TestRecorderPartialFileHoldsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.json")
	rec := NewRecorder(testLogger(), path)

	if err := rec.Record(map[string]any{"x": float64(1)}); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Without finalization the file is not closed JSON, but the event
	// bytes are already on disk.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read partial capture: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("partial capture empty")
	}

	if err := rec.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
}
