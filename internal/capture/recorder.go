package capture

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// countWidth is the fixed field width of the event count placeholder. The
// count is rewritten in place during finalization, so the placeholder must
// reserve room for the final value up front.
const countWidth = 10

// terminalMarker is appended as the last event when the feed ends without
// having delivered its own terminal frame.
var terminalMarker = map[string]any{"eventType": "Delete"}

// Recorder streams feed events into a capture file. The file is created
// lazily on the first event and every event is synced to disk as it
// arrives, so an interrupted capture still holds every event it saw.
type Recorder struct {
	logger *slog.Logger
	path   string

	mu        sync.Mutex
	file      *os.File
	countPos  int64
	count     int
	startTime string
	endTime   string
	finalized bool
}

// NewRecorder returns a recorder that will write to path. Nothing touches
// the filesystem until the first event arrives.
func NewRecorder(logger *slog.Logger, path string) *Recorder {
	return &Recorder{
		logger:    logger,
		path:      path,
		startTime: time.Now().Format(time.RFC3339),
	}
}

// Path returns the capture file path.
func (r *Recorder) Path() string { return r.path }

// Count returns the number of events recorded so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.count
}

// Active reports whether at least one event has been recorded and the
// capture has not yet been finalized.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.file != nil
}

// Record appends one raw feed payload to the capture.
func (r *Recorder) Record(raw any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return fmt.Errorf("capture already finalized")
	}
	if r.file == nil {
		if err := r.initFile(); err != nil {
			return fmt.Errorf("init capture file: %w", err)
		}
	}

	ev := Event{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		RawData:   raw,
	}
	if err := r.appendEvent(ev); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	r.count++
	r.logger.Debug("event recorded", "n", r.count)

	return nil
}

// RecordTerminal appends the synthetic end-of-feed marker.
func (r *Recorder) RecordTerminal() error {
	return r.Record(terminalMarker)
}

// Finalize patches the event count, closes the document, and closes the
// file. Calling it again, or before any event was recorded, is a no-op.
func (r *Recorder) Finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized || r.file == nil {
		r.finalized = true

		return nil
	}
	r.finalized = true
	r.endTime = time.Now().Format(time.RFC3339)

	if err := r.patchCount(); err != nil {
		return fmt.Errorf("patch event count: %w", err)
	}

	if _, err := fmt.Fprintf(r.file, "\n  ],\n  \"endTime\": %q\n}\n", r.endTime); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	if err := r.file.Sync(); err != nil {
		return fmt.Errorf("sync capture file: %w", err)
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close capture file: %w", err)
	}
	r.file = nil

	r.logger.Info("capture saved", "path", r.path, "events", r.count, "duration", r.duration())

	return nil
}

// StartTime returns the session start in RFC 3339 form.
func (r *Recorder) StartTime() string { return r.startTime }

func (r *Recorder) initFile() error {
	if dir := filepath.Dir(r.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}

	file, err := os.Create(r.path)
	if err != nil {
		return err
	}
	r.file = file

	if _, err := fmt.Fprintf(file, "{\n  \"startTime\": %q,\n", r.startTime); err != nil {
		return err
	}

	r.countPos, err = file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(file, "  \"eventCount\": %*d,\n  \"events\": [\n", countWidth, 0); err != nil {
		return err
	}

	return nil
}

// appendEvent writes one indented event object, comma-separated from the
// previous one, and syncs.
func (r *Recorder) appendEvent(ev Event) error {
	if r.count > 0 {
		if _, err := fmt.Fprint(r.file, ",\n"); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(ev, "    ", "  ")
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(r.file, "    "+string(data)); err != nil {
		return err
	}

	return r.file.Sync()
}

// patchCount rewrites the fixed-width count placeholder in place, then
// restores the write position.
func (r *Recorder) patchCount() error {
	pos, err := r.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := r.file.Seek(r.countPos, io.SeekStart); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(r.file, "  \"eventCount\": %*d,", countWidth, r.count); err != nil {
		return err
	}
	if _, err := r.file.Seek(pos, io.SeekStart); err != nil {
		return err
	}

	return nil
}

func (r *Recorder) duration() string {
	start, err1 := time.Parse(time.RFC3339, r.startTime)
	end, err2 := time.Parse(time.RFC3339, r.endTime)
	if err1 != nil || err2 != nil {
		return "unknown"
	}

	return end.Sub(start).String()
}

// DefaultFilename builds a timestamped capture filename.
func DefaultFilename() string {
	return fmt.Sprintf("champ-select-capture_%s.json", time.Now().Format("20060102_150405"))
}
