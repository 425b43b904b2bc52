package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CaptureRecord is one catalog entry for a finished capture file.
type CaptureRecord struct {
	ID         string
	Path       string
	StartedAt  time.Time
	EndedAt    time.Time
	EventCount int
}

// NewCaptureRecord builds a record with a fresh identifier.
func NewCaptureRecord(path string, startedAt, endedAt time.Time, eventCount int) CaptureRecord {
	return CaptureRecord{
		ID:         uuid.NewString(),
		Path:       path,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
		EventCount: eventCount,
	}
}

type CaptureRepo struct {
	db *sql.DB
}

func NewCaptureRepo(db *sql.DB) *CaptureRepo {
	return &CaptureRepo{db: db}
}

func (r *CaptureRepo) Insert(ctx context.Context, rec CaptureRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO captures(id, path, started_at, ended_at, event_count)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.Path, toUnixMillis(rec.StartedAt), toUnixMillis(rec.EndedAt), rec.EventCount)
	if err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}

	return nil
}

// ListRecent returns up to limit captures, newest first.
func (r *CaptureRepo) ListRecent(ctx context.Context, limit int) ([]CaptureRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, path, started_at, ended_at, event_count
		FROM captures
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()

	var out []CaptureRecord
	for rows.Next() {
		var (
			rec       CaptureRecord
			startedMs int64
			endedMs   int64
		)
		if err := rows.Scan(&rec.ID, &rec.Path, &startedMs, &endedMs, &rec.EventCount); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		rec.StartedAt = fromUnixMillis(startedMs)
		rec.EndedAt = fromUnixMillis(endedMs)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate captures: %w", err)
	}

	return out, nil
}
