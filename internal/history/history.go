// Package history keeps an optional journal of every search, reserve and
// release attempt in Postgres, so a run's behavior can be inspected after the
// fact. The journal is best-effort: recording never fails the run, and a nil
// journal (no DATABASE_URL configured) is a no-op.
package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
	id       BIGSERIAL PRIMARY KEY,
	at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	action   TEXT NOT NULL,
	success  BOOLEAN NOT NULL,
	detail   TEXT NOT NULL DEFAULT ''
)`

type Entry struct {
	ID      int64
	At      time.Time
	Action  string
	Success bool
	Detail  string
}

type Journal struct {
	db     *db.DB
	logger *slog.Logger
}

// Open connects and ensures the schema. An empty databaseURL yields a nil
// journal, which every method tolerates.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Journal, error) {
	if databaseURL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	d, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Exec(ctx, schema); err != nil {
		d.Close()
		return nil, err
	}
	return &Journal{db: d, logger: logger}, nil
}

func (j *Journal) Close() {
	if j != nil {
		j.db.Close()
	}
}

// Record inserts one attempt row. Failures are logged and swallowed: the
// journal must never decide the outcome of a run.
func (j *Journal) Record(ctx context.Context, action string, success bool, detail string) {
	if j == nil {
		return
	}
	err := j.db.Exec(ctx, `INSERT INTO attempts(action, success, detail) VALUES ($1,$2,$3)`,
		action, success, detail)
	if err != nil {
		j.logger.Warn("journal insert failed", "action", action, "err", err)
	}
}

// Recent returns the newest entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(ctx, `
SELECT id, at, action, success, detail
FROM attempts
ORDER BY at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.At, &e.Action, &e.Success, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
