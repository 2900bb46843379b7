// Package cache keeps decoded datafeed hours in SQLite so repeated
// downloads of the same range are served locally, and logs every fetch run.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	return &SQLiteCache{db: db, now: time.Now}, nil
}

// Get returns the stored records of one hour. ok is false when the hour
// has never been stored; an hour without ticks is stored as an empty blob.
func (c *SQLiteCache) Get(ctx context.Context, instrument string, hour time.Time) (data []byte, ok bool, err error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT data FROM hours WHERE instrument = ? AND hour = ?`,
		instrument, hourKey(hour),
	)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (c *SQLiteCache) Put(ctx context.Context, instrument string, hour time.Time, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO hours (instrument, hour, data, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(instrument, hour) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`,
		instrument, hourKey(hour), data, c.now().UTC(),
	)
	return err
}

// FetchRecord is one invocation of the fetcher.
type FetchRecord struct {
	RunID      string
	Instrument string
	From       time.Time
	To         time.Time
	Timeframe  string
	Format     string
	Err        error
}

func (c *SQLiteCache) RecordFetch(ctx context.Context, r FetchRecord) error {
	status, msg := "ok", ""
	if r.Err != nil {
		status, msg = "error", r.Err.Error()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO fetches
		(run_id, instrument, from_time, to_time, timeframe, format, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Instrument, r.From.UTC(), r.To.UTC(),
		r.Timeframe, r.Format, status, msg, c.now().UTC(),
	)
	return err
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func hourKey(hour time.Time) int64 {
	return hour.UTC().Truncate(time.Hour).Unix()
}
