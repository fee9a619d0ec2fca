// CLAUDE:SUMMARY SQLite conversion store: one row per distinct payload hash with document JSON, Markdown, stats and buffer quality.
// Package store persists conversions in SQLite (modernc.org/sqlite, no cgo).
//
// Rows are keyed by a "cnv_" UUIDv7 id and deduplicated on the payload
// hash: storing the same payload twice returns the first row's id.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/ultradoc/docmodel"
	"github.com/hazyhaar/ultradoc/idgen"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id             TEXT PRIMARY KEY,
	payload_hash   TEXT NOT NULL UNIQUE,
	source         TEXT NOT NULL DEFAULT '',
	document       TEXT NOT NULL,
	markdown       TEXT NOT NULL,
	stats          TEXT NOT NULL,
	buffer_quality TEXT NOT NULL,
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS conversions_created ON conversions(created_at);

CREATE TABLE IF NOT EXISTS audit_log (
	id            TEXT PRIMARY KEY,
	ts            INTEGER NOT NULL,
	operation     TEXT NOT NULL,
	subject       TEXT NOT NULL DEFAULT '',
	conversion_id TEXT NOT NULL DEFAULT '',
	user_id       TEXT NOT NULL DEFAULT '',
	request_id    TEXT NOT NULL DEFAULT '',
	remote_addr   TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS audit_log_ts ON audit_log(ts DESC);
CREATE INDEX IF NOT EXISTS audit_log_operation ON audit_log(operation, ts DESC);
`

// ErrNotFound is returned when no conversion matches.
var ErrNotFound = errors.New("store: conversion not found")

// Record is one stored conversion.
type Record struct {
	ID          string                 `json:"id"`
	PayloadHash string                 `json:"payload_hash"`
	Source      string                 `json:"source,omitempty"`
	Document    docmodel.Document      `json:"document"`
	Markdown    string                 `json:"-"`
	Stats       docmodel.Stats         `json:"stats"`
	Quality     docmodel.BufferQuality `json:"buffer_quality"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Summary is the listing view of a Record.
type Summary struct {
	ID          string    `json:"id"`
	PayloadHash string    `json:"payload_hash"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is a conversion store. It is safe for concurrent use.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
	now   func() time.Time
}

// Open opens or creates the store at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := openDB(path, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, newID: idgen.Conversion, now: time.Now}, nil
}

// OpenMemory opens an in-memory store for tests and closes it on cleanup.
// All queries share one connection, since every connection to :memory:
// is a separate database.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Put stores rec unless a conversion with the same payload hash exists,
// and reports whether a row was created. rec.ID and rec.CreatedAt are set
// from the stored row either way.
func (s *Store) Put(ctx context.Context, rec *Record) (created bool, err error) {
	if rec.PayloadHash == "" {
		return false, errors.New("store: payload hash is required")
	}
	doc, err := json.Marshal(rec.Document)
	if err != nil {
		return false, fmt.Errorf("store: encode document: %w", err)
	}
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return false, fmt.Errorf("store: encode stats: %w", err)
	}
	quality, err := json.Marshal(rec.Quality)
	if err != nil {
		return false, fmt.Errorf("store: encode quality: %w", err)
	}

	err = runTx(ctx, s.db, func(tx *sql.Tx) error {
		var id string
		var at int64
		err := tx.QueryRowContext(ctx,
			`SELECT id, created_at FROM conversions WHERE payload_hash = ?`, rec.PayloadHash).Scan(&id, &at)
		switch {
		case err == nil:
			rec.ID, rec.CreatedAt = id, time.UnixMilli(at).UTC()
			created = false
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("store: lookup hash: %w", err)
		}

		rec.ID = s.newID()
		rec.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO conversions (id, payload_hash, source, document, markdown, stats, buffer_quality, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.PayloadHash, rec.Source, string(doc), rec.Markdown, string(stats), string(quality),
			rec.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("store: insert: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

const selectRecord = `SELECT id, payload_hash, source, document, markdown, stats, buffer_quality, created_at FROM conversions `

// Get returns the conversion with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	return s.scanRecord(s.db.QueryRowContext(ctx, selectRecord+`WHERE id = ?`, id))
}

// GetByHash returns the conversion of the payload with the given hash.
func (s *Store) GetByHash(ctx context.Context, hash string) (*Record, error) {
	return s.scanRecord(s.db.QueryRowContext(ctx, selectRecord+`WHERE payload_hash = ?`, hash))
}

func (s *Store) scanRecord(row *sql.Row) (*Record, error) {
	var (
		rec                 Record
		doc, stats, quality string
		at                  int64
	)
	err := row.Scan(&rec.ID, &rec.PayloadHash, &rec.Source, &doc, &rec.Markdown, &stats, &quality, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan: %w", err)
	}
	if err := json.Unmarshal([]byte(doc), &rec.Document); err != nil {
		return nil, fmt.Errorf("store: decode document %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(stats), &rec.Stats); err != nil {
		return nil, fmt.Errorf("store: decode stats %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(quality), &rec.Quality); err != nil {
		return nil, fmt.Errorf("store: decode quality %s: %w", rec.ID, err)
	}
	rec.CreatedAt = time.UnixMilli(at).UTC()
	return &rec, nil
}

// List returns the most recent conversions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload_hash, source, created_at FROM conversions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sm Summary
		var at int64
		if err := rows.Scan(&sm.ID, &sm.PayloadHash, &sm.Source, &at); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		sm.CreatedAt = time.UnixMilli(at).UTC()
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Delete removes a conversion.
func (s *Store) Delete(ctx context.Context, id string) error {
	return runTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM conversions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("store: delete: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
