package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/ultradoc/idgen"
)

// Audit statuses.
const (
	AuditSuccess = "success"
	AuditError   = "error"
)

// AuditEntry records one API operation.
type AuditEntry struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	Operation    string    `json:"operation"` // convert, fetch, delete
	Subject      string    `json:"subject,omitempty"`
	ConversionID string    `json:"conversion_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	RemoteAddr   string    `json:"remote_addr,omitempty"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
}

// AuditFilter narrows Query. Zero fields match everything.
type AuditFilter struct {
	Operation string
	Status    string
	Since     time.Time
	Limit     int // default 100
}

// AuditLog persists audit entries in the store's database. LogAsync
// batches writes on a background goroutine; Close drains it.
type AuditLog struct {
	db     *sql.DB
	logger *slog.Logger
	newID  idgen.Generator
	now    func() time.Time

	ch        chan *AuditEntry
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

const (
	auditBatch    = 100
	auditInterval = 2 * time.Second
)

// NewAuditLog starts an audit log over s. bufferSize bounds the queue of
// LogAsync; a full queue falls back to a synchronous insert.
func (s *Store) NewAuditLog(bufferSize int, logger *slog.Logger) *AuditLog {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &AuditLog{
		db:     s.db,
		logger: logger,
		newID:  idgen.Prefixed("aud_", idgen.UUIDv7()),
		now:    time.Now,
		ch:     make(chan *AuditEntry, bufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go a.flushLoop()
	return a
}

// Log inserts e synchronously.
func (a *AuditLog) Log(ctx context.Context, e *AuditEntry) error {
	a.fill(e)
	if _, err := a.db.ExecContext(ctx, insertAudit, auditArgs(e)...); err != nil {
		return fmt.Errorf("store: audit insert: %w", err)
	}
	return nil
}

// LogAsync queues e for the next batch.
func (a *AuditLog) LogAsync(e *AuditEntry) {
	a.fill(e)
	select {
	case a.ch <- e:
	default:
		a.logger.Warn("audit buffer full, sync fallback", "operation", e.Operation)
		if err := a.Log(context.Background(), e); err != nil {
			a.logger.Error("audit sync fallback failed", "error", err)
		}
	}
}

// Query returns matching entries, newest first.
func (a *AuditLog) Query(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	q := `SELECT id, ts, operation, subject, conversion_id, user_id, request_id, remote_addr, status, error, duration_ms
		FROM audit_log WHERE 1=1`
	var args []any
	if f.Operation != "" {
		q += " AND operation = ?"
		args = append(args, f.Operation)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	if !f.Since.IsZero() {
		q += " AND ts >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " ORDER BY ts DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: audit query: %w", err)
	}
	defer rows.Close()

	out := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Operation, &e.Subject, &e.ConversionID,
			&e.UserID, &e.RequestID, &e.RemoteAddr, &e.Status, &e.Error, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("store: audit scan: %w", err)
		}
		e.Time = time.UnixMilli(ts).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cleanup deletes entries older than retention and returns how many.
func (a *AuditLog) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := a.now().Add(-retention).UnixMilli()
	res, err := a.db.ExecContext(ctx, `DELETE FROM audit_log WHERE ts < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("store: audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes queued entries and stops the background goroutine.
func (a *AuditLog) Close() error {
	a.closeOnce.Do(func() { close(a.stop) })
	<-a.done
	return nil
}

func (a *AuditLog) fill(e *AuditEntry) {
	if e.ID == "" {
		e.ID = a.newID()
	}
	if e.Time.IsZero() {
		e.Time = a.now()
	}
	e.Time = e.Time.UTC().Truncate(time.Millisecond)
	if e.Status == "" {
		if e.Error != "" {
			e.Status = AuditError
		} else {
			e.Status = AuditSuccess
		}
	}
}

const insertAudit = `INSERT INTO audit_log
	(id, ts, operation, subject, conversion_id, user_id, request_id, remote_addr, status, error, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func auditArgs(e *AuditEntry) []any {
	return []any{e.ID, e.Time.UnixMilli(), e.Operation, e.Subject, e.ConversionID,
		e.UserID, e.RequestID, e.RemoteAddr, e.Status, e.Error, e.DurationMs}
}

func (a *AuditLog) flushLoop() {
	defer close(a.done)
	ticker := time.NewTicker(auditInterval)
	defer ticker.Stop()
	batch := make([]*AuditEntry, 0, auditBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := runTx(ctx, a.db, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, insertAudit)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for _, e := range batch {
				if _, err := stmt.ExecContext(ctx, auditArgs(e)...); err != nil {
					return fmt.Errorf("insert %s: %w", e.ID, err)
				}
			}
			return nil
		})
		if err != nil {
			a.logger.Error("audit flush failed", "entries", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-a.stop:
			for {
				select {
				case e := <-a.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-a.ch:
			batch = append(batch, e)
			if len(batch) >= auditBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
