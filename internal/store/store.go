package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sqlc-dev/pqtype"
)

// Store wraps access to the audit database.
type Store struct {
	DB *sql.DB
}

// New creates a new Store that uses a shared *sql.DB with pooling.
func New(database *sql.DB) *Store {
	return &Store{DB: database}
}

// Open opens a pooled pgx-backed *sql.DB for dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return New(db), nil
}

// AuditEvent is one analysis request. It never carries the user's free
// text, uploaded content or extracted values.
type AuditEvent struct {
	ID        uuid.UUID
	Kind      string
	Status    AuditStatus
	ErrorCode string
	Provider  string
	Model     string
	LatencyMs int64
	RequestID string
	Metadata  any
	CreatedAt time.Time
}

const insertAuditEvent = `
INSERT INTO analysis_audit (id, kind, status, error_code, provider, model, latency_ms, request_id, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// InsertAuditEvent stores ev. A zero ID or CreatedAt is filled in.
func (s *Store) InsertAuditEvent(ctx context.Context, ev AuditEvent) error {
	if ev.ID == uuid.Nil {
		if id, err := uuid.NewV7(); err == nil {
			ev.ID = id
		} else {
			ev.ID = uuid.New()
		}
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	var meta pqtype.NullRawMessage
	if ev.Metadata != nil {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return err
		}
		meta = pqtype.NullRawMessage{RawMessage: b, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, insertAuditEvent,
		ev.ID,
		ev.Kind,
		string(ev.Status),
		nullString(ev.ErrorCode),
		nullString(ev.Provider),
		nullString(ev.Model),
		ev.LatencyMs,
		nullString(ev.RequestID),
		meta,
		ev.CreatedAt,
	)
	return err
}

// DeleteAuditEventsBefore removes audit rows created before cutoff and
// reports how many were deleted.
func (s *Store) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM analysis_audit WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountAuditEvents returns the number of audit rows per status for kind.
func (s *Store) CountAuditEvents(ctx context.Context, kind string) (map[string]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, count(*) FROM analysis_audit WHERE kind = $1 GROUP BY status`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
