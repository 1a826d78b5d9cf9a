package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	timestamp     DATETIME NOT NULL,
	provider      TEXT NOT NULL,
	model         TEXT,
	operation     TEXT,
	status        TEXT NOT NULL,
	latency_ms    INTEGER NOT NULL DEFAULT 0,
	fallback_from TEXT,
	error         TEXT,
	error_type    TEXT,
	detail        TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_provider ON audit_records(provider, timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_records(kind, timestamp);

CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER PRIMARY KEY,
	applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// StoreConfig configures the SQLite audit backend.
type StoreConfig struct {
	// Path is the database file path. Parent directories are created.
	Path string

	// MaxOpenConns bounds the connection pool. Default 10.
	MaxOpenConns int

	// BusyTimeout is how long writers wait on a locked database.
	// Default 5 seconds.
	BusyTimeout time.Duration
}

// Store is the SQLite-backed audit trail.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens the database at cfg.Path, enables WAL mode, and
// applies the schema.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("audit: failed to create %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	s := &Store{
		db:     db,
		logger: slog.Default().With("component", "audit.store"),
	}
	if err := s.initialize(cfg.BusyTimeout); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("audit store initialized", "path", cfg.Path)
	return s, nil
}

func (s *Store) initialize(busyTimeout time.Duration) error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("audit: failed to enable WAL: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("audit: failed to set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("audit: failed to create schema: %w", err)
	}
	if _, err := s.db.Exec(
		"INSERT OR IGNORE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("audit: failed to record schema version: %w", err)
	}
	return nil
}

// Record persists one audit record.
func (s *Store) Record(ctx context.Context, rec *Record) error {
	var detail any
	if len(rec.Detail) > 0 {
		raw, err := json.Marshal(rec.Detail)
		if err != nil {
			return fmt.Errorf("audit: failed to encode detail: %w", err)
		}
		detail = string(raw)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (
			id, kind, timestamp, provider, model, operation,
			status, latency_ms, fallback_from, error, error_type, detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.Timestamp.UTC(), rec.Provider, nullable(rec.Model),
		nullable(rec.Operation), rec.Status, rec.LatencyMS, nullable(rec.FallbackFrom),
		nullable(rec.Error), nullable(rec.ErrorType), detail,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to store record: %w", err)
	}
	return nil
}

// Recent returns records matching the query, newest first.
func (s *Store) Recent(ctx context.Context, q Query) ([]*Record, error) {
	where, args := buildWhere(q)
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	sqlQuery := `SELECT id, kind, timestamp, provider, model, operation,
		status, latency_ms, fallback_from, error, error_type, detail
		FROM audit_records`
	if where != "" {
		sqlQuery += " WHERE " + where
	}
	sqlQuery += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query failed: %w", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("audit: scan failed: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: query failed: %w", err)
	}
	return records, nil
}

// Count returns the number of records matching the query.
func (s *Store) Count(ctx context.Context, q Query) (int64, error) {
	where, args := buildWhere(q)
	sqlQuery := "SELECT COUNT(*) FROM audit_records"
	if where != "" {
		sqlQuery += " WHERE " + where
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("audit: count failed: %w", err)
	}
	return count, nil
}

// DeleteBefore removes records older than cutoff and returns how many
// were deleted.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_records WHERE timestamp < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("audit: delete failed: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit: delete failed: %w", err)
	}
	return deleted, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("audit: close failed: %w", err)
	}
	return nil
}

func buildWhere(q Query) (string, []any) {
	var conditions []string
	var args []any

	if q.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if q.Provider != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, q.Provider)
	}
	if q.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, q.Status)
	}
	if q.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, q.Since.UTC())
	}

	return strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var rec Record
	var kind string
	var model, operation, fallbackFrom, errVal, errType, detail sql.NullString

	err := rows.Scan(
		&rec.ID, &kind, &rec.Timestamp, &rec.Provider, &model, &operation,
		&rec.Status, &rec.LatencyMS, &fallbackFrom, &errVal, &errType, &detail,
	)
	if err != nil {
		return nil, err
	}

	rec.Kind = Kind(kind)
	rec.Model = model.String
	rec.Operation = operation.String
	rec.FallbackFrom = fallbackFrom.String
	rec.Error = errVal.String
	rec.ErrorType = errType.String
	if detail.Valid && detail.String != "" {
		json.Unmarshal([]byte(detail.String), &rec.Detail)
	}
	return &rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
