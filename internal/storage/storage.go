package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Angel-Nizama/web-operaciones-v2/pkg/matching"
)

// ErrNoSnapshot is returned when the requested snapshot does not exist.
var ErrNoSnapshot = errors.New("no snapshot stored")

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
  id             INTEGER PRIMARY KEY,
  created_at     TEXT NOT NULL,
  result_count   INTEGER NOT NULL,
  execution_time REAL NOT NULL DEFAULT 0,
  config_json    TEXT NOT NULL,
  results_json   TEXT NOT NULL,
  history_json   TEXT
);
CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SnapshotInfo describes a stored snapshot without its results.
type SnapshotInfo struct {
	ID            int64                         `json:"id"`
	CreatedAt     time.Time                     `json:"created_at"`
	ResultCount   int                           `json:"result_count"`
	ExecutionTime float64                       `json:"execution_time"`
	Config        matching.ScoringConfiguration `json:"config"`
}

// SaveSnapshot archives snap and returns its id.
func (d *DB) SaveSnapshot(ctx context.Context, snap *matching.Snapshot) (int64, error) {
	if snap == nil {
		return 0, errors.New("nil snapshot")
	}
	cfg, err := json.Marshal(snap.Config())
	if err != nil {
		return 0, fmt.Errorf("encode config: %w", err)
	}
	results := snap.Results()
	if results == nil {
		results = []matching.MatchResult{}
	}
	res, err := json.Marshal(results)
	if err != nil {
		return 0, fmt.Errorf("encode results: %w", err)
	}

	r, err := d.sql.ExecContext(ctx,
		`INSERT INTO snapshots(created_at, result_count, execution_time, config_json, results_json, history_json) VALUES(?,?,?,?,?,?)`,
		snap.CreatedAt().UTC().Format(timeLayout), snap.Len(), snap.ExecutionTime(), string(cfg), string(res), nullIfEmpty(string(snap.History())))
	if err != nil {
		return 0, err
	}
	return r.LastInsertId()
}

// LatestSnapshot returns the most recently stored snapshot.
func (d *DB) LatestSnapshot(ctx context.Context) (int64, *matching.Snapshot, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT id, created_at, execution_time, config_json, results_json, history_json FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanSnapshot(row)
}

// GetSnapshot returns the snapshot with the given id.
func (d *DB) GetSnapshot(ctx context.Context, id int64) (*matching.Snapshot, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT id, created_at, execution_time, config_json, results_json, history_json FROM snapshots WHERE id = ?`, id)
	_, snap, err := scanSnapshot(row)
	return snap, err
}

func scanSnapshot(row *sql.Row) (int64, *matching.Snapshot, error) {
	var (
		id                  int64
		createdAtStr        string
		execTime            float64
		cfgJSON, resultJSON string
		historyJSON         sql.NullString
	)
	if err := row.Scan(&id, &createdAtStr, &execTime, &cfgJSON, &resultJSON, &historyJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrNoSnapshot
		}
		return 0, nil, err
	}

	var cfg matching.ScoringConfiguration
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return 0, nil, fmt.Errorf("decode config of snapshot %d: %w", id, err)
	}
	var results []matching.MatchResult
	if err := json.Unmarshal([]byte(resultJSON), &results); err != nil {
		return 0, nil, fmt.Errorf("decode results of snapshot %d: %w", id, err)
	}

	opts := []matching.SnapshotOption{
		matching.WithCreatedAt(parseTime(createdAtStr)),
		matching.WithExecutionTime(execTime),
	}
	if historyJSON.Valid {
		opts = append(opts, matching.WithHistory(json.RawMessage(historyJSON.String)))
	}
	return id, matching.NewSnapshot(results, cfg, opts...), nil
}

// ListSnapshots returns the most recent snapshots, newest first.
func (d *DB) ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.sql.QueryContext(ctx, `SELECT id, created_at, result_count, execution_time, config_json FROM snapshots ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SnapshotInfo{}
	for rows.Next() {
		var (
			s            SnapshotInfo
			createdAtStr string
			cfgJSON      string
		)
		if err := rows.Scan(&s.ID, &createdAtStr, &s.ResultCount, &s.ExecutionTime, &cfgJSON); err != nil {
			return nil, err
		}
		s.CreatedAt = parseTime(createdAtStr)
		if err := json.Unmarshal([]byte(cfgJSON), &s.Config); err != nil {
			return nil, fmt.Errorf("decode config of snapshot %d: %w", s.ID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// PruneSnapshots keeps the newest keep snapshots and deletes the rest.
func (d *DB) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	r, err := d.sql.ExecContext(ctx, `DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY created_at DESC, id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, err
	}
	return r.RowsAffected()
}

// parseTime accepts RFC3339 and the SQLite CURRENT_TIMESTAMP format.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
