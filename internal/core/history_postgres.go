package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const historySchema = `
CREATE TABLE IF NOT EXISTS transfer_runs (
	id            UUID PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	dry_run       BOOLEAN NOT NULL DEFAULT FALSE,
	ok            BOOLEAN NOT NULL,
	files         INTEGER NOT NULL,
	valid_files   INTEGER NOT NULL,
	invalid_files INTEGER NOT NULL,
	transfers     INTEGER NOT NULL,
	ignored       INTEGER NOT NULL,
	ip_address    TEXT,
	user_agent    TEXT,
	payload       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS transfer_runs_started_at_idx ON transfer_runs (started_at DESC);
`

// PostgresHistory stores runs in PostgreSQL. The full run is kept as JSONB;
// the counters are duplicated into columns for listing.
type PostgresHistory struct {
	db DBTX
}

// NewPostgresHistory creates a store over db. Call EnsureSchema once at startup.
func NewPostgresHistory(db DBTX) *PostgresHistory {
	return &PostgresHistory{db: db}
}

// EnsureSchema creates the history table if it does not exist.
func (h *PostgresHistory) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

func (h *PostgresHistory) Save(ctx context.Context, run *Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	s := Summarize(run)

	query := `INSERT INTO transfer_runs
		(id, started_at, finished_at, dry_run, ok, files, valid_files, invalid_files, transfers, ignored, ip_address, user_agent, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			ok = EXCLUDED.ok,
			files = EXCLUDED.files,
			valid_files = EXCLUDED.valid_files,
			invalid_files = EXCLUDED.invalid_files,
			transfers = EXCLUDED.transfers,
			ignored = EXCLUDED.ignored,
			payload = EXCLUDED.payload`

	_, err = h.db.Exec(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt, run.DryRun, s.OK,
		s.Files, s.ValidFiles, s.InvalidFiles, s.Transfers, s.Ignored,
		run.IPAddress, run.UserAgent, payload)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (h *PostgresHistory) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	var payload []byte
	err := h.db.QueryRow(ctx, `SELECT payload FROM transfer_runs WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}

	var run Run
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}

func (h *PostgresHistory) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = DefaultHistorySize
	}

	rows, err := h.db.Query(ctx, `SELECT id, started_at, finished_at, dry_run, ok,
		files, valid_files, invalid_files, transfers, ignored
		FROM transfer_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]RunSummary, 0)
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.FinishedAt, &s.DryRun, &s.OK,
			&s.Files, &s.ValidFiles, &s.InvalidFiles, &s.Transfers, &s.Ignored); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Prune deletes runs started before cutoff.
func (h *PostgresHistory) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := h.db.Exec(ctx, `DELETE FROM transfer_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
