package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/mediadata/internal/tabular"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS portal_syncs (
	id         uuid PRIMARY KEY,
	headers    jsonb NOT NULL,
	row_count  integer NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS portal_sync_rows (
	sync_id  uuid NOT NULL REFERENCES portal_syncs(id) ON DELETE CASCADE,
	position integer NOT NULL,
	data     jsonb NOT NULL,
	PRIMARY KEY (sync_id, position)
);`

// PoolConfig holds connection pool settings for the portal database.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PostgresSink writes each sync to the portal database in one transaction.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects, verifies the connection and ensures the
// schema exists.
func NewPostgresSink(ctx context.Context, cfg PoolConfig) (*PostgresSink, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("portal: parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("portal: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("portal: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("portal: ensure schema: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}

// Sync stores headers and rows. Rows are saved as JSON objects with keys
// in header order.
func (s *PostgresSink) Sync(ctx context.Context, headers []string, rows []tabular.Row) (*Ack, error) {
	id := uuid.New()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("portal: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	headerJSON, err := json.Marshal(nonNil(headers))
	if err != nil {
		return nil, fmt.Errorf("portal: encode headers: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO portal_syncs (id, headers, row_count) VALUES ($1, $2, $3)`,
		id, json.RawMessage(headerJSON), len(rows),
	); err != nil {
		return nil, fmt.Errorf("portal: insert sync: %w", err)
	}

	copyRows, err := encodeRows(id, headers, rows)
	if err != nil {
		return nil, err
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"portal_sync_rows"},
		[]string{"sync_id", "position", "data"},
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return nil, fmt.Errorf("portal: copy rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("portal: commit: %w", err)
	}

	slog.InfoContext(ctx, "portal sync stored", "sync_id", id.String(), "rows", n)
	return Acknowledge(id.String(), headers, rows), nil
}

// encodeRows turns rows into COPY input: (sync_id, position, data).
func encodeRows(id uuid.UUID, headers []string, rows []tabular.Row) ([][]any, error) {
	out := make([][]any, len(rows))
	for i, r := range rows {
		data, err := json.Marshal(tabular.RowObject(headers, r))
		if err != nil {
			return nil, fmt.Errorf("portal: encode row %d: %w", i, err)
		}
		out[i] = []any{id, int32(i), json.RawMessage(data)}
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
