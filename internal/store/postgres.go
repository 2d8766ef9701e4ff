package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS pipeassist_pipelines (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS pipeassist_executions (
	id          TEXT PRIMARY KEY,
	pipeline_id TEXT NOT NULL,
	doc         JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS pipeassist_executions_pipeline_idx ON pipeassist_executions (pipeline_id);
CREATE TABLE IF NOT EXISTS pipeassist_audit (
	id        TEXT PRIMARY KEY,
	doc       JSONB NOT NULL,
	logged_at TIMESTAMPTZ NOT NULL
);
`

// PostgresBackend stores snapshots as JSONB rows. Persist replaces every
// row inside one transaction.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

var _ Backend = (*PostgresBackend)(nil)

// NewPostgresBackend connects to databaseURL and verifies the connection.
func NewPostgresBackend(ctx context.Context, databaseURL string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

// NewPostgresBackendFromPool wraps an existing pool. The backend takes
// ownership and closes it.
func NewPostgresBackendFromPool(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// Name implements Backend.
func (b *PostgresBackend) Name() string { return "postgres" }

// Migrate creates the tables if they do not exist.
func (b *PostgresBackend) Migrate(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Load implements Backend.
func (b *PostgresBackend) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	var err error
	if snap.Pipelines, err = queryDocs[connector.Pipeline](ctx, b.pool,
		`SELECT doc FROM pipeassist_pipelines ORDER BY updated_at`); err != nil {
		return nil, err
	}
	if snap.Executions, err = queryDocs[connector.Execution](ctx, b.pool,
		`SELECT doc FROM pipeassist_executions ORDER BY started_at`); err != nil {
		return nil, err
	}
	if snap.Audit, err = queryDocs[connector.AuditEntry](ctx, b.pool,
		`SELECT doc FROM pipeassist_audit ORDER BY logged_at`); err != nil {
		return nil, err
	}
	return snap, nil
}

// Persist implements Backend.
func (b *PostgresBackend) Persist(ctx context.Context, snap *Snapshot) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM pipeassist_pipelines`)
	batch.Queue(`DELETE FROM pipeassist_executions`)
	batch.Queue(`DELETE FROM pipeassist_audit`)
	for _, p := range snap.Pipelines {
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("postgres: encode pipeline %s: %w", p.ID, err)
		}
		batch.Queue(`INSERT INTO pipeassist_pipelines (id, doc, updated_at) VALUES ($1, $2, $3)`,
			p.ID, doc, p.UpdatedAt)
	}
	for _, e := range snap.Executions {
		doc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("postgres: encode execution %s: %w", e.ID, err)
		}
		batch.Queue(`INSERT INTO pipeassist_executions (id, pipeline_id, doc, started_at) VALUES ($1, $2, $3, $4)`,
			e.ID, e.PipelineID, doc, e.StartedAt)
	}
	for _, a := range snap.Audit {
		doc, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("postgres: encode audit %s: %w", a.ID, err)
		}
		batch.Queue(`INSERT INTO pipeassist_audit (id, doc, logged_at) VALUES ($1, $2, $3)`,
			a.ID, doc, a.Timestamp)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: write snapshot: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Close implements Backend.
func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

func queryDocs[T any](ctx context.Context, pool *pgxpool.Pool, sql string) ([]T, error) {
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("postgres: decode: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return out, nil
}
