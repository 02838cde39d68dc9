package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	total      INTEGER NOT NULL DEFAULT 0,
	succeeded  INTEGER NOT NULL DEFAULT 0,
	failed     INTEGER NOT NULL DEFAULT 0,
	matched    INTEGER NOT NULL DEFAULT 0,
	records    JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveBatch(ctx context.Context, batch *model.Batch) error {
	if batch == nil || batch.ID == "" {
		return eris.New("postgres: batch id is required")
	}
	recordsJSON, err := json.Marshal(batch.Records)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal records")
	}

	sum := batch.Summary()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO batches (id, created_at, total, succeeded, failed, matched, records)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			total = EXCLUDED.total,
			succeeded = EXCLUDED.succeeded,
			failed = EXCLUDED.failed,
			matched = EXCLUDED.matched,
			records = EXCLUDED.records`,
		batch.ID, batch.CreatedAt.UTC(), sum.Total, sum.Succeeded, sum.Failed, sum.Matched, recordsJSON,
	)
	return eris.Wrapf(err, "postgres: save batch %s", batch.ID)
}

func (s *PostgresStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, created_at, records FROM batches WHERE id = $1`,
		id,
	)
	b, err := scanPgBatch(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get batch %s", id)
	}
	return b, nil
}

func (s *PostgresStore) LatestBatch(ctx context.Context) (*model.Batch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, created_at, records FROM batches ORDER BY created_at DESC LIMIT 1`,
	)
	b, err := scanPgBatch(row)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest batch")
	}
	return b, nil
}

func (s *PostgresStore) ListBatches(ctx context.Context, limit int) ([]model.BatchSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, total, succeeded, failed, matched FROM batches
		ORDER BY created_at DESC LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var out []model.BatchSummary
	for rows.Next() {
		var b model.BatchSummary
		if err := rows.Scan(&b.ID, &b.CreatedAt, &b.Total, &b.Succeeded, &b.Failed, &b.Matched); err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch summary")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate batches")
}

func scanPgBatch(row pgx.Row) (*model.Batch, error) {
	var b model.Batch
	var recordsJSON []byte

	err := row.Scan(&b.ID, &b.CreatedAt, &recordsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan batch")
	}

	if err := json.Unmarshal(recordsJSON, &b.Records); err != nil {
		return nil, eris.Wrap(err, "unmarshal records")
	}
	return &b, nil
}
