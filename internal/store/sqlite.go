package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bankscan/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	total      INTEGER NOT NULL DEFAULT 0,
	succeeded  INTEGER NOT NULL DEFAULT 0,
	failed     INTEGER NOT NULL DEFAULT 0,
	matched    INTEGER NOT NULL DEFAULT 0,
	records    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveBatch(ctx context.Context, batch *model.Batch) error {
	if batch == nil || batch.ID == "" {
		return eris.New("sqlite: batch id is required")
	}
	recordsJSON, err := json.Marshal(batch.Records)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal records")
	}

	sum := batch.Summary()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batches (id, created_at, total, succeeded, failed, matched, records)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total = excluded.total,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			matched = excluded.matched,
			records = excluded.records`,
		batch.ID, batch.CreatedAt.UTC(), sum.Total, sum.Succeeded, sum.Failed, sum.Matched, string(recordsJSON),
	)
	return eris.Wrapf(err, "sqlite: save batch %s", batch.ID)
}

func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, records FROM batches WHERE id = ?`,
		id,
	)
	b, err := scanBatch(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch %s", id)
	}
	return b, nil
}

func (s *SQLiteStore) LatestBatch(ctx context.Context) (*model.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, records FROM batches ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	)
	b, err := scanBatch(row)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest batch")
	}
	return b, nil
}

func (s *SQLiteStore) ListBatches(ctx context.Context, limit int) ([]model.BatchSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, total, succeeded, failed, matched FROM batches
		ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.BatchSummary
	for rows.Next() {
		var b model.BatchSummary
		if err := rows.Scan(&b.ID, &b.CreatedAt, &b.Total, &b.Succeeded, &b.Failed, &b.Matched); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch summary")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate batches")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanBatch(row scannable) (*model.Batch, error) {
	var b model.Batch
	var recordsJSON string

	err := row.Scan(&b.ID, &b.CreatedAt, &recordsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan batch")
	}

	if err := json.Unmarshal([]byte(recordsJSON), &b.Records); err != nil {
		return nil, eris.Wrap(err, "unmarshal records")
	}
	return &b, nil
}
