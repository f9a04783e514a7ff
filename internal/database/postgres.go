// internal/database/postgres.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	body       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_body_idx ON documents USING GIN (body jsonb_path_ops);
`

// PostgresStore keeps documents as JSONB rows of a single documents table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the documents table and its index if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

// Get fetches one document by id.
func (s *PostgresStore) Get(ctx context.Context, collection, id string, dest any) error {
	var body []byte
	q := `SELECT body FROM documents WHERE collection = $1 AND id = $2`
	err := s.pool.QueryRow(ctx, q, collection, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(collection, id)
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// Set upserts a document. A merge concatenates the JSONB objects so the new
// top-level keys win.
func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc any, merge bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	q := `
		INSERT INTO documents (collection, id, body, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (collection, id)
		DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
	`
	if merge {
		q = `
		INSERT INTO documents (collection, id, body, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (collection, id)
		DO UPDATE SET body = documents.body || EXCLUDED.body, updated_at = NOW()
	`
	}

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, collection, id, string(data))
		return e
	})
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query selects documents by a JSON path comparison.
func (s *PostgresStore) Query(ctx context.Context, collection, field string, op Op, value any) ([]json.RawMessage, error) {
	if err := checkOp(op); err != nil {
		return nil, err
	}
	val, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode query value: %w", err)
	}

	var q string
	switch op {
	case OpEqual:
		q = `SELECT body FROM documents WHERE collection = $1 AND body #> $2::text[] = $3::jsonb ORDER BY updated_at`
	case OpArrayContains:
		q = `SELECT body FROM documents WHERE collection = $1 AND body #> $2::text[] @> jsonb_build_array($3::jsonb) ORDER BY updated_at`
	}

	rows, err := s.pool.Query(ctx, q, collection, fieldPath(field), string(val))
	if err != nil {
		return nil, fmt.Errorf("query %s where %s %s: %w", collection, field, op, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		docs = append(docs, json.RawMessage(body))
	}
	return docs, rows.Err()
}
