package pgstore

import (
	"context"
	"fmt"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
    id          TEXT PRIMARY KEY,
    project_id  TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    code        TEXT NOT NULL DEFAULT '',
    artifacts   JSONB,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// createUpdatedIndexSQL backs List, which orders by updated_at.
const createUpdatedIndexSQL = `CREATE INDEX IF NOT EXISTS %s ON %s (updated_at DESC)`

// EnsureSchema creates the jobs table and its index if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createTableSQL, s.tableName)); err != nil {
		return fmt.Errorf("pgstore: create table: %w", err)
	}
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createUpdatedIndexSQL, s.indexName, s.tableName)); err != nil {
		return fmt.Errorf("pgstore: create updated_at index: %w", err)
	}
	return nil
}
