package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/leofalp/nodeflow/providers/observability"
	"github.com/leofalp/nodeflow/providers/store"
)

const defaultTableName = "nodeflow_jobs"

// Querier is the subset of pgx used by Store. *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists job records in PostgreSQL.
type Store struct {
	db        Querier
	tableName string
	indexName string
	now       func() time.Time
}

var _ store.Provider = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTableName overrides the default table name. The name is quoted with
// pgx.Identifier since it is interpolated into statements.
func WithTableName(name string) Option {
	return func(s *Store) {
		s.tableName = pgx.Identifier{name}.Sanitize()
		s.indexName = pgx.Identifier{"idx_" + name + "_updated"}.Sanitize()
	}
}

// New returns a Store backed by db.
func New(db Querier, opts ...Option) *Store {
	s := &Store{
		db:        db,
		tableName: defaultTableName,
		indexName: "idx_" + defaultTableName + "_updated",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const columns = `id, project_id, state, reason, code, artifacts, created_at, updated_at`

// Save upserts record. The creation time of an existing row is preserved.
func (s *Store) Save(ctx context.Context, record store.Record) error {
	if record.ID == "" {
		return fmt.Errorf("pgstore: save: empty record id")
	}
	now := s.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	artifactsJSON, err := marshalNullableJSON(record.Artifacts)
	if err != nil {
		return fmt.Errorf("pgstore: marshal artifacts: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			state = EXCLUDED.state,
			reason = EXCLUDED.reason,
			code = EXCLUDED.code,
			artifacts = EXCLUDED.artifacts,
			updated_at = EXCLUDED.updated_at`, s.tableName, columns)

	_, err = s.db.Exec(ctx, query,
		record.ID,
		record.ProjectID,
		record.State,
		record.Reason,
		record.Code,
		artifactsJSON,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("pgstore: save %s: %w", record.ID, err)
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrStoreBackend, "postgres"),
			observability.String(observability.AttrStoreTable, s.tableName),
		)
	}
	return nil
}

// Get returns the record for id.
func (s *Store) Get(ctx context.Context, id string) (store.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, columns, s.tableName)

	record, err := scanRecord(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Record{}, fmt.Errorf("%w: %s", store.ErrRecordNotFound, id)
		}
		return store.Record{}, fmt.Errorf("pgstore: get %s: %w", id, err)
	}
	return record, nil
}

// List returns records ordered by updated_at, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]store.Record, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY updated_at DESC, id ASC LIMIT $1`, columns, s.tableName)
		rows, err = s.db.Query(ctx, query, limit)
	} else {
		query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY updated_at DESC, id ASC`, columns, s.tableName)
		rows, err = s.db.Query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: list: %w", err)
	}
	defer rows.Close()

	records := []store.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("pgstore: scan row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: iterate rows: %w", err)
	}
	return records, nil
}

// Delete removes the record for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.tableName)
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("pgstore: delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrRecordNotFound, id)
	}
	return nil
}

func scanRecord(row pgx.Row) (store.Record, error) {
	var record store.Record
	var artifactsJSON []byte
	if err := row.Scan(
		&record.ID, &record.ProjectID, &record.State, &record.Reason, &record.Code,
		&artifactsJSON, &record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return store.Record{}, err
	}
	if len(artifactsJSON) > 0 {
		if err := json.Unmarshal(artifactsJSON, &record.Artifacts); err != nil {
			return store.Record{}, fmt.Errorf("decode artifacts: %w", err)
		}
	}
	return record, nil
}

// marshalNullableJSON returns nil for empty maps so the column stays NULL.
func marshalNullableJSON(value map[string]any) ([]byte, error) {
	if len(value) == 0 {
		return nil, nil
	}
	return json.Marshal(value)
}
