//go:build integration

package pgstore

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/leofalp/nodeflow/providers/store"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("nodeflow_test"),
		postgres.WithUsername("nodeflow"),
		postgres.WithPassword("nodeflow"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("pgstore: failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("pgstore: failed to get connection string: %v", err)
	}

	testPool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("pgstore: failed to create pool: %v", err)
	}
	if err := New(testPool).EnsureSchema(ctx); err != nil {
		log.Fatalf("pgstore: failed to create schema: %v", err)
	}

	code := m.Run()

	testPool.Close()
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		log.Printf("pgstore: failed to terminate container: %v", err)
	}
	os.Exit(code)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(testPool)
	id := "job-" + t.Name()

	require.NoError(t, s.Save(ctx, store.Record{ID: id, ProjectID: "p", State: "running"}))
	require.NoError(t, s.Save(ctx, store.Record{
		ID:        id,
		ProjectID: "p",
		State:     "completed",
		Artifacts: map[string]any{"sum": map[string]any{"out": 15.0}},
	}))

	record, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "completed", record.State)
	assert.Equal(t, map[string]any{"sum": map[string]any{"out": 15.0}}, record.Artifacts)
	assert.False(t, record.CreatedAt.After(record.UpdatedAt))

	records, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, records)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestStore_CustomTable(t *testing.T) {
	ctx := context.Background()
	s := New(testPool, WithTableName("nodeflow_jobs_custom"))
	require.NoError(t, s.EnsureSchema(ctx))

	require.NoError(t, s.Save(ctx, store.Record{ID: "job-custom", State: "created"}))
	record, err := s.Get(ctx, "job-custom")
	require.NoError(t, err)
	assert.Equal(t, "created", record.State)
}
