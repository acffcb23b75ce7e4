package inmemory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/leofalp/nodeflow/providers/observability"
	"github.com/leofalp/nodeflow/providers/store"
)

// MapStore keeps job records in a map guarded by a RWMutex.
type MapStore struct {
	mu      sync.RWMutex
	records map[string]store.Record
}

// New returns an empty MapStore.
func New() *MapStore {
	return &MapStore{records: make(map[string]store.Record)}
}

var _ store.Provider = (*MapStore)(nil)

// Save stores a copy of record, replacing any previous version.
func (s *MapStore) Save(ctx context.Context, record store.Record) error {
	if record.ID == "" {
		return fmt.Errorf("inmemory: save: empty record id")
	}
	record.Artifacts = maps.Clone(record.Artifacts)

	s.mu.Lock()
	if previous, ok := s.records[record.ID]; ok && record.CreatedAt.IsZero() {
		record.CreatedAt = previous.CreatedAt
	}
	s.records[record.ID] = record
	total := len(s.records)
	s.mu.Unlock()

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrStoreBackend, "inmemory"),
			observability.Int("store.records", total),
		)
	}
	return nil
}

// Get returns the record for id.
func (s *MapStore) Get(_ context.Context, id string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return store.Record{}, fmt.Errorf("%w: %s", store.ErrRecordNotFound, id)
	}
	record.Artifacts = maps.Clone(record.Artifacts)
	return record, nil
}

// List returns records ordered by UpdatedAt, newest first.
func (s *MapStore) List(_ context.Context, limit int) ([]store.Record, error) {
	s.mu.RLock()
	records := make([]store.Record, 0, len(s.records))
	for _, record := range s.records {
		record.Artifacts = maps.Clone(record.Artifacts)
		records = append(records, record)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Delete removes the record for id.
func (s *MapStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", store.ErrRecordNotFound, id)
	}
	delete(s.records, id)
	return nil
}
