package store

import (
	"context"
	"errors"
	"time"
)

// ErrRecordNotFound is returned by Get and Delete for unknown job ids.
var ErrRecordNotFound = errors.New("store: record not found")

// Record is the persisted view of a job.
type Record struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"projectId,omitempty"`
	State     string         `json:"state"`
	Reason    string         `json:"reason,omitempty"`
	Code      string         `json:"code,omitempty"`
	Artifacts map[string]any `json:"artifacts,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Provider persists job records. Save is an upsert keyed by Record.ID.
type Provider interface {
	Save(ctx context.Context, record Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns the most recently updated records first, at most limit of
	// them. A non-positive limit returns everything.
	List(ctx context.Context, limit int) ([]Record, error)
	Delete(ctx context.Context, id string) error
}
