// Package store defines the Provider interface for job record persistence.
// A record keeps what callers need after the in-memory job is gone: its
// state, the termination reason and code, and the artifacts it produced.
// Implementations live in the sibling packages
// [github.com/leofalp/nodeflow/providers/store/inmemory] and
// [github.com/leofalp/nodeflow/providers/store/pgstore].
package store
