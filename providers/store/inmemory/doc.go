// Package inmemory provides a concurrency-safe, map-backed implementation of
// [store.Provider]. Records are lost when the process exits.
package inmemory
