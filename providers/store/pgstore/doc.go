// Package pgstore implements [store.Provider] on PostgreSQL through pgx.
//
// Records live in a single table (default "nodeflow_jobs") with artifacts
// stored as JSONB. Call [Store.EnsureSchema] once at startup during
// development; production deployments should manage the table with their
// own migration tooling.
//
// The store accepts any [Querier], so a *pgxpool.Pool and a pgx.Tx both work.
package pgstore
