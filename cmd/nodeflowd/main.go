// Command nodeflowd serves the nodeflow HTTP API.
//
// Settings come from the environment and an optional .env file; see
// internal/config. Job records are kept in Postgres when
// NODEFLOW_DATABASE_URL is set and in memory otherwise.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/internal/config"
	"github.com/leofalp/nodeflow/internal/server"
	"github.com/leofalp/nodeflow/providers/builtin"
	"github.com/leofalp/nodeflow/providers/integration/documents"
	"github.com/leofalp/nodeflow/providers/integration/forms"
	"github.com/leofalp/nodeflow/providers/observability"
	"github.com/leofalp/nodeflow/providers/observability/slogobs"
	"github.com/leofalp/nodeflow/providers/store"
	"github.com/leofalp/nodeflow/providers/store/inmemory"
	"github.com/leofalp/nodeflow/providers/store/pgstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "nodeflowd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	observer := slogobs.New()

	jobStore, closeStore, err := openStore(ctx, cfg, observer)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := append(cfg.EngineOptions(), engine.WithObserver(observer), engine.WithStore(jobStore))
	e := engine.New(opts...)
	if err := builtin.Register(e); err != nil {
		return err
	}
	if err := registerIntegrations(ctx, e, cfg, observer); err != nil {
		return err
	}

	observer.Info(ctx, "Engine ready",
		observability.Int("engine.node_types", len(e.Definitions())),
		observability.Int("engine.integrations", len(e.Integrations())),
	)
	return server.New(e, server.WithRunContext(ctx)).ListenAndServe(ctx, cfg.Addr)
}

// registerIntegrations installs the integrations whose service URL is
// configured; the others stay disabled.
func registerIntegrations(ctx context.Context, e *engine.Engine, cfg *config.Config, observer observability.Provider) error {
	integrations := []struct {
		id      string
		baseURL string
		build   func(baseURL string) engine.Integration
	}{
		{forms.ID, cfg.FormsAPIURL, func(baseURL string) engine.Integration { return forms.New(forms.WithBaseURL(baseURL)) }},
		{documents.ID, cfg.DocumentsAPIURL, func(baseURL string) engine.Integration { return documents.New(documents.WithBaseURL(baseURL)) }},
	}
	for _, integration := range integrations {
		if integration.baseURL == "" {
			observer.Info(ctx, "Integration disabled, no service URL configured",
				observability.String(observability.AttrIntegrationID, integration.id),
			)
			continue
		}
		if err := e.RegisterIntegration(integration.build(integration.baseURL)); err != nil {
			return err
		}
	}
	return nil
}

// openStore connects to Postgres when a database URL is configured.
func openStore(ctx context.Context, cfg *config.Config, observer observability.Provider) (store.Provider, func(), error) {
	if cfg.DatabaseURL == "" {
		observer.Info(ctx, "Keeping job records in memory")
		return inmemory.New(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging postgres: %w", err)
	}

	jobStore := pgstore.New(pool)
	if err := jobStore.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	observer.Info(ctx, "Keeping job records in postgres",
		observability.String(observability.AttrStoreBackend, "postgres"),
	)
	return jobStore, pool.Close, nil
}
