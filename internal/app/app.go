package app

import (
	"context"
	"fmt"

	"arbiter/internal/config"
	"arbiter/internal/gateway/backend"
	"arbiter/internal/logger"
	"arbiter/internal/prompt"
	"arbiter/internal/session"
	apihttp "arbiter/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App holds the assembled service: backend registry, session orchestrator and HTTP surface.
type App struct {
	cfg      *config.Config
	registry *backend.Registry
	prompts  *prompt.Registry
	sessions *session.Orchestrator
	apiHTTP  *apihttp.Server
	Summary  *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run serves the HTTP API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		logger.InfoBlock(a.Summary.String())
	}
	if a.apiHTTP == nil {
		return fmt.Errorf("api http server not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.apiHTTP.Start(ctx); err != nil {
			return fmt.Errorf("api http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Sessions exposes the orchestrator for one-shot callers such as the CLI.
func (a *App) Sessions() *session.Orchestrator {
	if a == nil {
		return nil
	}
	return a.sessions
}

// Backends exposes the backend registry.
func (a *App) Backends() *backend.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}
