package app

import (
	"context"
	"fmt"
	"time"

	"arbiter/internal/config"
	"arbiter/internal/gateway/backend"
	"arbiter/internal/logger"
	"arbiter/internal/prompt"
	"arbiter/internal/session"
	apihttp "arbiter/internal/transport/http/api"
)

type AppBuilder struct {
	cfg *config.Config

	registryFn func(config.BackendsConfig) (*backend.Registry, error)
	arbiterFn  func(config.ArbiterConfig) session.Arbiter
	promptsFn  func(config.PromptConfig) (*prompt.Registry, error)
	apiHTTPFn  func(config.AppConfig, apihttp.SessionRunner, apihttp.ModelCatalog, []string) (*apihttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithRegistry replaces the configured backends, typically with fakes in tests.
func WithRegistry(reg *backend.Registry) AppBuilderOption {
	return func(b *AppBuilder) {
		b.registryFn = func(config.BackendsConfig) (*backend.Registry, error) { return reg, nil }
	}
}

// WithArbiter replaces the configured arbitration client.
func WithArbiter(a session.Arbiter) AppBuilderOption {
	return func(b *AppBuilder) {
		b.arbiterFn = func(config.ArbiterConfig) session.Arbiter { return a }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		registryFn: buildRegistry,
		arbiterFn:  buildArbiter,
		promptsFn:  buildPrompts,
		apiHTTPFn:  buildAPIHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	registry, err := b.registryFn(cfg.Backends)
	if err != nil {
		return nil, fmt.Errorf("build backends: %w", err)
	}
	logger.Infof("✓ registered %d backends: %v", len(registry.IDs()), registry.IDs())

	prompts, err := b.promptsFn(cfg.Prompt)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	normalizer, err := session.NewNormalizer(cfg.Schema.Path)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Session.TimeoutSeconds) * time.Second
	invoker := session.NewInvoker(registry, timeout)
	arb := b.arbiterFn(cfg.Arbiter)
	var renderer session.PromptRenderer
	if prompts != nil {
		renderer = prompts
	}
	orchestrator := session.NewOrchestrator(invoker, normalizer, session.NewAggregatorGateway(arb), renderer, session.Options{
		Timeout:       timeout,
		MaxRounds:     cfg.Session.MaxRounds,
		DefaultModels: cfg.Session.DefaultModels,
		PromptID:      cfg.Prompt.PromptID,
		PromptVersion: cfg.Prompt.PromptVersion,
	})

	server, err := b.apiHTTPFn(cfg.App, orchestrator, registry, orchestrator.DefaultModels())
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		registry: registry,
		prompts:  prompts,
		sessions: orchestrator,
		apiHTTP:  server,
		Summary:  newStartupSummary(cfg, registry, prompts, arb != nil),
	}, nil
}
