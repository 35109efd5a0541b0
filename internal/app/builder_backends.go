package app

import (
	"strings"
	"time"

	"arbiter/internal/config"
	"arbiter/internal/gateway/arbiter"
	"arbiter/internal/gateway/backend"
	"arbiter/internal/logger"
	"arbiter/internal/prompt"
	"arbiter/internal/session"
)

func buildRegistry(cfg config.BackendsConfig) (*backend.Registry, error) {
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	models := make([]backend.ModelCfg, 0, len(resolved))
	for _, m := range resolved {
		models = append(models, backend.ModelCfg{
			ID:         m.ID,
			Kind:       m.Kind,
			APIURL:     m.APIURL,
			APIKey:     m.APIKey,
			Model:      m.Model,
			Enabled:    m.Enabled,
			Headers:    m.Headers,
			MaxRetries: m.MaxRetries,
		})
	}
	return backend.BuildFromConfig(models, backend.NewHTTPClient())
}

func buildArbiter(cfg config.ArbiterConfig) session.Arbiter {
	if !cfg.Enabled || strings.TrimSpace(cfg.URL) == "" {
		logger.Infof("arbitration disabled")
		return nil
	}
	client := arbiter.NewClient(cfg.URL, cfg.ResolveAPIKey(), time.Duration(cfg.TimeoutSeconds)*time.Second)
	client.MaxRetries = cfg.MaxRetries
	client.HTTPClient = backend.NewHTTPClient()
	return client
}

func buildPrompts(cfg config.PromptConfig) (*prompt.Registry, error) {
	return prompt.NewRegistry(cfg.RegistryPath, cfg.Watch)
}
