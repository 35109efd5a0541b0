package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Session.validate(); err != nil {
		return err
	}
	backends, err := c.Backends.Resolve()
	if err != nil {
		return err
	}
	if err := validateBackends(backends); err != nil {
		return err
	}
	if err := validateDefaultModels(c.Session.DefaultModels, backends); err != nil {
		return err
	}
	if err := c.Arbiter.validate(); err != nil {
		return err
	}
	return nil
}

func (s *SessionConfig) validate() error {
	if s.TimeoutSeconds <= 0 {
		return fmt.Errorf("session.timeout_seconds must be > 0")
	}
	if s.MaxRounds != 1 {
		return fmt.Errorf("session.max_rounds only supports 1, got %d", s.MaxRounds)
	}
	if len(s.DefaultModels) == 0 {
		return fmt.Errorf("session.default_models requires at least one model id")
	}
	return nil
}

func validateBackends(backends []ResolvedBackend) error {
	if len(backends) == 0 {
		return fmt.Errorf("backends.models requires at least one model")
	}
	seen := make(map[string]bool, len(backends))
	for _, b := range backends {
		if b.ID == "" {
			return fmt.Errorf("backends.models contains entry without id (kind=%s)", b.Kind)
		}
		key := strings.ToLower(b.ID)
		if seen[key] {
			return fmt.Errorf("backends.models contains duplicate id: %s", b.ID)
		}
		seen[key] = true
		if !knownBackendKind(b.Kind) {
			return fmt.Errorf("backends.models.%s has unsupported kind %q", b.ID, b.Kind)
		}
		if b.Kind == BackendKindMock {
			continue
		}
		if b.Model == "" {
			return fmt.Errorf("backends.models.%s missing model", b.ID)
		}
	}
	return nil
}

func validateDefaultModels(ids []string, backends []ResolvedBackend) error {
	enabled := make(map[string]bool, len(backends))
	for _, b := range backends {
		if b.Enabled {
			enabled[strings.ToLower(b.ID)] = true
		}
	}
	for _, id := range ids {
		if !enabled[strings.ToLower(id)] {
			return fmt.Errorf("session.default_models contains unconfigured or disabled model id: %s", id)
		}
	}
	return nil
}

func (a *ArbiterConfig) validate() error {
	if !a.Enabled {
		return nil
	}
	if a.URL == "" {
		return fmt.Errorf("arbiter.url cannot be empty when arbiter is enabled")
	}
	if !strings.HasPrefix(a.URL, "http://") && !strings.HasPrefix(a.URL, "https://") {
		return fmt.Errorf("arbiter.url must be an http(s) URL, got %s", a.URL)
	}
	if a.TimeoutSeconds <= 0 {
		return fmt.Errorf("arbiter.timeout_seconds must be > 0")
	}
	return nil
}
