package config

import (
	"strings"
)

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":8000"
	defaultSessionTimeout    = 90
	defaultSessionMaxRounds  = 1
	defaultSessionModel      = "mock"
	defaultArbiterTimeout    = 30
	defaultArbiterMaxRetries = 2
	defaultPromptID          = "answerer_v1"
	defaultPromptVersion     = "v1"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Session.applyDefaults(keys)
	c.Backends.applyDefaults()
	c.Arbiter.applyDefaults(keys)
	c.Prompt.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
	a.LogPath = strings.TrimSpace(a.LogPath)
	a.LLMLog = strings.TrimSpace(a.LLMLog)
}

func (s *SessionConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "session.timeout_seconds",
			need:  func() bool { return s.TimeoutSeconds <= 0 },
			apply: func() { s.TimeoutSeconds = defaultSessionTimeout },
		},
		fieldDefault{
			key:   "session.max_rounds",
			need:  func() bool { return s.MaxRounds <= 0 },
			apply: func() { s.MaxRounds = defaultSessionMaxRounds },
		},
	)
	s.DefaultModels = normalizeIDList(s.DefaultModels)
	if len(s.DefaultModels) == 0 && !keys.isSet("session.default_models") {
		s.DefaultModels = []string{defaultSessionModel}
	}
}

func (b *BackendsConfig) applyDefaults() {
	if b == nil {
		return
	}
	if b.Presets == nil {
		b.Presets = make(map[string]BackendPreset)
	}
	if len(b.Models) == 0 {
		b.Models = []BackendModelConfig{{ID: defaultSessionModel, Kind: BackendKindMock}}
	}
	for i := range b.Models {
		m := &b.Models[i]
		m.ID = strings.TrimSpace(m.ID)
		m.Kind = strings.ToLower(strings.TrimSpace(m.Kind))
		m.Preset = strings.TrimSpace(m.Preset)
		if m.Kind == "" && strings.HasPrefix(strings.ToLower(m.ID), defaultSessionModel) {
			m.Kind = BackendKindMock
		}
		if m.MaxRetries < 0 {
			m.MaxRetries = 0
		}
	}
}

func (a *ArbiterConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "arbiter.timeout_seconds",
			need:  func() bool { return a.TimeoutSeconds <= 0 },
			apply: func() { a.TimeoutSeconds = defaultArbiterTimeout },
		},
		fieldDefault{
			key:   "arbiter.max_retries",
			need:  func() bool { return a.MaxRetries <= 0 },
			apply: func() { a.MaxRetries = defaultArbiterMaxRetries },
		},
	)
	a.URL = strings.TrimSpace(a.URL)
}

func (p *PromptConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("prompt.prompt_id", &p.PromptID, defaultPromptID),
		stringFieldDefault("prompt.prompt_version", &p.PromptVersion, defaultPromptVersion),
	)
	p.RegistryPath = strings.TrimSpace(p.RegistryPath)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

// normalizeIDList trims ids and drops blanks and repeats, keeping first-seen order.
func normalizeIDList(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
