package config

import "strings"

// Config is the root of config.yaml.
type Config struct {
	App      AppConfig      `toml:"app"`
	Session  SessionConfig  `toml:"session"`
	Backends BackendsConfig `toml:"backends"`
	Arbiter  ArbiterConfig  `toml:"arbiter"`
	Prompt   PromptConfig   `toml:"prompt"`
	Schema   SchemaConfig   `toml:"schema"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

// SessionConfig holds the per-session dispatch policy shared by every backend.
type SessionConfig struct {
	TimeoutSeconds int      `toml:"timeout_seconds"`
	DefaultModels  []string `toml:"default_models"`
	MaxRounds      int      `toml:"max_rounds"`
}

// BackendsConfig lists the model backends registered at startup.
type BackendsConfig struct {
	Presets map[string]BackendPreset `toml:"presets"`
	Models  []BackendModelConfig     `toml:"models"`
}

// BackendPreset is a reusable connection block referenced by models[].preset.
type BackendPreset struct {
	APIURL    string            `toml:"api_url"`
	APIKey    string            `toml:"api_key"`
	APIKeyEnv string            `toml:"api_key_env"`
	Headers   map[string]string `toml:"headers"`
}

type BackendModelConfig struct {
	ID         string            `toml:"id"`
	Kind       string            `toml:"kind"`
	Preset     string            `toml:"preset"`
	Enabled    *bool             `toml:"enabled"`
	APIURL     string            `toml:"api_url"`
	APIKey     string            `toml:"api_key"`
	APIKeyEnv  string            `toml:"api_key_env"`
	Model      string            `toml:"model"`
	Headers    map[string]string `toml:"headers"`
	MaxRetries int               `toml:"max_retries"`
}

// ResolvedBackend is a model entry after preset and environment lookup.
type ResolvedBackend struct {
	ID         string
	Kind       string
	Enabled    bool
	APIURL     string
	APIKey     string
	Model      string
	Headers    map[string]string
	MaxRetries int
}

// ArbiterConfig points at the external arbitration service.
type ArbiterConfig struct {
	Enabled        bool   `toml:"enabled"`
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	APIKeyEnv      string `toml:"api_key_env"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

type PromptConfig struct {
	RegistryPath  string `toml:"registry_path"`
	PromptID      string `toml:"prompt_id"`
	PromptVersion string `toml:"prompt_version"`
	Watch         bool   `toml:"watch"`
}

// SchemaConfig optionally replaces the embedded structured-response schema.
type SchemaConfig struct {
	Path string `toml:"path"`
}

const (
	BackendKindOpenAI      = "openai"
	BackendKindOllama      = "ollama"
	BackendKindHuggingFace = "huggingface"
	BackendKindMock        = "mock"
)

func knownBackendKind(kind string) bool {
	switch kind {
	case BackendKindOpenAI, BackendKindOllama, BackendKindHuggingFace, BackendKindMock:
		return true
	default:
		return false
	}
}

// keySet tracks the key paths explicitly present in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes how one field receives its default.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
