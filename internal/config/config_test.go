package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "app:\n  log_level: debug\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":8000", cfg.App.HTTPAddr)
	assert.Equal(t, 90, cfg.Session.TimeoutSeconds)
	assert.Equal(t, 1, cfg.Session.MaxRounds)
	assert.Equal(t, []string{"mock"}, cfg.Session.DefaultModels)
	require.Len(t, cfg.Backends.Models, 1)
	assert.Equal(t, BackendKindMock, cfg.Backends.Models[0].Kind)
	assert.Equal(t, 30, cfg.Arbiter.TimeoutSeconds)
	assert.Equal(t, "answerer_v1", cfg.Prompt.PromptID)
	assert.Equal(t, "v1", cfg.Prompt.PromptVersion)
}

func TestLoad_IncludesAndPresets(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_HF_TOKEN", "hf_fromenv123456")
	writeConfig(t, dir, "backends.yaml", `
backends:
  presets:
    hf:
      api_url: https://api-inference.huggingface.co
      api_key_env: TEST_HF_TOKEN
  models:
    - id: mock
    - id: hf
      kind: huggingface
      preset: hf
      model: bigscience/bloom-560m
    - id: ollama
      kind: ollama
      model: llama3.2
      enabled: false
`)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - backends.yaml
session:
  timeout_seconds: 5
  default_models: [mock, hf]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Session.TimeoutSeconds)
	assert.Equal(t, []string{"mock", "hf"}, cfg.Session.DefaultModels)

	resolved, err := cfg.Backends.Resolve()
	require.NoError(t, err)
	require.Len(t, resolved, 3)
	assert.Equal(t, BackendKindMock, resolved[0].Kind)
	assert.Equal(t, "https://api-inference.huggingface.co", resolved[1].APIURL)
	assert.Equal(t, "hf_fromenv123456", resolved[1].APIKey)
	assert.False(t, resolved[2].Enabled)
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"multi round":          "session:\n  max_rounds: 3\n",
		"unknown kind":         "backends:\n  models:\n    - id: x\n      kind: bard\n      model: m\n",
		"missing model":        "backends:\n  models:\n    - id: mock\n    - id: o\n      kind: openai\n",
		"duplicate ids":        "backends:\n  models:\n    - id: mock\n    - id: MOCK\n      kind: mock\n",
		"unknown default":      "session:\n  default_models: [gpt]\n",
		"disabled default":     "session:\n  default_models: [o]\nbackends:\n  models:\n    - id: mock\n    - id: o\n      kind: ollama\n      model: m\n      enabled: false\n",
		"arbiter without url":  "arbiter:\n  enabled: true\n",
		"arbiter bad scheme":   "arbiter:\n  enabled: true\n  url: ftp://x\n",
		"unknown preset":       "backends:\n  models:\n    - id: mock\n      preset: nope\n",
		"empty default models": "session:\n  default_models: []\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: [b.yaml]\n")
	path := writeConfig(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "include cycle")
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, "configs/config.yaml", DefaultPath(""))
	t.Setenv(EnvConfigPath, "/etc/arbiter.yaml")
	assert.Equal(t, "/etc/arbiter.yaml", DefaultPath(""))
	assert.Equal(t, "x.yaml", DefaultPath(" x.yaml "))
}

func TestArbiterResolveAPIKey(t *testing.T) {
	t.Setenv("TEST_ARB_KEY", "from-env")
	assert.Equal(t, "inline", ArbiterConfig{APIKey: "inline", APIKeyEnv: "TEST_ARB_KEY"}.ResolveAPIKey())
	assert.Equal(t, "from-env", ArbiterConfig{APIKeyEnv: "TEST_ARB_KEY"}.ResolveAPIKey())
}
