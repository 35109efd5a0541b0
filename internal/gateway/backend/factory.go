package backend

import (
	"fmt"
	"net/http"
	"strings"

	"arbiter/internal/logger"
)

// ModelCfg is the resolved configuration of one backend.
type ModelCfg struct {
	ID, Kind, APIURL, APIKey, Model string
	Enabled                         bool
	Headers                         map[string]string
	MaxRetries                      int
}

// BuildFromConfig constructs the enabled backends in configuration order and wraps them in a Registry.
// The API key and sensitive header values of each model are recorded as its secrets.
func BuildFromConfig(models []ModelCfg, client *http.Client) (*Registry, error) {
	if client == nil {
		client = NewHTTPClient()
	}
	entries := make([]Entry, 0, len(models))
	for _, m := range models {
		if !m.Enabled {
			continue
		}
		id := strings.TrimSpace(m.ID)
		if id == "" {
			base := strings.TrimSpace(m.Kind)
			if base == "" {
				base = "backend"
			}
			if model := strings.TrimSpace(m.Model); model != "" {
				id = fmt.Sprintf("%s:%s", base, model)
			} else {
				id = base
			}
			logger.Warnf("backend without id, generated %q", id)
		}
		b, err := newBackend(id, m, client)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Backend: b, Secrets: secretsOf(m)})
	}
	return NewRegistry(entries...)
}

func newBackend(id string, m ModelCfg, client *http.Client) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(m.Kind)) {
	case KindOpenAI:
		c := NewOpenAIChatClient(id, m.APIURL, m.APIKey, m.Model)
		c.MaxRetries = m.MaxRetries
		c.ExtraHeaders = m.Headers
		c.HTTPClient = client
		return c, nil
	case KindOllama:
		c := NewOllamaClient(id, m.APIURL, m.Model)
		c.MaxRetries = m.MaxRetries
		c.Headers = m.Headers
		c.HTTPClient = client
		return c, nil
	case KindHuggingFace:
		c := NewHuggingFaceClient(id, m.APIURL, m.APIKey, m.Model)
		c.MaxRetries = m.MaxRetries
		c.Headers = m.Headers
		c.HTTPClient = client
		return c, nil
	case KindMock:
		return NewMockBackend(id), nil
	default:
		return nil, fmt.Errorf("backend %s: unsupported kind %q", id, m.Kind)
	}
}

func secretsOf(m ModelCfg) []string {
	out := []string{m.APIKey}
	for k, v := range m.Headers {
		if sensitiveHeader(k) {
			out = append(out, strings.TrimPrefix(v, "Bearer "))
		}
	}
	return out
}
