package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"arbiter/internal/pkg/text"

	"github.com/tidwall/gjson"
)

// OllamaClient calls a local Ollama server's non-streaming /api/generate endpoint.
type OllamaClient struct {
	id         string
	BaseURL    string
	ModelName  string
	MaxRetries int
	Headers    map[string]string
	HTTPClient *http.Client
}

func NewOllamaClient(id, baseURL, model string) *OllamaClient {
	return &OllamaClient{id: id, BaseURL: baseURL, ModelName: model}
}

func (c *OllamaClient) ID() string    { return c.id }
func (c *OllamaClient) Kind() string  { return KindOllama }
func (c *OllamaClient) Model() string { return c.ModelName }

func (c *OllamaClient) endpoint() string {
	url := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if url == "" {
		url = "http://localhost:11434"
	}
	if strings.HasSuffix(url, "/api/generate") {
		return url
	}
	return url + "/api/generate"
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":  c.ModelName,
		"prompt": prompt,
		"stream": false,
	}
	data, err := PostJSON(ctx, c.HTTPClient, c.endpoint(), c.Headers, body, RetryPolicy{MaxRetries: c.MaxRetries})
	if err != nil {
		return "", err
	}
	resp := gjson.GetBytes(data, "response")
	if !resp.Exists() || strings.TrimSpace(resp.String()) == "" {
		return "", fmt.Errorf("ollama unexpected response: %s", text.Truncate(string(data), 200))
	}
	return resp.String(), nil
}
