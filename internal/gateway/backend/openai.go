package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OpenAIChatClient talks to any OpenAI-compatible /chat/completions endpoint
// (OpenAI, DeepSeek, Qwen, vLLM, OpenRouter).
type OpenAIChatClient struct {
	id           string
	BaseURL      string
	APIKey       string
	ModelName    string
	MaxRetries   int
	ExtraHeaders map[string]string
	HTTPClient   *http.Client
}

func NewOpenAIChatClient(id, baseURL, apiKey, model string) *OpenAIChatClient {
	return &OpenAIChatClient{id: id, BaseURL: baseURL, APIKey: apiKey, ModelName: model}
}

func (c *OpenAIChatClient) ID() string    { return c.id }
func (c *OpenAIChatClient) Kind() string  { return KindOpenAI }
func (c *OpenAIChatClient) Model() string { return c.ModelName }

func (c *OpenAIChatClient) endpoint() string {
	url := strings.TrimSpace(c.BaseURL)
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimRight(url, "/")
	// tolerate configs that already include the completions path
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func (c *OpenAIChatClient) headers() map[string]string {
	h := make(map[string]string, len(c.ExtraHeaders)+1)
	if c.APIKey != "" {
		h["Authorization"] = "Bearer " + c.APIKey
	}
	for k, v := range c.ExtraHeaders {
		h[k] = v
	}
	return h
}

func (c *OpenAIChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":       c.ModelName,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": 0.5,
	}
	data, err := PostJSON(ctx, c.HTTPClient, c.endpoint(), c.headers(), body, RetryPolicy{MaxRetries: c.MaxRetries})
	if err != nil {
		return "", err
	}
	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return r.Choices[0].Message.Content, nil
}
