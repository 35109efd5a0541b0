package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"arbiter/internal/pkg/text"

	"github.com/tidwall/gjson"
)

// HuggingFaceClient calls the hosted Inference API text-generation task.
type HuggingFaceClient struct {
	id         string
	BaseURL    string
	Token      string
	ModelName  string
	MaxRetries int
	Headers    map[string]string
	HTTPClient *http.Client
}

func NewHuggingFaceClient(id, baseURL, token, model string) *HuggingFaceClient {
	return &HuggingFaceClient{id: id, BaseURL: baseURL, Token: token, ModelName: model}
}

func (c *HuggingFaceClient) ID() string    { return c.id }
func (c *HuggingFaceClient) Kind() string  { return KindHuggingFace }
func (c *HuggingFaceClient) Model() string { return c.ModelName }

func (c *HuggingFaceClient) endpoint() string {
	url := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if url == "" {
		url = "https://api-inference.huggingface.co"
	}
	if strings.Contains(url, "/models/") {
		return url
	}
	return url + "/models/" + c.ModelName
}

func (c *HuggingFaceClient) Generate(ctx context.Context, prompt string) (string, error) {
	headers := make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		headers[k] = v
	}
	if c.Token != "" {
		headers["Authorization"] = "Bearer " + c.Token
	}
	body := map[string]any{"inputs": prompt}
	data, err := PostJSON(ctx, c.HTTPClient, c.endpoint(), headers, body, RetryPolicy{MaxRetries: c.MaxRetries})
	if err != nil {
		return "", err
	}
	return generatedText(data)
}

// generatedText accepts the reply shapes the Inference API is known to return:
// [{"generated_text": ...}], {"generated_text": ...}, {"error": ...} or a bare string.
func generatedText(data []byte) (string, error) {
	if !gjson.ValidBytes(data) {
		return string(data), nil
	}
	parsed := gjson.ParseBytes(data)
	switch {
	case parsed.IsArray():
		if first := parsed.Get("0.generated_text"); first.Exists() {
			return first.String(), nil
		}
	case parsed.IsObject():
		if errMsg := parsed.Get("error"); errMsg.Exists() {
			return "", fmt.Errorf("huggingface error: %s", errMsg.String())
		}
		if gen := parsed.Get("generated_text"); gen.Exists() {
			return gen.String(), nil
		}
	case parsed.Type == gjson.String:
		return parsed.String(), nil
	}
	return "", fmt.Errorf("huggingface unexpected response: %s", text.Truncate(string(data), 200))
}
