package arbiter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"arbiter/internal/gateway/backend"
	"arbiter/internal/session"
)

const arbitratePath = "/v1/arbitrate"

// Client posts a session's normalized responses to the external arbitration service.
type Client struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	redactor   backend.Redactor
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Timeout:  timeout,
		redactor: backend.NewRedactor(apiKey),
	}
}

func (c *Client) endpoint() string {
	url := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if strings.HasSuffix(url, arbitratePath) {
		return url
	}
	return url + arbitratePath
}

// Arbitrate returns the collaborator's report unmodified. Errors carry no credentials.
func (c *Client) Arbitrate(ctx context.Context, req session.ArbitrationRequest) (*session.Report, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	headers := map[string]string{"Accept": "application/json"}
	if c.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.APIKey
	}
	data, err := backend.PostJSON(ctx, c.HTTPClient, c.endpoint(), headers, req, backend.RetryPolicy{MaxRetries: c.MaxRetries})
	if err != nil {
		return nil, fmt.Errorf("arbitrate: %s", c.redactor.Redact(err.Error()))
	}
	report, err := session.ParseReport(data)
	if err != nil {
		return nil, fmt.Errorf("arbitrate: %w", err)
	}
	return report, nil
}
