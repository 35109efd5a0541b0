package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arbiter/internal/logger"

	"github.com/tidwall/gjson"
)

const (
	defaultRetryBase = 800 * time.Millisecond
	defaultRetryMax  = 8 * time.Second
	maxErrorBody     = 4 << 10
)

// RetryPolicy bounds the retries PostJSON performs for transient failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultRetryBase
	}
	limit := p.MaxDelay
	if limit <= 0 {
		limit = defaultRetryMax
	}
	wait := base << attempt
	if wait <= 0 || wait > limit {
		wait = limit
	}
	return wait
}

// StatusError is a non-2xx reply that survived all retries.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d: %s", e.Code, e.Message)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// NewHTTPClient returns the client shared by the HTTP backends. Per-call deadlines come from the context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          64,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// PostJSON sends body as JSON and returns the 2xx response body. 429/5xx replies and transport
// errors are retried up to policy.MaxRetries times, honoring Retry-After, until ctx ends.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any, policy RetryPolicy) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	logger.Debugf("[backend] POST %s headers=%v body_bytes=%d", url, maskHeaders(headers), len(payload))

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request aborted: %w", ctx.Err())
			}
			lastErr = err
			if attempt < policy.MaxRetries {
				if werr := sleepCtx(ctx, policy.backoff(attempt)); werr != nil {
					return nil, werr
				}
				continue
			}
			break
		}

		data, rerr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			if rerr != nil {
				return nil, fmt.Errorf("read response: %w", rerr)
			}
			return data, nil
		}

		lastErr = &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Status, data)}
		if retryableStatus(resp.StatusCode) && attempt < policy.MaxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			if wait == 0 {
				wait = policy.backoff(attempt)
			}
			if werr := sleepCtx(ctx, wait); werr != nil {
				return nil, werr
			}
			continue
		}
		break
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait aborted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

func retryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// errorMessage pulls a human message out of common error envelopes.
func errorMessage(status string, body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		for _, path := range []string{"error.message", "error", "detail", "message"} {
			if v := parsed.Get(path); v.Exists() && v.Type == gjson.String {
				if msg := strings.TrimSpace(v.String()); msg != "" {
					return msg
				}
			}
		}
	}
	return status
}

func maskHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveHeader(k) {
			out[k] = maskSecret(v)
			continue
		}
		out[k] = v
	}
	return out
}

func sensitiveHeader(name string) bool {
	lk := strings.ToLower(name)
	return strings.Contains(lk, "key") || strings.Contains(lk, "token") || strings.Contains(lk, "auth")
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
