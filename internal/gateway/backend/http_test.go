package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestPostJSON(t *testing.T) {
	t.Run("retries transient status", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "v", r.Header.Get("X-Test"))
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		data, err := PostJSON(context.Background(), srv.Client(), srv.URL, map[string]string{"X-Test": "v"}, map[string]string{"a": "b"}, fastRetry)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(data))
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
		}))
		defer srv.Close()

		_, err := PostJSON(context.Background(), srv.Client(), srv.URL, nil, map[string]string{}, fastRetry)
		require.Error(t, err)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusUnauthorized, se.Code)
		assert.Equal(t, "status=401: invalid api key", err.Error())
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})

	t.Run("deadline is a timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := PostJSON(ctx, srv.Client(), srv.URL, nil, map[string]string{}, RetryPolicy{})
		require.Error(t, err)
		assert.True(t, IsTimeout(err))
	})
}

func TestOpenAIChatClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "hello", body.Messages[0].Content)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hi there"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClient("gpt", srv.URL+"/v1/", "sk-test", "gpt-4o-mini")
	c.HTTPClient = srv.Client()
	out, err := c.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
	assert.Equal(t, KindOpenAI, c.Kind())
}

func TestOpenAIChatClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClient("gpt", srv.URL, "", "m")
	c.HTTPClient = srv.Client()
	_, err := c.Generate(context.Background(), "hello")
	assert.EqualError(t, err, "empty choices")
}

func TestOllamaClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, "llama3", body["model"])
		_, _ = w.Write([]byte(`{"model":"llama3","response":"{\"summary_points\":[]}","done":true}`))
	}))
	defer srv.Close()

	c := NewOllamaClient("ollama", srv.URL, "llama3")
	c.HTTPClient = srv.Client()
	out, err := c.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, `{"summary_points":[]}`, out)
}

func TestHuggingFaceGeneratedText(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    string
		wantErr string
	}{
		{name: "array", body: `[{"generated_text":"answer"}]`, want: "answer"},
		{name: "object", body: `{"generated_text":"answer"}`, want: "answer"},
		{name: "bare string", body: `"answer"`, want: "answer"},
		{name: "plain text", body: `answer`, want: "answer"},
		{name: "error", body: `{"error":"Model is currently loading"}`, wantErr: "huggingface error: Model is currently loading"},
		{name: "unknown", body: `{"foo":1}`, wantErr: `huggingface unexpected response: {"foo":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := generatedText([]byte(tc.body))
			if tc.wantErr != "" {
				assert.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHuggingFaceClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gpt2", r.URL.Path)
		assert.Equal(t, "Bearer hf_secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"generated_text":"ok"}]`))
	}))
	defer srv.Close()

	c := NewHuggingFaceClient("hf", srv.URL, "hf_secret", "gpt2")
	c.HTTPClient = srv.Client()
	out, err := c.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
