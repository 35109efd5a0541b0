package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MockBackend returns a fixed structured payload that echoes the prompt. It never touches the network.
type MockBackend struct {
	id    string
	Delay time.Duration
	// Reply replaces the generated payload when set.
	Reply string
}

func NewMockBackend(id string) *MockBackend {
	return &MockBackend{id: id}
}

func (m *MockBackend) ID() string    { return m.id }
func (m *MockBackend) Kind() string  { return KindMock }
func (m *MockBackend) Model() string { return "mock" }

func (m *MockBackend) Generate(ctx context.Context, prompt string) (string, error) {
	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	if m.Reply != "" {
		return m.Reply, nil
	}
	payload := map[string]any{
		"summary_points": []map[string]string{
			{"id": "p1", "text": fmt.Sprintf("Echo of '%s'", prompt), "confidence": "high"},
			{"id": "p2", "text": "Mock systems return static data", "confidence": "medium"},
			{"id": "p3", "text": "Use real adapters in production", "confidence": "medium"},
		},
		"detailed_explanation": "This is a mock structured response for testing pipelines.",
		"evidence":             []string{"https://example.com/mock"},
		"reproducible_example": "print('mock')",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
