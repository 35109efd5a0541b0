package backend

import "context"

const (
	KindOpenAI      = "openai"
	KindOllama      = "ollama"
	KindHuggingFace = "huggingface"
	KindMock        = "mock"
)

// Backend is one model service. Generate returns the model's raw text reply for prompt.
// Implementations must honor ctx cancellation and must not retain state between calls.
type Backend interface {
	ID() string
	Kind() string
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Descriptor is the public listing of a registered backend.
type Descriptor struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Model  string `json:"model,omitempty"`
	Status string `json:"status"`
}
