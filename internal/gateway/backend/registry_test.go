package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(
		Entry{Backend: NewMockBackend("mock")},
		Entry{Backend: NewOllamaClient("Ollama", "", "llama3"), Secrets: []string{"s3cr3t-value"}},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"mock", "Ollama"}, reg.IDs())

	b, ok := reg.Lookup("ollama")
	require.True(t, ok)
	assert.Equal(t, "Ollama", b.ID())

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	id, ok := reg.Canonical("OLLAMA")
	require.True(t, ok)
	assert.Equal(t, "Ollama", id)
	id, ok = reg.Canonical("mock")
	require.True(t, ok)
	assert.Equal(t, "mock", id)
	_, ok = reg.Canonical("missing")
	assert.False(t, ok)

	desc := reg.Describe()
	require.Len(t, desc, 2)
	assert.Equal(t, Descriptor{ID: "mock", Kind: KindMock, Model: "mock", Status: "ready"}, desc[0])

	assert.Equal(t, "auth failed for ****", reg.Redactor().Redact("auth failed for s3cr3t-value"))
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(Entry{Backend: NewMockBackend("mock")}, Entry{Backend: NewMockBackend("MOCK")})
	assert.ErrorContains(t, err, "duplicate backend id")
}

func TestBuildFromConfig(t *testing.T) {
	reg, err := BuildFromConfig([]ModelCfg{
		{ID: "mock", Kind: KindMock, Enabled: true},
		{ID: "hf", Kind: KindHuggingFace, Model: "gpt2", APIKey: "hf_abcdefghijkl", Enabled: true},
		{ID: "off", Kind: KindOpenAI, Model: "x", Enabled: false},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"mock", "hf"}, reg.IDs())
	assert.NotContains(t, reg.Redactor().Redact("bad key hf_abcdefghijkl"), "hf_abcdefghijkl")

	_, err = BuildFromConfig([]ModelCfg{{ID: "x", Kind: "bard", Enabled: true}}, nil)
	assert.ErrorContains(t, err, `unsupported kind "bard"`)
}

func TestMockBackend_Generate(t *testing.T) {
	out, err := NewMockBackend("mock").Generate(context.Background(), "capital?")
	require.NoError(t, err)
	assert.Equal(t, "Echo of 'capital?'", gjson.Get(out, "summary_points.0.text").String())
	assert.Equal(t, "high", gjson.Get(out, "summary_points.0.confidence").String())
	assert.Len(t, gjson.Get(out, "summary_points").Array(), 3)
}
