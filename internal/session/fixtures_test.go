package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"arbiter/internal/gateway/backend"

	"github.com/stretchr/testify/require"
)

const francePayload = `{"summary_points":[{"text":"Paris","confidence":"high"}]}`

// fakeBackend replies after delay. It ignores ctx when stubborn is set, like a client without deadline support.
type fakeBackend struct {
	id       string
	delay    time.Duration
	reply    string
	err      error
	panicMsg string
	stubborn bool
	calls    int32
}

func (f *fakeBackend) ID() string    { return f.id }
func (f *fakeBackend) Kind() string  { return "fake" }
func (f *fakeBackend) Model() string { return "fake-" + f.id }

func (f *fakeBackend) Generate(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.delay > 0 {
		if f.stubborn {
			time.Sleep(f.delay)
		} else {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(f.delay):
			}
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeBackend) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

func newTestRegistry(t *testing.T, backends ...*fakeBackend) *backend.Registry {
	t.Helper()
	entries := make([]backend.Entry, 0, len(backends))
	for _, b := range backends {
		entries = append(entries, backend.Entry{Backend: b, Secrets: []string{"secret-" + b.id + "-token"}})
	}
	reg, err := backend.NewRegistry(entries...)
	require.NoError(t, err)
	return reg
}

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewNormalizer("")
	require.NoError(t, err)
	return n
}
