package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"arbiter/internal/gateway/backend"
	"arbiter/internal/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout applies when neither the caller nor the configuration gives a per-call timeout.
const DefaultTimeout = 90 * time.Second

// RawOutcome is what one backend call produced before normalization.
// Kind is ErrorKindNone on success, BackendTimeout or BackendError otherwise.
type RawOutcome struct {
	ModelID      string
	Payload      string
	Kind         ErrorKind
	ErrorMessage string
	Latency      time.Duration
	CompletedAt  time.Time
}

func (o RawOutcome) Failed() bool { return o.Kind != ErrorKindNone }

type callResult struct {
	payload string
	err     error
}

// Invoker performs single bounded calls against the backend registry. It holds no session state
// and is safe for concurrent use.
type Invoker struct {
	registry       *backend.Registry
	redactor       backend.Redactor
	defaultTimeout time.Duration
	tracer         trace.Tracer
	now            func() time.Time
}

func NewInvoker(registry *backend.Registry, defaultTimeout time.Duration) *Invoker {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Invoker{
		registry:       registry,
		redactor:       registry.Redactor(),
		defaultTimeout: defaultTimeout,
		tracer:         otel.Tracer("arbiter/session"),
		now:            time.Now,
	}
}

// SetTracer replaces the tracer taken from the global provider.
func (inv *Invoker) SetTracer(t trace.Tracer) {
	if t != nil {
		inv.tracer = t
	}
}

// Invoke calls one backend with prompt and waits at most timeout for its reply. On expiry it returns
// at once with a timeout outcome; the backend goroutine is left to finish on its own.
func (inv *Invoker) Invoke(ctx context.Context, modelID, prompt string, timeout time.Duration) RawOutcome {
	if timeout <= 0 {
		timeout = inv.defaultTimeout
	}
	start := inv.now()
	fail := func(kind ErrorKind, msg string) RawOutcome {
		end := inv.now()
		return RawOutcome{
			ModelID:      modelID,
			Kind:         kind,
			ErrorMessage: inv.redactor.Redact(msg),
			Latency:      end.Sub(start),
			CompletedAt:  end.UTC(),
		}
	}

	b, ok := inv.registry.Lookup(modelID)
	if !ok {
		return fail(BackendError, fmt.Sprintf("unknown backend %q", modelID))
	}
	if strings.TrimSpace(prompt) == "" {
		return fail(BackendError, "empty prompt")
	}

	ctx, span := inv.tracer.Start(ctx, "backend.generate", trace.WithAttributes(
		attribute.String("backend.id", b.ID()),
		attribute.String("backend.kind", b.Kind()),
		attribute.String("backend.model", b.Model()),
	))
	defer span.End()

	sessionID := SessionIDFromContext(ctx)
	logger.LogBackendRequest(b.ID(), sessionID, prompt, requestSummary(b, timeout))

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	done := make(chan callResult, 1)
	go func() {
		defer cancel()
		done <- inv.callSafe(callCtx, b, prompt)
	}()

	var res callResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		// the call may have finished right at the deadline
		select {
		case res = <-done:
		default:
			res = callResult{err: callCtx.Err()}
		}
	}

	if res.err != nil {
		kind := BackendError
		msg := res.err.Error()
		if backend.IsTimeout(res.err) {
			kind = BackendTimeout
			msg = fmt.Sprintf("backend %s timed out: %v", b.ID(), res.err)
			if errors.Is(res.err, context.DeadlineExceeded) {
				msg = fmt.Sprintf("backend %s timed out after %s", b.ID(), timeout)
			}
		}
		out := fail(kind, msg)
		logger.LogBackendResponse(b.ID(), sessionID, "", out.ErrorMessage)
		logger.Warnf("[session] backend %s failed kind=%s elapsed=%s err=%s", b.ID(), kind, out.Latency.Truncate(time.Millisecond), out.ErrorMessage)
		span.SetAttributes(attribute.Bool("backend.timeout", kind == BackendTimeout))
		span.SetStatus(codes.Error, out.ErrorMessage)
		return out
	}

	end := inv.now()
	logger.LogBackendResponse(b.ID(), sessionID, res.payload, "")
	span.SetAttributes(attribute.Int("backend.reply_bytes", len(res.payload)))
	return RawOutcome{
		ModelID:     modelID,
		Payload:     res.payload,
		Latency:     end.Sub(start),
		CompletedAt: end.UTC(),
	}
}

func (inv *Invoker) callSafe(ctx context.Context, b backend.Backend, prompt string) (res callResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[session] backend %s panic: %v", b.ID(), r)
			res = callResult{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	payload, err := b.Generate(ctx, prompt)
	return callResult{payload: payload, err: err}
}

func requestSummary(b backend.Backend, timeout time.Duration) string {
	data, _ := json.Marshal(map[string]any{
		"backend": b.ID(),
		"kind":    b.Kind(),
		"model":   b.Model(),
		"timeout": timeout.String(),
	})
	return string(data)
}

// canonicalID maps id to the registered backend it names. Unknown ids are returned unchanged.
func (inv *Invoker) canonicalID(id string) string {
	if inv == nil {
		return id
	}
	if canonical, ok := inv.registry.Canonical(id); ok {
		return canonical
	}
	return id
}

type sessionIDKey struct{}

// WithSessionID tags ctx so backend dumps can be correlated with their session.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}
