package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"arbiter/internal/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PromptRenderer turns a question into the prompt sent to every backend of a session.
// hash identifies the template used and is empty when the question is sent as is.
type PromptRenderer interface {
	Render(id, version, question string) (prompt, hash string)
}

// Options are the session defaults taken from configuration.
// MaxRounds applies to requests that leave it unset; 0 means 1.
type Options struct {
	Timeout       time.Duration
	MaxRounds     int
	DefaultModels []string
	PromptID      string
	PromptVersion string
}

// Orchestrator runs sessions: one question fanned out to several backends, joined, normalized and
// handed to the aggregator gateway. Sessions share nothing but the read-only registry.
type Orchestrator struct {
	invoker    *Invoker
	normalizer *Normalizer
	gateway    *AggregatorGateway
	prompts    PromptRenderer
	opts       Options
	newID      func() string
}

func NewOrchestrator(inv *Invoker, norm *Normalizer, gw *AggregatorGateway, prompts PromptRenderer, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 1
	}
	opts.DefaultModels = distinctIDs(opts.DefaultModels, inv.canonicalID)
	return &Orchestrator{
		invoker:    inv,
		normalizer: norm,
		gateway:    gw,
		prompts:    prompts,
		opts:       opts,
		newID:      uuid.NewString,
	}
}

// DefaultModels returns the fallback backend set.
func (o *Orchestrator) DefaultModels() []string {
	return append([]string(nil), o.opts.DefaultModels...)
}

// Run executes one single-round session. Only ErrInvalidInput and ErrUnsupportedFeature are returned,
// and both before any backend is contacted; every backend problem is reported inside the Result.
// Once dispatched, backend calls are not cancelled by ctx.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Result{}, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	rounds := req.MaxRounds
	if rounds == 0 {
		rounds = o.opts.MaxRounds
	}
	switch {
	case rounds < 0:
		return Result{}, fmt.Errorf("%w: max_rounds must be >= 1, got %d", ErrInvalidInput, rounds)
	case rounds > 1:
		return Result{}, fmt.Errorf("%w: max_rounds=%d, only single-round sessions are supported", ErrUnsupportedFeature, rounds)
	}
	ids := distinctIDs(req.ModelIDs, o.invoker.canonicalID)
	if len(ids) == 0 {
		ids = o.DefaultModels()
	}
	if len(ids) == 0 {
		return Result{}, fmt.Errorf("%w: no models requested and no default set configured", ErrInvalidInput)
	}

	promptID := firstNonEmpty(req.PromptID, o.opts.PromptID)
	promptVersion := firstNonEmpty(req.PromptVersion, o.opts.PromptVersion)
	prompt, hash := question, ""
	if o.prompts != nil {
		prompt, hash = o.prompts.Render(promptID, promptVersion, question)
	}

	sessionID := o.newID()
	callCtx := WithSessionID(context.WithoutCancel(ctx), sessionID)
	started := time.Now()

	records := make([]Record, len(ids))
	var eg errgroup.Group
	for i, id := range ids {
		i, id := i, id
		eg.Go(func() error {
			out := o.invoker.Invoke(callCtx, id, prompt, o.opts.Timeout)
			records[i] = o.normalizer.Normalize(id, out)
			return nil
		})
	}
	_ = eg.Wait()

	res := Result{
		SessionID:     sessionID,
		Question:      question,
		Responses:     records,
		PromptID:      promptID,
		PromptVersion: promptVersion,
		PromptHash:    hash,
	}
	logger.Infof("[session] %s fan-in models=%d %s elapsed=%s", sessionID, len(ids), summarize(records), time.Since(started).Truncate(time.Millisecond))

	return o.gateway.AttachReport(callCtx, res), nil
}

func summarize(records []Record) string {
	var ok, parse, failed, timeouts int
	for _, r := range records {
		switch KindOf(r) {
		case ErrorKindNone:
			ok++
		case ParseFailureKind:
			parse++
		case BackendTimeout:
			timeouts++
			failed++
		default:
			failed++
		}
	}
	return fmt.Sprintf("success=%d parse_failure=%d failure=%d timeout=%d", ok, parse, failed, timeouts)
}

// distinctIDs trims ids, drops blanks and keeps the first occurrence of each backend.
// Two ids are the same when keyOf maps them to the same key; the first spelling is kept.
func distinctIDs(ids []string, keyOf func(string) string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		key := id
		if keyOf != nil {
			key = keyOf(id)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, id)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
