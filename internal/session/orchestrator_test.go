package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockArbiter struct {
	mock.Mock
}

func (m *MockArbiter) Arbitrate(ctx context.Context, req ArbitrationRequest) (*Report, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Report), args.Error(1)
}

type staticPrompts struct{}

func (staticPrompts) Render(id, version, question string) (string, string) {
	return "[" + id + "/" + version + "] " + question, "hash-" + id
}

func newTestOrchestrator(t *testing.T, arb Arbiter, timeout time.Duration, backends ...*fakeBackend) *Orchestrator {
	t.Helper()
	reg := newTestRegistry(t, backends...)
	return NewOrchestrator(
		NewInvoker(reg, timeout),
		newTestNormalizer(t),
		NewAggregatorGateway(arb),
		staticPrompts{},
		Options{Timeout: timeout, DefaultModels: []string{"a"}, PromptID: "answerer_v1", PromptVersion: "v1"},
	)
}

func modelIDs(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Model())
	}
	return out
}

func TestOrchestrator_PreservesRequestOrder(t *testing.T) {
	a := &fakeBackend{id: "a", delay: 120 * time.Millisecond, reply: francePayload}
	b := &fakeBackend{id: "b", delay: 10 * time.Millisecond, reply: francePayload}
	c := &fakeBackend{id: "c", delay: 60 * time.Millisecond, reply: "plain words"}
	o := newTestOrchestrator(t, nil, time.Second, a, b, c)

	res, err := o.Run(context.Background(), Request{Question: "q", ModelIDs: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, modelIDs(res.Responses))
	assert.IsType(t, Success{}, res.Responses[0])
	assert.IsType(t, ParseFailure{}, res.Responses[2])

	res, err = o.Run(context.Background(), Request{Question: "q", ModelIDs: []string{"c", "a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, modelIDs(res.Responses))
}

func TestOrchestrator_DeduplicatesModels(t *testing.T) {
	a := &fakeBackend{id: "a", reply: francePayload}
	b := &fakeBackend{id: "b", reply: francePayload}
	o := newTestOrchestrator(t, nil, time.Second, a, b)

	res, err := o.Run(context.Background(), Request{Question: "q", ModelIDs: []string{"b", " a ", "b", "", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, modelIDs(res.Responses))
	assert.Equal(t, 1, a.Calls())
	assert.Equal(t, 1, b.Calls())
}

func TestOrchestrator_DeduplicatesCaseVariants(t *testing.T) {
	mockB := &fakeBackend{id: "mock", reply: francePayload}
	o := newTestOrchestrator(t, nil, time.Second, mockB)

	res, err := o.Run(context.Background(), Request{Question: "q", ModelIDs: []string{"mock", "MOCK", "Mock"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"mock"}, modelIDs(res.Responses))
	assert.Equal(t, 1, mockB.Calls())

	res, err = o.Run(context.Background(), Request{Question: "q", ModelIDs: []string{"gpt-9", "GPT-9"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-9", "GPT-9"}, modelIDs(res.Responses))
}

func TestOrchestrator_ConfiguredMaxRounds(t *testing.T) {
	a := &fakeBackend{id: "a", reply: francePayload}
	reg := newTestRegistry(t, a)
	o := NewOrchestrator(NewInvoker(reg, time.Second), newTestNormalizer(t), NewAggregatorGateway(nil), nil,
		Options{Timeout: time.Second, MaxRounds: 2, DefaultModels: []string{"a"}})

	_, err := o.Run(context.Background(), Request{Question: "q"})
	assert.ErrorIs(t, err, ErrUnsupportedFeature)
	assert.Equal(t, 0, a.Calls())

	res, err := o.Run(context.Background(), Request{Question: "q", MaxRounds: 1})
	require.NoError(t, err)
	assert.Len(t, res.Responses, 1)
}

func TestOrchestrator_DefaultModels(t *testing.T) {
	a := &fakeBackend{id: "a", reply: francePayload}
	o := newTestOrchestrator(t, nil, time.Second, a)

	res, err := o.Run(context.Background(), Request{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, modelIDs(res.Responses))
	assert.Equal(t, "answerer_v1", res.PromptID)
	assert.Equal(t, "v1", res.PromptVersion)
	assert.Equal(t, "hash-answerer_v1", res.PromptHash)
	assert.NotEmpty(t, res.SessionID)
}

func TestOrchestrator_FranceScenario(t *testing.T) {
	mockB := &fakeBackend{id: "mock", reply: francePayload}
	hf := &fakeBackend{id: "hf", delay: 5 * time.Second, stubborn: true}
	o := newTestOrchestrator(t, nil, 100*time.Millisecond, mockB, hf)

	start := time.Now()
	res, err := o.Run(context.Background(), Request{Question: "What is the capital of France?", ModelIDs: []string{"mock", "hf"}, MaxRounds: 1})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, res.Responses, 2)
	s, ok := res.Responses[0].(Success)
	require.True(t, ok, "got %T", res.Responses[0])
	assert.Equal(t, "mock", s.ModelID)
	assert.Equal(t, []SummaryPoint{{Text: "Paris", Confidence: "high"}}, s.Points)

	f, ok := res.Responses[1].(Failure)
	require.True(t, ok, "got %T", res.Responses[1])
	assert.Equal(t, "hf", f.ModelID)
	assert.True(t, f.IsTimeout)
	assert.Nil(t, res.Aggregator)
	assert.Empty(t, res.AggregatorError)
}

func TestOrchestrator_RejectsBeforeDispatch(t *testing.T) {
	a := &fakeBackend{id: "a", reply: francePayload}
	arb := new(MockArbiter)
	o := newTestOrchestrator(t, arb, time.Second, a)

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{name: "empty question", req: Request{Question: "", ModelIDs: []string{"a"}}, want: ErrInvalidInput},
		{name: "blank question", req: Request{Question: " \n\t", ModelIDs: []string{"a"}}, want: ErrInvalidInput},
		{name: "negative rounds", req: Request{Question: "q", MaxRounds: -1}, want: ErrInvalidInput},
		{name: "multi round", req: Request{Question: "q", ModelIDs: []string{"a"}, MaxRounds: 3}, want: ErrUnsupportedFeature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := o.Run(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, 0, a.Calls())
	arb.AssertNotCalled(t, "Arbitrate", mock.Anything, mock.Anything)
}

func TestOrchestrator_AllFailuresIsAResult(t *testing.T) {
	a := &fakeBackend{id: "a", err: errors.New("connection refused")}
	b := &fakeBackend{id: "b", err: errors.New("status=503: overloaded")}
	o := newTestOrchestrator(t, nil, time.Second, a, b)

	res, err := o.Run(context.Background(), Request{Question: "q", ModelIDs: []string{"a", "b", "ghost"}})
	require.NoError(t, err)
	require.Len(t, res.Responses, 3)
	for _, r := range res.Responses {
		assert.Equal(t, BackendError, KindOf(r))
	}
	assert.Equal(t, `unknown backend "ghost"`, res.Responses[2].(Failure).ErrorMessage)
}

func TestOrchestrator_ArbiterUnavailable(t *testing.T) {
	a := &fakeBackend{id: "a", reply: francePayload}
	b := &fakeBackend{id: "b", reply: "free text"}
	arb := new(MockArbiter)
	arb.On("Arbitrate", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: connection refused"))
	o := newTestOrchestrator(t, arb, time.Second, a, b)

	res, err := o.Run(context.Background(), Request{Question: "q", ModelIDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Nil(t, res.Aggregator)
	assert.Contains(t, res.AggregatorError, ErrAggregationUnavailable.Error())
	assert.Equal(t, []string{"a", "b"}, modelIDs(res.Responses))
	arb.AssertNumberOfCalls(t, "Arbitrate", 1)
}

func TestOrchestrator_AttachesReport(t *testing.T) {
	a := &fakeBackend{id: "a", reply: francePayload}
	report, err := ParseReport([]byte(`{"session_id":"arb-42","confirmed":[{"text":"Paris"}],"contradictions":[],"followups":["why?"],"recommendation":"Paris"}`))
	require.NoError(t, err)

	arb := new(MockArbiter)
	arb.On("Arbitrate", mock.Anything, mock.MatchedBy(func(req ArbitrationRequest) bool {
		return req.Question == "q" && len(req.Responses) == 1 && req.SessionID != ""
	})).Return(report, nil)
	o := newTestOrchestrator(t, arb, time.Second, a)

	res, err := o.Run(context.Background(), Request{Question: "q", ModelIDs: []string{"a"}})
	require.NoError(t, err)
	require.NotNil(t, res.Aggregator)
	assert.Equal(t, "arb-42", res.SessionID)
	assert.Equal(t, "Paris", res.Aggregator.Recommendation)
	assert.Len(t, res.Aggregator.Confirmed, 1)
	arb.AssertExpectations(t)
}

func TestOrchestrator_CallerCancelDoesNotAbortSession(t *testing.T) {
	a := &fakeBackend{id: "a", delay: 80 * time.Millisecond, reply: francePayload}
	o := newTestOrchestrator(t, nil, time.Second, a)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	res, err := o.Run(ctx, Request{Question: "q", ModelIDs: []string{"a"}})
	require.NoError(t, err)
	assert.IsType(t, Success{}, res.Responses[0])
}
