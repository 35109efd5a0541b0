package session

import (
	"context"
	"fmt"

	"arbiter/internal/logger"
)

// ArbitrationRequest is everything the collaborator receives for one session.
type ArbitrationRequest struct {
	SessionID string   `json:"session_id"`
	Question  string   `json:"question"`
	Responses []Record `json:"responses"`
}

// Arbiter reconciles the normalized responses of a session into a report.
type Arbiter interface {
	Arbitrate(ctx context.Context, req ArbitrationRequest) (*Report, error)
}

// AggregatorGateway attaches an arbitration report to a finished session.
type AggregatorGateway struct {
	arbiter Arbiter
}

// NewAggregatorGateway accepts a nil arbiter, which disables arbitration.
func NewAggregatorGateway(a Arbiter) *AggregatorGateway {
	return &AggregatorGateway{arbiter: a}
}

func (g *AggregatorGateway) Enabled() bool {
	return g != nil && g.arbiter != nil
}

// AttachReport never fails: an arbitration error leaves Aggregator nil and is noted in AggregatorError.
func (g *AggregatorGateway) AttachReport(ctx context.Context, res Result) Result {
	if !g.Enabled() {
		return res
	}
	report, err := g.arbiter.Arbitrate(ctx, ArbitrationRequest{
		SessionID: res.SessionID,
		Question:  res.Question,
		Responses: res.Responses,
	})
	if err == nil && report == nil {
		err = fmt.Errorf("empty report")
	}
	if err != nil {
		res.Aggregator = nil
		res.AggregatorError = fmt.Errorf("%w: %v", ErrAggregationUnavailable, err).Error()
		logger.Warnf("[session] %s arbitration skipped: %s", res.SessionID, res.AggregatorError)
		return res
	}
	res.Aggregator = report
	if report.SessionID != "" {
		res.SessionID = report.SessionID
	}
	return res
}
