package session

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Record statuses as they appear on the wire.
const (
	StatusSuccess      = "success"
	StatusParseFailure = "parse_failure"
	StatusFailure      = "failure"
)

// Record is one backend's outcome in a session. It is exactly one of Success, ParseFailure or Failure.
type Record interface {
	Model() string
	Status() string
	isRecord()
}

// SummaryPoint is one structured claim returned by a model. Confidence is passed through as received.
type SummaryPoint struct {
	ID         string `json:"id,omitempty"`
	Text       string `json:"text"`
	Confidence string `json:"confidence,omitempty"`
}

type Success struct {
	ModelID   string
	Points    []SummaryPoint
	RawText   string
	Latency   time.Duration
	Timestamp time.Time
}

type ParseFailure struct {
	ModelID    string
	RawText    string
	ParseError string
	Latency    time.Duration
	Timestamp  time.Time
}

type Failure struct {
	ModelID      string
	ErrorMessage string
	IsTimeout    bool
	Latency      time.Duration
	Timestamp    time.Time
}

func (Success) isRecord()      {}
func (ParseFailure) isRecord() {}
func (Failure) isRecord()      {}

func (r Success) Model() string      { return r.ModelID }
func (r ParseFailure) Model() string { return r.ModelID }
func (r Failure) Model() string      { return r.ModelID }

func (Success) Status() string      { return StatusSuccess }
func (ParseFailure) Status() string { return StatusParseFailure }
func (Failure) Status() string      { return StatusFailure }

type successJSON struct {
	ModelID   string         `json:"model_id"`
	Status    string         `json:"status"`
	Points    []SummaryPoint `json:"points"`
	Raw       string         `json:"raw"`
	IsTimeout bool           `json:"is_timeout"`
	LatencyS  json.Number    `json:"latency_s"`
	Timestamp string         `json:"timestamp"`
}

type parseFailureJSON struct {
	ModelID    string      `json:"model_id"`
	Status     string      `json:"status"`
	ParseError string      `json:"parse_error"`
	Raw        string      `json:"raw"`
	IsTimeout  bool        `json:"is_timeout"`
	LatencyS   json.Number `json:"latency_s"`
	Timestamp  string      `json:"timestamp"`
}

type failureJSON struct {
	ModelID   string      `json:"model_id"`
	Status    string      `json:"status"`
	Error     string      `json:"error"`
	IsTimeout bool        `json:"is_timeout"`
	LatencyS  json.Number `json:"latency_s"`
	Timestamp string      `json:"timestamp"`
}

func (r Success) MarshalJSON() ([]byte, error) {
	points := r.Points
	if points == nil {
		points = []SummaryPoint{}
	}
	return json.Marshal(successJSON{
		ModelID:   r.ModelID,
		Status:    StatusSuccess,
		Points:    points,
		Raw:       r.RawText,
		LatencyS:  latencySeconds(r.Latency),
		Timestamp: formatTimestamp(r.Timestamp),
	})
}

func (r ParseFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(parseFailureJSON{
		ModelID:    r.ModelID,
		Status:     StatusParseFailure,
		ParseError: r.ParseError,
		Raw:        r.RawText,
		LatencyS:   latencySeconds(r.Latency),
		Timestamp:  formatTimestamp(r.Timestamp),
	})
}

func (r Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(failureJSON{
		ModelID:   r.ModelID,
		Status:    StatusFailure,
		Error:     r.ErrorMessage,
		IsTimeout: r.IsTimeout,
		LatencyS:  latencySeconds(r.Latency),
		Timestamp: formatTimestamp(r.Timestamp),
	})
}

// latencySeconds renders a duration as seconds rounded to four decimal places.
func latencySeconds(d time.Duration) json.Number {
	return json.Number(decimal.NewFromFloat(d.Seconds()).Round(4).String())
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
