package session

import "encoding/json"

// Request is one caller submission. MaxRounds 0 means not supplied.
type Request struct {
	Question      string
	ModelIDs      []string
	MaxRounds     int
	PromptID      string
	PromptVersion string
}

// Result is the complete accounting of one session. Responses follow the order of the requested
// model ids. Aggregator is nil when no report was obtained.
type Result struct {
	SessionID       string
	Question        string
	Responses       []Record
	Aggregator      *Report
	AggregatorError string
	PromptID        string
	PromptVersion   string
	PromptHash      string
}

type resultJSON struct {
	SessionID       string   `json:"session_id"`
	Question        string   `json:"question"`
	Responses       []Record `json:"responses"`
	Aggregator      *Report  `json:"aggregator"`
	AggregatorError string   `json:"aggregator_error,omitempty"`
	PromptID        string   `json:"prompt_id,omitempty"`
	PromptVersion   string   `json:"prompt_version,omitempty"`
	PromptHash      string   `json:"prompt_hash,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	responses := r.Responses
	if responses == nil {
		responses = []Record{}
	}
	return json.Marshal(resultJSON{
		SessionID:       r.SessionID,
		Question:        r.Question,
		Responses:       responses,
		Aggregator:      r.Aggregator,
		AggregatorError: r.AggregatorError,
		PromptID:        r.PromptID,
		PromptVersion:   r.PromptVersion,
		PromptHash:      r.PromptHash,
	})
}
