package session

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// Report is the arbitration collaborator's verdict, carried through untouched. The accessor fields
// are views into Raw; encoding a Report writes Raw back byte for byte.
type Report struct {
	Raw            json.RawMessage
	Confirmed      []json.RawMessage
	Contradictions []json.RawMessage
	Followups      []json.RawMessage
	Recommendation string
	SessionID      string
}

// ParseReport wraps a JSON object returned by the collaborator.
func ParseReport(raw []byte) (*Report, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("report is not valid JSON")
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return nil, errors.New("report must be a JSON object")
	}
	return &Report{
		Raw:            append(json.RawMessage(nil), raw...),
		Confirmed:      rawItems(parsed.Get("confirmed")),
		Contradictions: rawItems(parsed.Get("contradictions")),
		Followups:      rawItems(parsed.Get("followups")),
		Recommendation: parsed.Get("recommendation").String(),
		SessionID:      parsed.Get("session_id").String(),
	}, nil
}

func rawItems(v gjson.Result) []json.RawMessage {
	if !v.IsArray() {
		return nil
	}
	items := v.Array()
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		out = append(out, json.RawMessage(item.Raw))
	}
	return out
}

func (r *Report) MarshalJSON() ([]byte, error) {
	if r == nil || len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}
