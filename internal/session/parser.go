package session

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"arbiter/internal/pkg/jsonutil"
	"arbiter/internal/pkg/text"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

//go:embed schema/structured_response.json
var defaultSchema []byte

const schemaResource = "structured_response.json"

// Normalizer turns a RawOutcome into a Record. It keeps no state besides the compiled schema,
// so the same outcome always yields the same record.
type Normalizer struct {
	schema *jsonschema.Schema
}

// NewNormalizer compiles the structured-response schema. An empty path selects the embedded default.
func NewNormalizer(schemaPath string) (*Normalizer, error) {
	raw := defaultSchema
	if p := strings.TrimSpace(schemaPath); p != "" {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read response schema: %w", err)
		}
		raw = data
	}
	compiled, err := compileSchema(raw)
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}
	return &Normalizer{schema: compiled}, nil
}

func compileSchema(raw []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(schemaResource)
}

// Normalize maps one outcome onto exactly one record variant. Failed calls are never parsed.
func (n *Normalizer) Normalize(modelID string, out RawOutcome) Record {
	if out.Failed() {
		return Failure{
			ModelID:      modelID,
			ErrorMessage: out.ErrorMessage,
			IsTimeout:    out.Kind == BackendTimeout,
			Latency:      out.Latency,
			Timestamp:    out.CompletedAt,
		}
	}
	points, err := n.parsePoints(out.Payload)
	if err != nil {
		return ParseFailure{
			ModelID:    modelID,
			RawText:    text.TruncateRunes(out.Payload, text.DisplayLimit),
			ParseError: err.Error(),
			Latency:    out.Latency,
			Timestamp:  out.CompletedAt,
		}
	}
	return Success{
		ModelID:   modelID,
		Points:    points,
		RawText:   out.Payload,
		Latency:   out.Latency,
		Timestamp: out.CompletedAt,
	}
}

func (n *Normalizer) parsePoints(payload string) ([]SummaryPoint, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, errors.New("empty reply")
	}
	obj, ok := jsonutil.ExtractObject(payload)
	if !ok {
		return nil, errors.New("no JSON object found in reply")
	}
	parsed := gjson.Parse(obj)
	if !parsed.IsObject() {
		return nil, errors.New("reply is not a JSON object")
	}
	if n != nil && n.schema != nil {
		var doc any
		dec := json.NewDecoder(strings.NewReader(obj))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode reply: %w", err)
		}
		if err := n.schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("schema: %s", describeValidation(err))
		}
	}
	list := parsed.Get("summary_points")
	if !list.IsArray() {
		return nil, errors.New("summary_points must be an array")
	}
	points := make([]SummaryPoint, 0, len(list.Array()))
	for _, item := range list.Array() {
		points = append(points, SummaryPoint{
			ID:         item.Get("id").String(),
			Text:       item.Get("text").String(),
			Confidence: item.Get("confidence").String(),
		})
	}
	return points, nil
}

// describeValidation flattens a schema error into its leaf messages, sorted because the
// validator visits properties in map order.
func describeValidation(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var leaves []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			leaves = append(leaves, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(leaves)
	return strings.Join(leaves, "; ")
}
