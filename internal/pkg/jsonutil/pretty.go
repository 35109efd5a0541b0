package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Pretty indents raw JSON for log dumps. Input that is not JSON is returned trimmed and unchanged.
func Pretty(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}
