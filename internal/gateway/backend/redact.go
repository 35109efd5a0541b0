package backend

import (
	"regexp"
	"sort"
	"strings"
)

const redacted = "****"

var (
	bearerPattern     = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)
	queryParamPattern = regexp.MustCompile(`(?i)([?&](?:api[_-]?key|key|token|access_token|auth|password)=)[^&\s"']+`)
	tokenShapePattern = regexp.MustCompile(`\b(?:hf_[A-Za-z0-9]{8,}|sk-[A-Za-z0-9_-]{8,})`)
)

// Redactor scrubs credentials out of error text before it leaves the invoker.
// It removes the configured secrets verbatim plus bearer tokens, credential query
// parameters and well-known key shapes that a transport error may echo.
type Redactor struct {
	secrets []string
}

// NewRedactor builds a Redactor for the given secrets. Blank values are ignored.
func NewRedactor(secrets ...string) Redactor {
	uniq := make(map[string]struct{}, len(secrets))
	out := make([]string, 0, len(secrets))
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := uniq[s]; ok {
			continue
		}
		uniq[s] = struct{}{}
		out = append(out, s)
	}
	// longest first so a secret containing another is replaced whole
	sort.Slice(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return Redactor{secrets: out}
}

func (r Redactor) Redact(msg string) string {
	if msg == "" {
		return msg
	}
	for _, s := range r.secrets {
		msg = strings.ReplaceAll(msg, s, redacted)
	}
	msg = bearerPattern.ReplaceAllString(msg, "${1}"+redacted)
	msg = queryParamPattern.ReplaceAllString(msg, "${1}"+redacted)
	msg = tokenShapePattern.ReplaceAllString(msg, redacted)
	return msg
}

// maskSecret hides a value in debug logs, keeping only its last four characters.
func maskSecret(v string) string {
	if len(v) <= 8 {
		return redacted
	}
	return redacted + v[len(v)-4:]
}
