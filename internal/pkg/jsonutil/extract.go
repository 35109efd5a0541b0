package jsonutil

import (
	"strings"

	"github.com/tidwall/gjson"
)

const codeFence = "```"

// ExtractObject finds the JSON object a model reply is meant to carry. It accepts, in order:
// the whole (trimmed) reply when it is valid JSON, the body of the first ``` fence, and the
// first balanced {...} block in free text. The returned block is not guaranteed to be valid JSON.
func ExtractObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if gjson.Valid(raw) {
		return raw, true
	}
	if block, _, ok := extractFromFence(raw); ok {
		if obj, _, ok := extractBalanced(block, '{', '}'); ok {
			return obj, true
		}
		return block, true
	}
	obj, _, ok := extractBalanced(raw, '{', '}')
	return obj, ok
}

func extractFromFence(raw string) (string, int, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", -1, false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", -1, false
	}
	block := rest[:end]
	offset := start + len(codeFence)
	// drop a language tag such as "json" on the fence line
	if idx := strings.Index(block, "\n"); idx != -1 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.ContainsAny(first, "[{") {
			block = block[idx+1:]
			offset += idx + 1
		}
	}
	block = strings.TrimSpace(block)
	if block == "" {
		return "", -1, false
	}
	return block, offset, true
}

func extractBalanced(raw string, openCh, closeCh byte) (string, int, bool) {
	start := strings.IndexByte(raw, openCh)
	if start == -1 {
		return "", -1, false
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw[start : i+1]), start, true
			}
		}
	}
	return "", -1, false
}
