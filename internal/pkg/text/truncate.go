package text

import "unicode/utf8"

// DisplayLimit is the rune budget for raw model text shown next to a parse failure.
const DisplayLimit = 200

// TruncateRunes returns at most max runes of s without splitting a UTF-8 sequence.
// Invalid bytes count as one rune each, as utf8.DecodeRuneInString reports them.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	count := 0
	for i := 0; i < len(s); {
		if count == max {
			return s[:i]
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s
}

// Truncate shortens s to max runes and marks the cut with "...". The marker is
// not counted against max; use TruncateRunes when the bound must be exact. max <= 0 yields "".
func Truncate(s string, max int) string {
	out := TruncateRunes(s, max)
	if len(out) == len(s) || out == "" {
		return out
	}
	return out + "..."
}
