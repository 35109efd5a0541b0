package session

import "errors"

var (
	// ErrInvalidInput rejects a request before any backend is contacted.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFeature rejects multi-round requests.
	ErrUnsupportedFeature = errors.New("unsupported feature")
	// ErrAggregationUnavailable marks a failed arbitration call. It never aborts a session.
	ErrAggregationUnavailable = errors.New("aggregation unavailable")
)

// ErrorKind classifies a per-backend problem recorded in a session's responses.
type ErrorKind string

const (
	ErrorKindNone    ErrorKind = ""
	BackendTimeout   ErrorKind = "backend_timeout"
	BackendError     ErrorKind = "backend_error"
	ParseFailureKind ErrorKind = "parse_failure"
)

// KindOf returns the error classification of a record, or ErrorKindNone for a success.
func KindOf(r Record) ErrorKind {
	switch v := r.(type) {
	case Failure:
		if v.IsTimeout {
			return BackendTimeout
		}
		return BackendError
	case ParseFailure:
		return ParseFailureKind
	default:
		return ErrorKindNone
	}
}
