package apperr

import "errors"

// Kind classifies a failure by its source so callers can react without
// string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindAgentUnavailable
	KindMalformedResponse
	KindStorageCorrupt
	KindStorageUnavailable
	KindNotFound
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindAgentUnavailable:
		return "AGENT_UNAVAILABLE"
	case KindMalformedResponse:
		return "MALFORMED_RESPONSE"
	case KindStorageCorrupt:
		return "STORAGE_CORRUPT"
	case KindStorageUnavailable:
		return "STORAGE_UNAVAILABLE"
	case KindNotFound:
		return "NOT_FOUND"
	case KindBusy:
		return "BUSY"
	default:
		return "INTERNAL_ERROR"
	}
}

// Error carries a user-facing message alongside the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the user-facing message, or fallback when err carries none.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
