package scene

import (
	"errors"
	"fmt"
)

// ErrorKind is the failure taxonomy shared by the generation and narration slots.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrMissingCredential
	ErrNetworkFailure
	ErrEmptyResult
	ErrEmptyAudio
	ErrDecodeFailure
	ErrPlaybackFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMissingCredential:
		return "missing_credential"
	case ErrNetworkFailure:
		return "network_failure"
	case ErrEmptyResult:
		return "empty_result"
	case ErrEmptyAudio:
		return "empty_audio"
	case ErrDecodeFailure:
		return "decode_failure"
	case ErrPlaybackFailure:
		return "playback_failure"
	default:
		return "none"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error carries a taxonomy kind alongside the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind. A nil err still yields a non-nil *Error.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf maps any error onto the taxonomy. Untyped errors, including
// deadline expiry, count as network failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrNone
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrNetworkFailure
}
