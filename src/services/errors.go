package services

import "errors"

// Sentinel errors for explicit error handling
// These errors allow callers to distinguish between different failure modes
// using errors.Is() instead of string matching

var (
	// ErrInvalidSignature indicates a missing, malformed or mismatched webhook signature
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrInvalidPayload indicates the body is not a JSON object or lacks required fields
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidCredentials indicates admin authentication failed
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Kind classifies webhook handling errors for the transport layer
type Kind int

const (
	// KindNone means no error
	KindNone Kind = iota
	// KindInvalidSignature maps to unauthorized
	KindInvalidSignature
	// KindInvalidPayload maps to a client error
	KindInvalidPayload
	// KindInternal covers store and other unexpected failures
	KindInternal
)

// ErrorKind returns the Kind of err
func ErrorKind(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidSignature):
		return KindInvalidSignature
	case errors.Is(err, ErrInvalidPayload):
		return KindInvalidPayload
	default:
		return KindInternal
	}
}
