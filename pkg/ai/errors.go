package ai

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the completion service so callers never
// have to inspect error text.
type ErrorKind string

const (
	// KindMissingCredential means no credential was supplied and no fallback was configured.
	KindMissingCredential ErrorKind = "missing_credential"
	// KindAuthentication means the credential was empty or rejected by the remote service.
	KindAuthentication ErrorKind = "authentication"
	// KindTransport covers network failures, timeouts and non-auth HTTP failures.
	KindTransport ErrorKind = "transport"
)

// ErrMissingCredential is returned before any network call when no credential is available.
var ErrMissingCredential = &Error{Kind: KindMissingCredential, Op: "resolve credential", Err: errors.New("llm api key is required")}

// Error is the structured failure returned by a Completer.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrMissingCredential) works on wrapped copies.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in the chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Kind
	}
	return ""
}

// IsAuthentication reports whether err was caused by a rejected or empty credential.
func IsAuthentication(err error) bool {
	return KindOf(err) == KindAuthentication
}

// IsTransport reports whether err was caused by the network or the remote service.
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// IsMissingCredential reports whether no credential could be resolved.
func IsMissingCredential(err error) bool {
	return KindOf(err) == KindMissingCredential
}
