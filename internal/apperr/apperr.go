// Package apperr tags errors with a coarse kind so callers can branch on
// classification instead of matching substrings of human-readable messages.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	Unknown Kind = iota
	Validation
	NotFound
	Quota
	RateLimit
	Upstream
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Quota:
		return "quota"
	case RateLimit:
		return "rate_limit"
	case Upstream:
		return "upstream"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from an error chain. Untagged errors report
// Unknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Unknown
}

// IsQuota reports whether the error is resource-exhaustion. Backends outside
// our control still signal quota through message text, so the substring
// check stays as a fallback behind the tagged kind.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	if KindOf(err) == Quota {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "quota")
}

func IsRateLimit(err error) bool {
	return KindOf(err) == RateLimit
}

func IsValidation(err error) bool {
	return KindOf(err) == Validation
}
