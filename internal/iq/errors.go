package iq

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies audit failures. Each terminal kind is reported separately
// so callers can tell "wrong application" from "scan rejected" from "slow server".
type Kind int

const (
	KindUnknown Kind = iota
	KindResolutionTransport
	KindResolutionNotFound
	KindSubmissionRejected
	KindPollTransport
	KindPollMalformed
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindResolutionTransport:
		return "resolution_transport"
	case KindResolutionNotFound:
		return "not_found"
	case KindSubmissionRejected:
		return "rejected"
	case KindPollTransport:
		return "poll_transport"
	case KindPollMalformed:
		return "malformed"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

func (k Kind) defaultMessage() string {
	switch k {
	case KindResolutionTransport:
		return "failed to resolve IQ application ID"
	case KindResolutionNotFound:
		return "No valid ID on response from IQ server, potentially check the public application ID you are using"
	case KindSubmissionRejected:
		return "Unable to submit to Third Party API"
	case KindPollTransport:
		return "failed to fetch scan status"
	case KindPollMalformed:
		return "IQ server returned an unusable scan report"
	case KindTimeout:
		return "timed out waiting for the IQ scan report"
	default:
		return "IQ request failed"
	}
}

// Error is returned by every orchestrator operation.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrResolutionTransport = &Error{Kind: KindResolutionTransport}
	ErrResolutionNotFound  = &Error{Kind: KindResolutionNotFound}
	ErrSubmissionRejected  = &Error{Kind: KindSubmissionRejected}
	ErrPollTransport       = &Error{Kind: KindPollTransport}
	ErrPollMalformed       = &Error{Kind: KindPollMalformed}
	ErrTimeout             = &Error{Kind: KindTimeout}
)

func (e *Error) Error() string {
	var sb strings.Builder

	msg := e.Message
	if msg == "" {
		msg = e.Kind.defaultMessage()
	}
	sb.WriteString(msg)

	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, status int, err error) *Error {
	return &Error{Kind: kind, StatusCode: status, Err: err}
}
