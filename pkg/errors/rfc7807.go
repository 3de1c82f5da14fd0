// Package errors provides kinded errors and RFC 7807 Problem Details rendering
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// Error kinds surfaced by the core
const (
	KindInvalidPrice         = "InvalidPrice"
	KindStalePrice           = "StalePrice"
	KindHealthFactorTooLow   = "HealthFactorTooLow"
	KindArithmeticUnderflow  = "ArithmeticUnderflow"
	KindArithmeticOverflow   = "ArithmeticOverflow"
	KindPositionNotFound     = "PositionNotFound"
	KindAlreadyInitialized   = "AlreadyInitialized"
	KindConfigNotInitialized = "ConfigNotInitialized"
	KindUnauthorized         = "Unauthorized"
	KindConcurrencyConflict  = "ConcurrencyConflict"
	KindCollaboratorFailure  = "CollaboratorFailure"
	KindInvalidRequest       = "InvalidRequest"
)

var (
	ErrInvalidPrice         = NewWithKind(KindInvalidPrice).Explain("invalid price")
	ErrStalePrice           = NewWithKind(KindStalePrice).Explain("price quote is stale")
	ErrHealthFactorTooLow   = NewWithKind(KindHealthFactorTooLow).Explain("health factor too low")
	ErrArithmeticUnderflow  = NewWithKind(KindArithmeticUnderflow).Explain("arithmetic underflow")
	ErrArithmeticOverflow   = NewWithKind(KindArithmeticOverflow).Explain("arithmetic overflow")
	ErrPositionNotFound     = NewWithKind(KindPositionNotFound).Explain("collateral position not found")
	ErrAlreadyInitialized   = NewWithKind(KindAlreadyInitialized).Explain("config already initialized")
	ErrConfigNotInitialized = NewWithKind(KindConfigNotInitialized).Explain("config not initialized")
	ErrUnauthorized         = NewWithKind(KindUnauthorized).Explain("caller is not the config authority")
	ErrConcurrencyConflict  = NewWithKind(KindConcurrencyConflict).Explain("concurrent modification detected")
	ErrCollaboratorFailure  = NewWithKind(KindCollaboratorFailure).Explain("collaborator call failed")
	ErrInvalidRequest       = NewWithKind(KindInvalidRequest).Explain("invalid request")
)

// Error is a custom error type for passing more information
type Error struct {
	// Kind is the returned error type
	Kind string `json:"kind"`
	// Message is the human readable string that indicate the error
	Message string `json:"message"`

	cause error
}

var _ error = (*Error)(nil)

func NewWithKind(kind string) *Error {
	return &Error{Kind: kind}
}

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] ", e.Kind)
	if e.Message != "" {
		str += e.Message
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Wrap returns a copy of the error with the given cause
func (e *Error) Wrap(cause error) *Error {
	err := *e
	err.cause = cause
	return &err
}

// Explain makes a copy of the error with given message
func (e *Error) Explain(message string, args ...any) *Error {
	err := *e
	err.Message = fmt.Sprintf(message, args...)
	return &err
}

// Is implements the needed interface for errors.Is
// It checks kind for equality
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind
	}
	if e.cause != nil {
		return Is(e.cause, target)
	}
	return false
}

// KindOf returns the kind of the first kinded error in the chain, or "" when none
func KindOf(err error) string {
	var kinded *Error
	if As(err, &kinded) {
		return kinded.Kind
	}
	return ""
}

// Problem type URIs
const problemBase = "https://api.stablecoin.dev/problems/"

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Kind     string `json:"kind,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return p.Detail
}

// WithTraceID adds a trace ID to the problem details
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

var kindStatus = map[string]int{
	KindInvalidPrice:         http.StatusBadGateway,
	KindStalePrice:           http.StatusServiceUnavailable,
	KindHealthFactorTooLow:   http.StatusUnprocessableEntity,
	KindArithmeticUnderflow:  http.StatusUnprocessableEntity,
	KindArithmeticOverflow:   http.StatusUnprocessableEntity,
	KindPositionNotFound:     http.StatusNotFound,
	KindAlreadyInitialized:   http.StatusConflict,
	KindConcurrencyConflict:  http.StatusConflict,
	KindConfigNotInitialized: http.StatusPreconditionFailed,
	KindUnauthorized:         http.StatusForbidden,
	KindCollaboratorFailure:  http.StatusBadGateway,
	KindInvalidRequest:       http.StatusBadRequest,
}

// StatusFor returns the HTTP status for an error kind
func StatusFor(kind string) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ToProblemDetails converts any error into problem details for the given instance
func ToProblemDetails(err error, instance string) *ProblemDetails {
	var problem *ProblemDetails
	if As(err, &problem) {
		return problem
	}

	kind := KindOf(err)
	status := StatusFor(kind)
	title := http.StatusText(status)
	problemType := problemBase + "internal-error"
	if kind != "" {
		title = kind
		problemType = problemBase + kind
	}

	// unkinded errors are internal; their text stays in the logs
	detail := http.StatusText(status)
	if kind != "" {
		detail = err.Error()
	}

	return &ProblemDetails{
		Type:     problemType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
		Kind:     kind,
	}
}

// NewValidationError creates a validation error problem
func NewValidationError(detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     problemBase + KindInvalidRequest,
		Title:    KindInvalidRequest,
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: instance,
		Kind:     KindInvalidRequest,
	}
}

// NewUnauthorizedError creates an unauthenticated request problem
func NewUnauthorizedError(detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     problemBase + "unauthenticated",
		Title:    "Unauthenticated",
		Status:   http.StatusUnauthorized,
		Detail:   detail,
		Instance: instance,
	}
}
