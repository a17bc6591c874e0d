package apperr

import (
	"errors"
	"fmt"
)

// Error codes for the failure classes surfaced by the core.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodePattern     = "PATTERN_ERROR"
	CodeTransport   = "TRANSPORT_ERROR"
	CodeRoutingMiss = "ROUTING_MISS"
	CodeStaleEvent  = "STALE_EVENT"
	CodeNotFound    = "NOT_FOUND"
	CodeUnknown     = "UNKNOWN"
)

// BaseError carries the code, message and optional cause shared by all typed errors.
type BaseError struct {
	code    string
	message string
	cause   error
}

func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *BaseError) Code() string    { return e.code }
func (e *BaseError) Message() string { return e.message }
func (e *BaseError) Unwrap() error   { return e.cause }

// ValidationError blocks an action synchronously because a required field is
// missing or invalid.
type ValidationError struct {
	*BaseError
	Field string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		BaseError: &BaseError{code: CodeValidation, message: message},
		Field:     field,
	}
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.message)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

// PatternError reports a regular expression that failed to compile.
type PatternError struct {
	*BaseError
	Pattern string
}

func NewPatternError(pattern string, cause error) *PatternError {
	return &PatternError{
		BaseError: &BaseError{code: CodePattern, message: "invalid pattern", cause: cause},
		Pattern:   pattern,
	}
}

// TransportError is a connect, stop or read failure reported by the transport boundary.
type TransportError struct {
	*BaseError
	Op           string
	ConnectionID string
}

func NewTransportError(op, connectionID string, cause error) *TransportError {
	return &TransportError{
		BaseError:    &BaseError{code: CodeTransport, message: op + " failed", cause: cause},
		Op:           op,
		ConnectionID: connectionID,
	}
}

// RoutingMiss is an inbound event whose owner could not be resolved.
type RoutingMiss struct {
	*BaseError
	ConnectionID string
	ResourcePath string
}

func NewRoutingMiss(connectionID, resourcePath string) *RoutingMiss {
	return &RoutingMiss{
		BaseError:    &BaseError{code: CodeRoutingMiss, message: "no connection owns event"},
		ConnectionID: connectionID,
		ResourcePath: resourcePath,
	}
}

func (e *RoutingMiss) Error() string {
	if e.ResourcePath != "" {
		return fmt.Sprintf("%s: path=%q", e.message, e.ResourcePath)
	}
	return fmt.Sprintf("%s: id=%q", e.message, e.ConnectionID)
}

// StaleEventError is an asynchronous event carrying an outdated epoch.
type StaleEventError struct {
	*BaseError
	ConnectionID string
	Got          uint64
	Want         uint64
}

func NewStaleEventError(connectionID string, got, want uint64) *StaleEventError {
	return &StaleEventError{
		BaseError:    &BaseError{code: CodeStaleEvent, message: "stale event"},
		ConnectionID: connectionID,
		Got:          got,
		Want:         want,
	}
}

func (e *StaleEventError) Error() string {
	return fmt.Sprintf("stale event for %s: epoch %d, current %d", e.ConnectionID, e.Got, e.Want)
}

// NotFoundError represents an unknown connection or format id.
type NotFoundError struct {
	*BaseError
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{
		BaseError: &BaseError{code: CodeNotFound, message: resource + " not found"},
		Resource:  resource,
		ID:        id,
	}
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return e.message
}

type coder interface{ Code() string }

// Code returns the error code of err, or CodeUnknown.
func Code(err error) string {
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeUnknown
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsPattern(err error) bool {
	var p *PatternError
	return errors.As(err, &p)
}

func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

func IsStale(err error) bool {
	var s *StaleEventError
	return errors.As(err, &s)
}

func IsRoutingMiss(err error) bool {
	var r *RoutingMiss
	return errors.As(err, &r)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}
