package core

import "fmt"

// ValidationError reports a request payload that failed validation.
// Path names the offending element in JSON-path-like form.
type ValidationError struct {
	Path string
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// NewValidationError creates a ValidationError for the given element path.
func NewValidationError(path, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a resource that does not exist for the caller's tenant.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s not found", e.Kind.WireType(), e.ID)
}

// ConflictError reports a write that collides with existing state,
// such as a duplicate subscription for the same criteria and channel.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// UnauthorizedError reports a request with missing or invalid credentials.
type UnauthorizedError struct {
	Msg string
}

func (e *UnauthorizedError) Error() string { return e.Msg }

// ForbiddenError reports a request the caller is not permitted to make.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string { return e.Msg }

// RateLimitedError reports a request rejected by the collaborating rate limiter.
type RateLimitedError struct {
	Msg string
}

func (e *RateLimitedError) Error() string { return e.Msg }

// ExternalServiceError reports a failure of a downstream dependency,
// such as an unreachable webhook endpoint.
type ExternalServiceError struct {
	Msg string
	Err error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
