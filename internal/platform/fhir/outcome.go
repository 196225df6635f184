package fhir

import (
	"errors"
	"net/http"

	"github.com/ngsanogo/keneyapp/internal/core"
)

// MapError translates the internal error taxonomy into an HTTP status and
// an OperationOutcome payload. The mapping table is closed: anything not
// listed maps to 500/exception with generic diagnostics so internal detail
// never leaks to callers.
func MapError(err error) (int, *OperationOutcome) {
	var (
		validationErr *core.ValidationError
		notFoundErr   *core.NotFoundError
		unauthorized  *core.UnauthorizedError
		forbidden     *core.ForbiddenError
		conflict      *core.ConflictError
		rateLimited   *core.RateLimitedError
		external      *core.ExternalServiceError
	)

	switch {
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, notFoundErr.Error())
	case errors.As(err, &validationErr):
		outcome := NewOperationOutcome(IssueSeverityError, IssueTypeInvalid, validationErr.Msg)
		if validationErr.Path != "" {
			outcome.Issue[0].Expression = []string{validationErr.Path}
		}
		return http.StatusUnprocessableEntity, outcome
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized, NewOperationOutcome(IssueSeverityError, IssueTypeSecurity, unauthorized.Msg)
	case errors.As(err, &forbidden):
		return http.StatusForbidden, NewOperationOutcome(IssueSeverityError, IssueTypeForbidden, forbidden.Msg)
	case errors.As(err, &conflict):
		return http.StatusConflict, NewOperationOutcome(IssueSeverityError, IssueTypeConflict, conflict.Msg)
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests, NewOperationOutcome(IssueSeverityError, IssueTypeThrottled, "rate limit exceeded, retry after a delay")
	case errors.As(err, &external):
		return http.StatusBadGateway, NewOperationOutcome(IssueSeverityError, IssueTypeProcessing, external.Msg)
	default:
		return http.StatusInternalServerError, NewOperationOutcome(IssueSeverityFatal, IssueTypeException, "internal server error")
	}
}
