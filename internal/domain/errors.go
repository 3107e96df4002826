package domain

import "errors"

// Errors reported to callers of the review, catalog and user services.
// Handlers map them onto HTTP status codes; none of them is retried.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrDuplicateReview = errors.New("review for this title already exists")
	ErrScoreRange      = errors.New("score must be between 1 and 10")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
)

// ValidationError carries per-field messages and matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
