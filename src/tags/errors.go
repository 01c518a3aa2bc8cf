package tags

import (
	"fmt"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/security/validation"
)

// ValidationError rejects a malformed tag name or metadata field. Err
// always wraps validation.ErrValidationFailed.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field: field,
		Err:   fmt.Errorf("%w: "+format, append([]any{validation.ErrValidationFailed}, args...)...),
	}
}

// ConflictError is returned when creating a tag that already exists.
type ConflictError struct{ Name models.TagName }

func (e *ConflictError) Error() string { return fmt.Sprintf("tag %q already exists", e.Name) }

// NotFoundError is returned for a tag the taxonomy does not know.
type NotFoundError struct{ Name models.TagName }

func (e *NotFoundError) Error() string { return fmt.Sprintf("tag %q not found", e.Name) }

// ForbiddenError is returned when deleting a system tag.
type ForbiddenError struct{ Name models.TagName }

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("tag %q is a system tag and cannot be deleted", e.Name)
}
