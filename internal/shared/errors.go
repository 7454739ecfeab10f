package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the caller supplied invalid input; nothing was
	// computed or persisted.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence wraps storage failures; the prior record state is
	// untouched and the caller may retry.
	ErrPersistence = errors.New("persistence failed")
	// ErrLocked indicates the (unit, period) key is being saved elsewhere.
	ErrLocked = errors.New("billing record locked")
)

// UserSafeMessage returns an error text suitable for display to callers.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, ErrLocked):
		return "This billing record is being saved elsewhere. Try again shortly."
	case errors.Is(err, ErrPersistence):
		return "The record could not be saved. Nothing was changed."
	default:
		return err.Error()
	}
}
