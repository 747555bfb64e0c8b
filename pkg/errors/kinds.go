package errors

import "fmt"

// NotFoundf reports a referenced entity that does not exist.
func NotFoundf(format string, args ...any) *Error {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

// Conflictf reports a duplicate against a unique constraint.
func Conflictf(format string, args ...any) *Error {
	return New(CodeConflict, fmt.Sprintf(format, args...))
}

// Validationf reports a missing or malformed field.
func Validationf(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// Statef reports an operation that is invalid in the current state.
func Statef(format string, args ...any) *Error {
	return New(CodeStateConflict, fmt.Sprintf(format, args...))
}

// Internal wraps an unexpected store or collaborator failure.
func Internal(err error, message string) *Error {
	return Wrap(CodeInternal, err, message)
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// Passthrough returns typed errors untouched and wraps anything else as internal.
func Passthrough(err error, message string) error {
	if err == nil {
		return nil
	}
	if As(err) != nil {
		return err
	}
	return Internal(err, message)
}
