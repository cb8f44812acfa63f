package validation

import (
	"errors"
	"strings"
)

var (
	ErrRequired         = errors.New("This field is required.")
	ErrTooLong          = errors.New("Ensure this value is not too long.")
	ErrInvalidUsername  = errors.New("Enter a valid username. Control characters are not allowed.")
	ErrInvalidEmail     = errors.New("Enter a valid email address.")
	ErrPasswordTooShort = errors.New("Ensure this value has at least 8 characters.")

	ErrDuplicateUsername = errors.New("Username already exists.")
	ErrDuplicateEmail    = errors.New("Email already registered.")
	ErrPasswordMismatch  = errors.New("Passwords do not match.")

	ErrPhotoTooLarge = errors.New("Photo file size should not exceed 5MB.")
	ErrVideoTooLarge = errors.New("Video file size should not exceed 50MB.")
)

// FieldError ties a validation failure to the form field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e FieldError) Unwrap() error { return e.Err }

// Errors collects every field error of a form. A nil or empty Errors means the form is valid.
type Errors []FieldError

func (e *Errors) Add(field string, err error) {
	*e = append(*e, FieldError{Field: field, Err: err})
}

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

func (e Errors) Unwrap() []error {
	errs := make([]error, len(e))
	for i := range e {
		errs[i] = e[i]
	}
	return errs
}

// For returns the messages recorded for field, in the order they were added.
func (e Errors) For(field string) []string {
	var msgs []string
	for _, fe := range e {
		if fe.Field == field {
			msgs = append(msgs, fe.Err.Error())
		}
	}
	return msgs
}

// Has reports whether field has at least one error.
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns e as an error, or nil when it holds no field errors.
func (e Errors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
