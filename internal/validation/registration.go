package validation

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	MaxUsernameLength = 150
	MinPasswordLength = 8
)

var validate = validator.New()

// UserLookup answers the uniqueness questions registration needs.
type UserLookup interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

type RegistrationForm struct {
	Username  string
	Email     string
	Password1 string
	Password2 string
}

// Normalize trims surrounding whitespace from the identity fields. Passwords are left untouched.
func (f *RegistrationForm) Normalize() {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
}

// ValidateRegistration checks every field of f and returns all failures
// together as Errors. A non-Errors error means a lookup failed.
func ValidateRegistration(ctx context.Context, f RegistrationForm, users UserLookup) error {
	var errs Errors

	switch {
	case f.Username == "":
		errs.Add("username", ErrRequired)
	case utf8.RuneCountInString(f.Username) > MaxUsernameLength:
		errs.Add("username", ErrTooLong)
	case strings.IndexFunc(f.Username, unicode.IsControl) >= 0:
		errs.Add("username", ErrInvalidUsername)
	default:
		exists, err := users.UsernameExists(ctx, f.Username)
		if err != nil {
			return fmt.Errorf("checking username: %w", err)
		}
		if exists {
			errs.Add("username", ErrDuplicateUsername)
		}
	}

	switch {
	case f.Email == "":
		errs.Add("email", ErrRequired)
	case validate.Var(f.Email, "email") != nil:
		errs.Add("email", ErrInvalidEmail)
	default:
		exists, err := users.EmailExists(ctx, f.Email)
		if err != nil {
			return fmt.Errorf("checking email: %w", err)
		}
		if exists {
			errs.Add("email", ErrDuplicateEmail)
		}
	}

	checkPasswords(&errs, f.Password1, f.Password2)
	return errs.OrNil()
}

// ValidateNewPassword checks a password and its confirmation, as entered on
// the password reset form.
func ValidateNewPassword(password1, password2 string) error {
	var errs Errors
	checkPasswords(&errs, password1, password2)
	return errs.OrNil()
}

// ValidateResetRequest checks the address a password reset link is requested for.
func ValidateResetRequest(email string) error {
	var errs Errors
	switch {
	case email == "":
		errs.Add("email", ErrRequired)
	case validate.Var(email, "email") != nil:
		errs.Add("email", ErrInvalidEmail)
	}
	return errs.OrNil()
}

func checkPasswords(errs *Errors, password1, password2 string) {
	checkPassword(errs, "password1", password1)
	checkPassword(errs, "password2", password2)

	if password1 != "" && password2 != "" && password1 != password2 {
		errs.Add("password2", ErrPasswordMismatch)
	}
}

func checkPassword(errs *Errors, field, password string) {
	switch {
	case password == "":
		errs.Add(field, ErrRequired)
	case utf8.RuneCountInString(password) < MinPasswordLength:
		errs.Add(field, ErrPasswordTooShort)
	}
}
