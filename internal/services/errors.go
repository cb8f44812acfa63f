package services

import "errors"

var (
	// ErrNotFound covers both missing reports and reports owned by someone else.
	ErrNotFound           = errors.New("report not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidResetToken  = errors.New("invalid or expired password reset link")
)
