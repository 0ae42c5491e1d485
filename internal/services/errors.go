package services

import "errors"

var (
	// validation
	ErrMissingFields = errors.New("missing required fields")

	// auth
	ErrEmailExists       = errors.New("email already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrMailDelivery      = errors.New("failed to send confirmation email")

	// content
	ErrConstellationNotFound = errors.New("constellation not found")
	ErrInvalidData           = errors.New("constellation data is not valid JSON")

	// upstream
	ErrWordServiceUnavailable = errors.New("word service unreachable")
)
