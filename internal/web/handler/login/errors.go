package login

import "errors"

var (
	// ErrInvalidFormData is returned when the submitted login form cannot be parsed
	// or fails validation.
	ErrInvalidFormData = errors.New("invalid form data")

	// ErrInvalidCredentials is returned when the provided username and/or password
	// are not valid.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInactive is returned when the account is disabled.
	ErrInactive = errors.New("account is inactive")

	// ErrInternalServerError is returned for unexpected failures during the login
	// process.
	ErrInternalServerError = errors.New("internal server error")
)
