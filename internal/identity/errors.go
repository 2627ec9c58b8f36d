package identity

import "errors"

var (
	// ErrAccessDenied is returned when no email pattern grants a role.
	ErrAccessDenied = errors.New("no email pattern matches")

	// ErrAccountResolution is returned when the local account could not be found or created.
	ErrAccountResolution = errors.New("local account could not be resolved")

	// ErrAccountNotFound is returned by an AccountStore lookup without result.
	ErrAccountNotFound = errors.New("account not found")
)
