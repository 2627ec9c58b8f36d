package oauth

import (
	"errors"

	"github.com/wslogin/google-auth/internal/google/endpoints"
)

var (
	// ErrDiscoveryUnavailable is returned when the endpoints could not be resolved.
	ErrDiscoveryUnavailable = endpoints.ErrDiscoveryUnavailable

	// ErrTokenExchange is returned when the code could not be exchanged for a token.
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrUserInfo is returned when the user info endpoint failed or returned no email.
	ErrUserInfo = errors.New("user info request failed")

	// ErrMissingToken is returned by FetchUserInfo before any token was obtained.
	ErrMissingToken = errors.New("no access token available")
)
