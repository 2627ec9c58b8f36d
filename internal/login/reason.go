package login

import (
	"fmt"
	"html/template"
)

// Reason is the failure code carried to the login page in the error query parameter.
type Reason string

// Failure reasons of a login transaction.
const (
	ReasonMissingParams Reason = "missing_params"
	ReasonStateMismatch Reason = "state_mismatch"
	ReasonToken         Reason = "token"
	ReasonUserInfo      Reason = "user_info"
	ReasonAccessDenied  Reason = "access_denied"
	ReasonEmptyUser     Reason = "empty_user"
	ReasonDiscoveryDoc  Reason = "discovery_doc"
)

var messages = map[Reason]string{ //nolint:gochecknoglobals
	ReasonMissingParams: "Malformatted response to OpenID authentication request. Please try logging in again later.",
	ReasonStateMismatch: "Anti-forgery state token mismatch. Please try logging in again.",
	ReasonDiscoveryDoc:  "There was an error reading the Google API discovery document. Please try logging in again later.",
	ReasonToken:         "There was an error receiving the Google OAuth access token. Please try logging in again later.",
	ReasonUserInfo:      "There was an error fetching user info from Google. Please try logging in again later.",
	ReasonAccessDenied:  "Sorry, your account cannot login to this site.",
}

const genericMessage = "OpenID login error. Please try logging in again later."

// Message returns the text shown for reason. Unknown reasons get a generic text.
func Message(reason string) string {
	if m, ok := messages[Reason(reason)]; ok {
		return m
	}

	return genericMessage
}

// FallbackNotice explains the local login form after a failed Google sign-in.
// loginURL is the address that starts a new Google sign-in.
func FallbackNotice(loginURL string) template.HTML {
	return template.HTML(fmt.Sprintf( //nolint:gosec
		`Since the Google sign-in failed, you were taken to the default login page. `+
			`If you want to attempt another sign in with Google, click <a href="%s">here</a>.`,
		template.HTMLEscapeString(loginURL),
	))
}
