// Package login drives the Google sign-in of the host application.
//
// The host calls OnLoginPageRequest when its login page is requested and
// OnRequestInit early on every request. Both return an Outcome the host
// turns into a response; the package never writes responses itself.
package login

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/wslogin/google-auth/internal/browserstate"
	"github.com/wslogin/google-auth/internal/db/models"
	"github.com/wslogin/google-auth/internal/google/oauth"
	"github.com/wslogin/google-auth/internal/google/settings"
	"github.com/wslogin/google-auth/internal/identity"
)

// Query parameters understood on the login page.
const (
	ParamNoOpenID   = "noopenid"
	ParamLoggedOut  = "loggedout"
	ParamAction     = "action"
	ParamRedirectTo = "redirect_to"
	ParamCode       = "code"
	ParamState      = "state"

	errorParamSuffix = "_error"
)

// hostActions are login page actions handled by the host itself.
var hostActions = []string{"logout", "lostpassword", "rp", "resetpass"} //nolint:gochecknoglobals

var outcomes = promauto.NewCounterVec( //nolint:gochecknoglobals
	prometheus.CounterOpts{
		Name: "google_auth_login_total",
		Help: "Google sign-in transactions by final state and reason.",
	},
	[]string{"state", "reason"},
)

// State of a login transaction.
type State string

// States of a login transaction.
const (
	StateIdle             State = "idle"
	StateRedirecting      State = "redirecting"
	StateAwaitingCallback State = "awaiting_callback"
	StateValidating       State = "validating"
	StateResolving        State = "resolving"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
)

// Action tells the host what to do with the request.
type Action int

const (
	// Defer lets the host continue with its own handling.
	Defer Action = iota
	// Redirect ends the request with a redirect to Outcome.Location.
	Redirect
)

// Request is the part of an http request the orchestrator looks at.
type Request struct {
	Method string
	Query  url.Values
	Jar    browserstate.Jar
}

// Outcome of one entry point call.
type Outcome struct {
	Action   Action
	Location string
	State    State
	Reason   Reason
	// User is set after a successful callback.
	User *models.User
}

// SessionStarter establishes the authenticated host session for user.
type SessionStarter interface {
	Start(ctx context.Context, jar browserstate.Jar, user *models.User) error
}

// SettingsSource returns the current settings.
type SettingsSource interface {
	Current() settings.Settings
}

// AccountMapper resolves the local account of a Google identity.
type AccountMapper interface {
	UpsertAccount(ctx context.Context, info oauth.UserInfo) (*models.User, error)
	AssignRoles(ctx context.Context, user *models.User, roles []string) error
}

// Config of an Orchestrator.
type Config struct {
	// BaseURL is the public site url. Absolute redirect targets must point at it.
	BaseURL string
	// LoginPath is the host login page, "/login" by default.
	LoginPath string
	// HomePath is where logged out users land, "/" by default.
	HomePath string
	// LandingPath is the target when no usable redirect_to was saved, "/dashboard" by default.
	LandingPath string
	// ProfilePath is never used as a post login target, "/profile" by default.
	ProfilePath string

	OAuth    *oauth.Client
	Settings SettingsSource
	Mapper   AccountMapper
	Sessions SessionStarter
}

// Orchestrator runs login transactions. It is safe for concurrent use;
// all per transaction state lives in the browser and in a per call oauth.Flow.
type Orchestrator struct {
	cfg  Config
	base *url.URL
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}

	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}

	if cfg.LandingPath == "" {
		cfg.LandingPath = "/dashboard"
	}

	if cfg.ProfilePath == "" {
		cfg.ProfilePath = "/profile"
	}

	o := &Orchestrator{cfg: cfg}

	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Host != "" {
		o.base = base
	}

	return o
}

// ErrorParam is the query key carrying the failure reason to the login page.
func (o *Orchestrator) ErrorParam() string {
	return o.cfg.OAuth.Prefix() + errorParamSuffix
}

// LoginPath returns the host login page.
func (o *Orchestrator) LoginPath() string {
	return o.cfg.LoginPath
}

// LandingPath is the default post login target.
func (o *Orchestrator) LandingPath() string {
	return o.cfg.LandingPath
}

// SafeRedirect returns target if it stays on this site, else "".
func (o *Orchestrator) SafeRedirect(target string) string {
	return safeRedirect(target, o.base)
}

// ErrorLocation is the login page url showing reason with the Google redirect disabled.
func (o *Orchestrator) ErrorLocation(reason Reason) string {
	return o.cfg.LoginPath + "?" + ParamNoOpenID + "&" + o.ErrorParam() + "=" + url.QueryEscape(string(reason))
}

// OnLoginPageRequest decides whether a login page request is sent to Google.
func (o *Orchestrator) OnLoginPageRequest(ctx context.Context, req Request) Outcome {
	if req.Query.Get(ParamLoggedOut) == "true" {
		return Outcome{Action: Redirect, Location: o.cfg.HomePath, State: StateIdle}
	}

	if req.Query.Has(ParamNoOpenID) || strings.EqualFold(req.Method, "POST") {
		return Outcome{Action: Defer, State: StateIdle}
	}

	if slices.Contains(hostActions, req.Query.Get(ParamAction)) {
		return Outcome{Action: Defer, State: StateIdle}
	}

	if !o.cfg.Settings.Current().Configured {
		log.Debug().Msg("google sign-in not configured, showing local login")

		return Outcome{Action: Defer, State: StateIdle}
	}

	flow := o.cfg.OAuth.Begin(req.Jar)

	if target := req.Query.Get(ParamRedirectTo); target != "" {
		if safe := safeRedirect(target, o.base); safe != "" {
			req.Jar.Set(browserstate.New(o.cfg.OAuth.RedirectCookie(), safe, browserstate.TransactionTTL))
		}
	}

	authURL, err := flow.AuthorizationURL(ctx, "")
	if err != nil || authURL == "" {
		// no loop back to the login page, the host shows its own form
		log.Debug().Err(err).Msg("authorization url unavailable, showing local login")
		outcomes.WithLabelValues(string(StateIdle), string(ReasonDiscoveryDoc)).Inc()

		return Outcome{Action: Defer, State: StateIdle, Reason: ReasonDiscoveryDoc}
	}

	outcomes.WithLabelValues(string(StateRedirecting), "").Inc()

	return Outcome{Action: Redirect, Location: authURL, State: StateAwaitingCallback}
}

// OnRequestInit completes a transaction when the request is a Google callback.
// Other requests are deferred untouched.
func (o *Orchestrator) OnRequestInit(ctx context.Context, req Request) Outcome {
	if !req.Query.Has(o.cfg.OAuth.CallbackMarker()) {
		return Outcome{Action: Defer, State: StateIdle}
	}

	if !req.Query.Has(ParamCode) || !req.Query.Has(ParamState) {
		return o.fail(ReasonMissingParams, nil)
	}

	flow := o.cfg.OAuth.Begin(req.Jar)

	if !flow.ValidateState(req.Query.Get(ParamState)) {
		return o.fail(ReasonStateMismatch, nil)
	}

	if _, err := flow.FetchAuthToken(ctx, req.Query.Get(ParamCode), "", ""); err != nil {
		return o.fail(ReasonToken, err)
	}

	info, err := flow.FetchUserInfo(ctx, nil)
	if err != nil {
		return o.fail(ReasonUserInfo, err)
	}

	roles, err := identity.ResolveRoles(o.cfg.Settings.Current().EmailPatterns, info.Email)
	if err != nil {
		log.Info().Str("email", info.Email).Msg("google sign-in denied, no email pattern matches")

		return o.fail(ReasonAccessDenied, err)
	}

	user, err := o.cfg.Mapper.UpsertAccount(ctx, info)
	if err == nil && user == nil {
		err = identity.ErrAccountResolution
	}

	if err == nil {
		err = o.cfg.Mapper.AssignRoles(ctx, user, roles)
	}

	if err == nil {
		err = o.cfg.Sessions.Start(ctx, req.Jar, user)
	}

	if err != nil {
		return o.fail(ReasonEmptyUser, err)
	}

	target := safeRedirect(req.Jar.Get(o.cfg.OAuth.RedirectCookie()), o.base)
	if target == "" || o.isProfile(target) {
		target = o.cfg.LandingPath
	}

	req.Jar.Set(browserstate.Clear(o.cfg.OAuth.RedirectCookie()))
	flow.ClearState()

	log.Info().Str("email", info.Email).Uint64("user", user.ID).Strs("roles", roles).Msg("google sign-in succeeded")
	outcomes.WithLabelValues(string(StateSucceeded), "").Inc()

	return Outcome{Action: Redirect, Location: target, State: StateSucceeded, User: user}
}

func (o *Orchestrator) fail(reason Reason, err error) Outcome {
	ev := log.Debug().Str("reason", string(reason))
	if err != nil && !errors.Is(err, identity.ErrAccessDenied) {
		ev = ev.Err(err)
	}

	ev.Msg("google sign-in failed")
	outcomes.WithLabelValues(string(StateFailed), string(reason)).Inc()

	return Outcome{Action: Redirect, Location: o.ErrorLocation(reason), State: StateFailed, Reason: reason}
}

func (o *Orchestrator) isProfile(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}

	return strings.TrimSuffix(u.Path, "/") == strings.TrimSuffix(o.cfg.ProfilePath, "/")
}
