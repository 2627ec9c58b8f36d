package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/wslogin/google-auth/internal/browserstate"
	"github.com/wslogin/google-auth/internal/google/oauth"
)

// Messages shown to administrators.
const (
	MsgDiscovery      = "There was an error reading the Google API discovery document, please try again later."
	MsgClientID       = "An OpenID error was detected, open %s to view the problematic response from Google."
	MsgEmptySecret    = "Client secret cannot be empty."
	MsgCacheRefresh   = "Cache refresh interval was changed to a non-negative integer."
	MsgSaved          = "Settings saved. Please test out the login functionality to verify that everything is working as expected."
	msgInvalidRegex   = "Email pattern %d has an invalid regex: %s"
	msgUnknownRole    = "Email pattern %d grants unknown role %q."
	msgValidationFail = "Field '%s' failed validation tag '%s'"
)

// RoleLister returns the keys of all roles known to the host.
type RoleLister interface {
	RoleKeys(ctx context.Context) ([]string, error)
}

// Validator checks candidate settings against Google before they are saved.
type Validator struct {
	oauth    *oauth.Client
	http     *http.Client
	roles    RoleLister
	validate *validator.Validate
}

// NewValidator creates a Validator. roles may be nil.
func NewValidator(client *oauth.Client, httpClient *http.Client, roles RoleLister) *Validator {
	if httpClient == nil {
		httpClient = cleanhttp.DefaultClient()
		httpClient.Timeout = 10 * time.Second //nolint:mnd
	}

	return &Validator{
		oauth:    client,
		http:     httpClient,
		roles:    roles,
		validate: validator.New(),
	}
}

// Result of Sanitize.
type Result struct {
	Settings Settings `json:"settings"`
	Errors   []string `json:"errors"`
	Notices  []string `json:"notices"`
}

// Validate returns one message per problem with candidate. An empty slice means valid.
func (v *Validator) Validate(ctx context.Context, candidate Settings) []string {
	var result *multierror.Error

	result = multierror.Append(result, v.checkClient(ctx, candidate.ClientID)...)

	if candidate.ClientSecret == "" {
		result = multierror.Append(result, errors.New(MsgEmptySecret)) //nolint:err113
	}

	result = multierror.Append(result, v.checkPatterns(ctx, candidate.EmailPatterns)...)

	if err := v.validate.Struct(candidate); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, ve := range validationErrors {
				result = multierror.Append(result, fmt.Errorf(msgValidationFail, ve.Namespace(), ve.Tag())) //nolint:err113
			}
		}
	}

	if result == nil {
		return []string{}
	}

	messages := make([]string, 0, len(result.Errors))
	for _, err := range result.Errors {
		messages = append(messages, err.Error())
	}

	return messages
}

// Sanitize normalizes candidate, validates it and sets Configured accordingly.
func (v *Validator) Sanitize(ctx context.Context, candidate Settings) Result {
	res := Result{Notices: []string{}}

	if candidate.CacheRefreshHours < 0 {
		candidate.CacheRefreshHours = 0
		res.Notices = append(res.Notices, MsgCacheRefresh)
	}

	if candidate.EmailPatterns == nil {
		candidate.EmailPatterns = []EmailPattern{}
	}

	res.Errors = v.Validate(ctx, candidate)
	candidate.Configured = len(res.Errors) == 0

	if candidate.Configured {
		res.Notices = append(res.Notices, MsgSaved)
	}

	res.Settings = candidate

	return res
}

// checkClient builds the authorization url for clientID and requests it.
// Google answers an unknown client with an error page.
func (v *Validator) checkClient(ctx context.Context, clientID string) []error {
	// an empty id is reported by the struct validation, the probe would fall back to the stored id
	if v.oauth == nil || clientID == "" {
		return nil
	}

	authURL, err := v.oauth.Begin(browserstate.NewMemoryJar(nil)).AuthorizationURL(ctx, clientID)
	if err != nil || authURL == "" {
		return []error{errors.New(MsgDiscovery)} //nolint:err113
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
	if err != nil {
		return []error{fmt.Errorf(MsgClientID, authURL)} //nolint:err113
	}

	resp, err := v.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("authorization url probe failed")

		return []error{fmt.Errorf(MsgClientID, authURL)} //nolint:err113
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK || strings.Contains(resp.Request.URL.Path, "error") {
		log.Debug().
			Int("status", resp.StatusCode).
			Str("final_url", resp.Request.URL.String()).
			Msg("authorization url probe rejected")

		return []error{fmt.Errorf(MsgClientID, authURL)} //nolint:err113
	}

	return nil
}

func (v *Validator) checkPatterns(ctx context.Context, patterns []EmailPattern) []error {
	var (
		errs  []error
		known map[string]bool
	)

	if v.roles != nil {
		keys, err := v.roles.RoleKeys(ctx)
		if err != nil {
			log.Error().Err(err).Msg("can't list roles for settings validation")
		} else {
			known = make(map[string]bool, len(keys))
			for _, k := range keys {
				known[k] = true
			}
		}
	}

	for i, p := range patterns {
		if _, err := regexp.Compile(p.Regex); err != nil {
			errs = append(errs, fmt.Errorf(msgInvalidRegex, i+1, err)) //nolint:err113
		}

		if known == nil {
			continue
		}

		for _, r := range p.Roles {
			if r != "" && !known[r] {
				errs = append(errs, fmt.Errorf(msgUnknownRole, i+1, r)) //nolint:err113
			}
		}
	}

	return errs
}
