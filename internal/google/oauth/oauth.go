// Package oauth runs the authorization code flow against Google.
//
// A process wide Client creates one Flow per login transaction. The Flow is
// bound to the browser state of that transaction and holds the access token
// in memory only.
package oauth

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/wslogin/google-auth/internal/browserstate"
	"github.com/wslogin/google-auth/internal/google/endpoints"
)

const (
	// tokenBytes is the entropy of state and nonce values, 128 bit.
	tokenBytes = 16

	stateCookieSuffix    = "_oauth_state"
	redirectCookieSuffix = "_redirect_to"
	callbackSuffix       = "_openid"
)

// Scopes requested from Google.
var Scopes = []string{oidc.ScopeOpenID, "email", "profile"} //nolint:gochecknoglobals

// EndpointSource resolves the discovery endpoints.
type EndpointSource interface {
	Get(ctx context.Context, opts ...endpoints.Option) (endpoints.Set, error)
}

// CredentialSource returns the stored client credentials.
type CredentialSource interface {
	Credentials() (clientID, clientSecret string)
}

// Config of a Client.
type Config struct {
	// BaseURL is the public site url, the redirect uri is derived from it.
	BaseURL string
	// CookiePrefix prefixes the cookie names and the callback marker.
	CookiePrefix string
	// HTTPClient is used for token and user info requests.
	HTTPClient *http.Client
	Endpoints  EndpointSource
	// Credentials is consulted when a call passes empty client credentials.
	Credentials CredentialSource
}

// Client is shared by all requests. It holds no per login state.
type Client struct {
	baseURL     string
	prefix      string
	httpClient  *http.Client
	endpoints   EndpointSource
	credentials CredentialSource
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		prefix:      cfg.CookiePrefix,
		httpClient:  cfg.HTTPClient,
		endpoints:   cfg.Endpoints,
		credentials: cfg.Credentials,
	}

	if c.httpClient == nil {
		c.httpClient = cleanhttp.DefaultPooledClient()
		c.httpClient.Timeout = 10 * time.Second //nolint:mnd
	}

	return c
}

// Prefix is the cookie and query parameter prefix.
func (c *Client) Prefix() string {
	return c.prefix
}

// CallbackMarker is the query key that identifies a provider callback.
func (c *Client) CallbackMarker() string {
	return c.prefix + callbackSuffix
}

// RedirectURI is the callback registered with Google.
func (c *Client) RedirectURI() string {
	return c.baseURL + "/?" + c.CallbackMarker()
}

// StateCookie is the name of the anti-forgery state cookie.
func (c *Client) StateCookie() string {
	return c.prefix + stateCookieSuffix
}

// RedirectCookie is the name of the cookie keeping the post login target.
func (c *Client) RedirectCookie() string {
	return c.prefix + redirectCookieSuffix
}

// Begin starts or resumes the login transaction of one browser.
func (c *Client) Begin(jar browserstate.Jar) *Flow {
	return &Flow{c: c, jar: jar}
}

// Flow is one login transaction. It must not be shared between requests.
type Flow struct {
	c     *Client
	jar   browserstate.Jar
	token *oauth2.Token
}

// State returns the anti-forgery token of the transaction.
// A new one is generated and written to the browser only if none is present.
func (f *Flow) State() (string, error) {
	if s := f.jar.Get(f.c.StateCookie()); s != "" {
		return s, nil
	}

	s, err := randomHex()
	if err != nil {
		return "", err
	}

	f.jar.Set(browserstate.New(f.c.StateCookie(), s, browserstate.TransactionTTL))

	return s, nil
}

// ValidateState compares received with the state stored in the browser.
// An empty value never validates.
func (f *Flow) ValidateState(received string) bool {
	stored := f.jar.Get(f.c.StateCookie())
	if stored == "" || received == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(received)) == 1
}

// ClearState removes the state cookie so the next login starts a new transaction.
func (f *Flow) ClearState() {
	f.jar.Set(browserstate.Clear(f.c.StateCookie()))
}

// AuthorizationURL returns the Google consent url for clientID.
// It returns "" and ErrDiscoveryUnavailable when the endpoints are unknown.
func (f *Flow) AuthorizationURL(ctx context.Context, clientID string) (string, error) {
	set, err := f.c.endpoints.Get(ctx)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	if clientID == "" {
		clientID, _ = f.c.stored()
	}

	state, err := f.State()
	if err != nil {
		return "", err
	}

	nonce, err := randomHex()
	if err != nil {
		return "", err
	}

	conf := f.c.oauth2Config(set, clientID, "")

	return conf.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

// FetchAuthToken exchanges code for an access token. The token is kept on the Flow.
func (f *Flow) FetchAuthToken(ctx context.Context, code, clientID, clientSecret string) (*oauth2.Token, error) {
	set, err := f.c.endpoints.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}

	storedID, storedSecret := f.c.stored()
	if clientID == "" {
		clientID = storedID
	}

	if clientSecret == "" {
		clientSecret = storedSecret
	}

	conf := f.c.oauth2Config(set, clientID, clientSecret)

	tok, err := conf.Exchange(context.WithValue(ctx, oauth2.HTTPClient, f.c.httpClient), code)
	if err != nil {
		log.Debug().Err(err).Str("endpoint", set.TokenEndpoint).Msg("token exchange failed")

		return nil, fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}

	f.token = tok

	return tok, nil
}

// FetchUserInfo requests the profile of the signed in user.
// A nil tok uses the token of the last FetchAuthToken call.
func (f *Flow) FetchUserInfo(ctx context.Context, tok *oauth2.Token) (UserInfo, error) {
	if tok == nil {
		tok = f.token
	}

	if tok == nil {
		return UserInfo{}, ErrMissingToken
	}

	set, err := f.c.endpoints.Get(ctx)
	if err != nil {
		return UserInfo{}, fmt.Errorf("%w: %w", ErrUserInfo, err)
	}

	oidcCtx := oidc.ClientContext(ctx, f.c.httpClient)
	provider := (&oidc.ProviderConfig{
		AuthURL:     set.AuthorizationEndpoint,
		TokenURL:    set.TokenEndpoint,
		UserInfoURL: set.UserinfoEndpoint,
	}).NewProvider(oidcCtx)

	raw, err := provider.UserInfo(oidcCtx, oauth2.StaticTokenSource(tok))
	if err != nil {
		log.Debug().Err(err).Str("endpoint", set.UserinfoEndpoint).Msg("user info request failed")

		return UserInfo{}, fmt.Errorf("%w: %w", ErrUserInfo, err)
	}

	var info UserInfo
	if err = raw.Claims(&info); err != nil {
		return UserInfo{}, fmt.Errorf("%w: %w", ErrUserInfo, err)
	}

	if info.Email == "" {
		return UserInfo{}, fmt.Errorf("%w: response has no email", ErrUserInfo)
	}

	return info, nil
}

func (c *Client) stored() (string, string) {
	if c.credentials == nil {
		return "", ""
	}

	return c.credentials.Credentials()
}

func (c *Client) oauth2Config(set endpoints.Set, clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   set.AuthorizationEndpoint,
			TokenURL:  set.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: c.RedirectURI(),
		Scopes:      Scopes,
	}
}

func randomHex() (string, error) {
	b, err := uuid.GenerateRandomBytes(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate random token: %w", err)
	}

	return hex.EncodeToString(b), nil
}
