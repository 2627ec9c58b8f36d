package oauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/wslogin/google-auth/internal/browserstate"
	"github.com/wslogin/google-auth/internal/google/endpoints"
	"github.com/wslogin/google-auth/internal/google/oauth"
)

var hex128 = regexp.MustCompile(`^[0-9a-f]{32}$`)

type staticEndpoints struct {
	set endpoints.Set
	err error
}

func (s staticEndpoints) Get(context.Context, ...endpoints.Option) (endpoints.Set, error) {
	return s.set, s.err
}

type creds struct{ id, secret string }

func (c creds) Credentials() (string, string) { return c.id, c.secret }

type fakeGoogle struct {
	srv            *httptest.Server
	tokenHits      atomic.Int32
	tokenStatus    int
	userinfoStatus int
	userinfo       map[string]any
	lastForm       url.Values
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()

	g := &fakeGoogle{
		tokenStatus:    http.StatusOK,
		userinfoStatus: http.StatusOK,
		userinfo: map[string]any{
			"sub":         "1",
			"email":       "jane@example.com",
			"given_name":  "Jane",
			"family_name": "Doe",
			"name":        "Jane Doe",
			"picture":     "https://lh3.example/jane.png",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		g.tokenHits.Add(1)

		_ = r.ParseForm()
		g.lastForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")

		if g.tokenStatus != http.StatusOK {
			w.WriteHeader(g.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))

			return
		}

		_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3599}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if g.userinfoStatus != http.StatusOK {
			w.WriteHeader(g.userinfoStatus)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(g.userinfo)
	})

	g.srv = httptest.NewServer(mux)
	t.Cleanup(g.srv.Close)

	return g
}

func (g *fakeGoogle) endpoints() staticEndpoints {
	return staticEndpoints{set: endpoints.Set{
		AuthorizationEndpoint: g.srv.URL + "/auth",
		TokenEndpoint:         g.srv.URL + "/token",
		UserinfoEndpoint:      g.srv.URL + "/userinfo",
	}}
}

func newClient(g *fakeGoogle, src oauth.EndpointSource) *oauth.Client {
	return oauth.NewClient(oauth.Config{
		BaseURL:      "https://intranet.example/",
		CookiePrefix: "google_auth",
		HTTPClient:   g.srv.Client(),
		Endpoints:    src,
		Credentials:  creds{id: "stored-id", secret: "stored-secret"},
	})
}

func TestNames(t *testing.T) {
	c := oauth.NewClient(oauth.Config{BaseURL: "https://intranet.example/", CookiePrefix: "google_auth"})

	assert.Equal(t, "https://intranet.example/?google_auth_openid", c.RedirectURI())
	assert.Equal(t, "google_auth_openid", c.CallbackMarker())
	assert.Equal(t, "google_auth_oauth_state", c.StateCookie())
	assert.Equal(t, "google_auth_redirect_to", c.RedirectCookie())
}

func TestAuthorizationURL(t *testing.T) {
	ctx := context.Background()
	g := newFakeGoogle(t)
	c := newClient(g, g.endpoints())

	jar := browserstate.NewMemoryJar(nil)
	flow := c.Begin(jar)

	raw, err := flow.AuthorizationURL(ctx, "client-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, g.srv.URL+"/auth", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "https://intranet.example/?google_auth_openid", q.Get("redirect_uri"))
	assert.Equal(t, "select_account", q.Get("prompt"))
	assert.Regexp(t, hex128, q.Get("nonce"))
	assert.Regexp(t, hex128, q.Get("state"))

	written := jar.Written()
	require.Len(t, written, 1)
	assert.Equal(t, "google_auth_oauth_state", written[0].Name)
	assert.Equal(t, q.Get("state"), written[0].Value)
	assert.Equal(t, "/", written[0].Path)
	assert.True(t, written[0].HTTPOnly)
	assert.Equal(t, http.SameSiteLaxMode, written[0].SameSite)
	assert.Equal(t, browserstate.TransactionTTL, written[0].TTL)

	// a second url in the same browser reuses the state but not the nonce
	raw2, err := c.Begin(jar).AuthorizationURL(ctx, "")
	require.NoError(t, err)

	u2, err := url.Parse(raw2)
	require.NoError(t, err)
	assert.Equal(t, q.Get("state"), u2.Query().Get("state"))
	assert.NotEqual(t, q.Get("nonce"), u2.Query().Get("nonce"))
	assert.Equal(t, "stored-id", u2.Query().Get("client_id"))
	assert.Len(t, jar.Written(), 1)
}

func TestAuthorizationURLDiscoveryFailure(t *testing.T) {
	g := newFakeGoogle(t)
	c := newClient(g, staticEndpoints{err: endpoints.ErrDiscoveryUnavailable})

	jar := browserstate.NewMemoryJar(nil)

	raw, err := c.Begin(jar).AuthorizationURL(context.Background(), "client-1")
	require.ErrorIs(t, err, oauth.ErrDiscoveryUnavailable)
	assert.Empty(t, raw)
	assert.Empty(t, jar.Written())
}

func TestValidateState(t *testing.T) {
	tests := []struct {
		name     string
		cookie   string
		received string
		want     bool
	}{
		{name: "equal", cookie: "abc", received: "abc", want: true},
		{name: "different", cookie: "abc", received: "abd", want: false},
		{name: "no cookie", cookie: "", received: "abc", want: false},
		{name: "empty received", cookie: "abc", received: "", want: false},
		{name: "both empty", cookie: "", received: "", want: false},
	}

	c := oauth.NewClient(oauth.Config{CookiePrefix: "google_auth"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookies := map[string]string{}
			if tt.cookie != "" {
				cookies["google_auth_oauth_state"] = tt.cookie
			}

			assert.Equal(t, tt.want, c.Begin(browserstate.NewMemoryJar(cookies)).ValidateState(tt.received))
		})
	}
}

func TestClearState(t *testing.T) {
	jar := browserstate.NewMemoryJar(map[string]string{"google_auth_oauth_state": "abc"})
	flow := oauth.NewClient(oauth.Config{CookiePrefix: "google_auth"}).Begin(jar)

	flow.ClearState()

	assert.False(t, flow.ValidateState("abc"))
	assert.Empty(t, jar.Get("google_auth_oauth_state"))
}

func TestFetchAuthToken(t *testing.T) {
	ctx := context.Background()
	g := newFakeGoogle(t)
	c := newClient(g, g.endpoints())

	tok, err := c.Begin(browserstate.NewMemoryJar(nil)).FetchAuthToken(ctx, "the-code", "", "")
	require.NoError(t, err)
	assert.Equal(t, "at-123", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)

	assert.Equal(t, "authorization_code", g.lastForm.Get("grant_type"))
	assert.Equal(t, "the-code", g.lastForm.Get("code"))
	assert.Equal(t, "stored-id", g.lastForm.Get("client_id"))
	assert.Equal(t, "stored-secret", g.lastForm.Get("client_secret"))
	assert.Equal(t, "https://intranet.example/?google_auth_openid", g.lastForm.Get("redirect_uri"))

	_, err = c.Begin(browserstate.NewMemoryJar(nil)).FetchAuthToken(ctx, "the-code", "explicit-id", "explicit-secret")
	require.NoError(t, err)
	assert.Equal(t, "explicit-id", g.lastForm.Get("client_id"))
	assert.Equal(t, "explicit-secret", g.lastForm.Get("client_secret"))
}

func TestFetchAuthTokenFailure(t *testing.T) {
	g := newFakeGoogle(t)
	g.tokenStatus = http.StatusBadRequest
	c := newClient(g, g.endpoints())

	tok, err := c.Begin(browserstate.NewMemoryJar(nil)).FetchAuthToken(context.Background(), "bad", "", "")
	require.ErrorIs(t, err, oauth.ErrTokenExchange)
	assert.Nil(t, tok)
	assert.Equal(t, int32(1), g.tokenHits.Load(), "no retry")
}

func TestFetchUserInfo(t *testing.T) {
	ctx := context.Background()
	g := newFakeGoogle(t)
	c := newClient(g, g.endpoints())

	flow := c.Begin(browserstate.NewMemoryJar(nil))

	_, err := flow.FetchUserInfo(ctx, nil)
	require.ErrorIs(t, err, oauth.ErrMissingToken)

	_, err = flow.FetchAuthToken(ctx, "code", "", "")
	require.NoError(t, err)

	info, err := flow.FetchUserInfo(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, oauth.UserInfo{
		Email:      "jane@example.com",
		GivenName:  "Jane",
		FamilyName: "Doe",
		Name:       "Jane Doe",
		Picture:    "https://lh3.example/jane.png",
	}, info)

	info, err = c.Begin(browserstate.NewMemoryJar(nil)).FetchUserInfo(ctx, &oauth2.Token{AccessToken: "at-123"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", info.Email)
}

func TestFetchUserInfoLooseClaimTypes(t *testing.T) {
	g := newFakeGoogle(t)
	g.userinfo["email_verified"] = "true"
	c := newClient(g, g.endpoints())

	info, err := c.Begin(browserstate.NewMemoryJar(nil)).
		FetchUserInfo(context.Background(), &oauth2.Token{AccessToken: "at-123"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", info.Email)
}

func TestFetchUserInfoFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup func(g *fakeGoogle)
		token string
	}{
		{
			name:  "rejected token",
			setup: func(*fakeGoogle) {},
			token: "wrong",
		},
		{
			name:  "server error",
			setup: func(g *fakeGoogle) { g.userinfoStatus = http.StatusInternalServerError },
			token: "at-123",
		},
		{
			name:  "no email",
			setup: func(g *fakeGoogle) { delete(g.userinfo, "email") },
			token: "at-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGoogle(t)
			tt.setup(g)
			c := newClient(g, g.endpoints())

			_, err := c.Begin(browserstate.NewMemoryJar(nil)).
				FetchUserInfo(context.Background(), &oauth2.Token{AccessToken: tt.token})
			require.ErrorIs(t, err, oauth.ErrUserInfo)
		})
	}
}
