// Package webtest provides a fake Google and a wired service graph for web handler tests.
package webtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wslogin/google-auth/internal/browserstate"
	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/daemon"
	dbpkg "github.com/wslogin/google-auth/internal/db"
	"github.com/wslogin/google-auth/internal/db/models"
	"github.com/wslogin/google-auth/internal/google/settings"
	"github.com/wslogin/google-auth/internal/web/handler"
	"github.com/wslogin/google-auth/internal/web/session"
)

const (
	// BaseURL is the site url of the test configuration.
	BaseURL = "http://example.com"

	// ClientID is accepted by the fake consent screen.
	ClientID = "good-id"

	// ClientSecret is the secret of the test configuration.
	ClientSecret = "good-secret"
)

// Google fakes discovery, consent, token and user info endpoints.
type Google struct {
	Server *httptest.Server

	mu        sync.Mutex
	email     string
	picture   string
	tokenFail bool
	codes     []string
}

// NewGoogle starts a fake Google. It signs in jane@example.com by default.
func NewGoogle(t *testing.T) *Google {
	t.Helper()

	g := &Google{email: "jane@example.com", picture: "https://lh3.example/jane.png"}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		issuer := g.Server.URL

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/auth",
			"token_endpoint":         issuer + "/token",
			"userinfo_endpoint":      issuer + "/userinfo",
			"jwks_uri":               issuer + "/certs",
		})
	})
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("client_id") == ClientID {
			_, _ = w.Write([]byte("choose an account"))
			return
		}

		http.Redirect(w, r, "/signin/oauth/error?authError=invalid_client", http.StatusFound)
	})
	mux.HandleFunc("/signin/oauth/error", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		fail := g.tokenFail
		g.codes = append(g.codes, r.FormValue("code"))
		g.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")

		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))

			return
		}

		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		g.mu.Lock()
		email, picture := g.email, g.picture
		g.mu.Unlock()

		given, _, _ := strings.Cut(email, "@")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":            "1",
			"email":          email,
			"email_verified": true,
			"given_name":     given,
			"family_name":    "Doe",
			"name":           given + " Doe",
			"picture":        picture,
		})
	})

	g.Server = httptest.NewServer(mux)
	t.Cleanup(g.Server.Close)

	return g
}

// SetEmail changes the signed in Google account.
func (g *Google) SetEmail(email string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.email = email
}

// FailToken makes the token endpoint reject every code.
func (g *Google) FailToken(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tokenFail = fail
}

// Codes returns the authorization codes sent to the token endpoint.
func (g *Google) Codes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]string(nil), g.codes...)
}

// NewDB opens a migrated in-memory database with the default roles.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, dbpkg.Migrate(db))
	require.NoError(t, dbpkg.SeedRoles(context.Background(), db))

	return db
}

// Config returns a configuration pointing at g.
func Config(g *Google) *config.Config {
	return &config.Config{
		Title: "Test Site",
		Webserver: config.Webserver{
			Port:    8080,
			URL:     BaseURL,
			Session: config.Session{ExpiryTime: time.Hour},
		},
		DB: config.DB{GormEngine: config.EngineSQLite},
		Google: config.Google{
			ClientID:          ClientID,
			ClientSecret:      ClientSecret,
			CacheRefreshHours: 24,
			CookiePrefix:      config.DefaultCookiePrefix,
			Issuer:            g.Server.URL,
			HTTPTimeout:       5 * time.Second,
			EmailPatterns: []config.EmailPattern{
				{Regex: `.*@example\.com`, Roles: []string{models.RoleEditor}},
			},
		},
	}
}

// NewDeps wires the services of cfg on db with a fresh in-memory session store.
func NewDeps(t *testing.T, cfg *config.Config, db *gorm.DB) *handler.Deps {
	t.Helper()

	session.Init(nil)

	deps, err := daemon.Wire(context.Background(), cfg, db)
	require.NoError(t, err)

	return deps
}

// Configure stores the bootstrap settings as validated, which turns the Google redirect on.
func Configure(t *testing.T, deps *handler.Deps, patterns ...settings.EmailPattern) {
	t.Helper()

	st := deps.Settings.Current()
	st.Configured = true

	if len(patterns) > 0 {
		st.EmailPatterns = patterns
	}

	require.NoError(t, deps.Settings.Save(context.Background(), st))
}

// CreateUser stores an active local account with roles.
func CreateUser(t *testing.T, deps *handler.Deps, username, password string, roles ...string) *models.User {
	t.Helper()

	ctx := context.Background()

	hash, err := models.HashPassword(password)
	require.NoError(t, err)

	u := &models.User{
		Username:   username,
		Email:      username + "@local.test",
		Password:   hash,
		Active:     true,
		AuthSource: models.AuthSourceLocal,
	}
	require.NoError(t, deps.Accounts.Create(ctx, u))

	unknown, err := deps.Accounts.ReplaceRoles(ctx, u.ID, roles)
	require.NoError(t, err)
	require.Empty(t, unknown)

	loaded, err := deps.Accounts.FindByID(ctx, u.ID)
	require.NoError(t, err)

	return loaded
}

// SessionCookie starts a session for u and returns the cookie header value.
func SessionCookie(t *testing.T, deps *handler.Deps, u *models.User) string {
	t.Helper()

	jar := browserstate.NewMemoryJar(nil)
	require.NoError(t, deps.Sessions.Start(context.Background(), jar, u))

	return session.CookieName + "=" + jar.Get(session.CookieName)
}
