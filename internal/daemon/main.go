// Package daemon wires the database, the Google sign-in services and the web service.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wslogin/google-auth/internal/config"
	dbpkg "github.com/wslogin/google-auth/internal/db"
	"github.com/wslogin/google-auth/internal/db/dsn"
	"github.com/wslogin/google-auth/internal/google/endpoints"
	"github.com/wslogin/google-auth/internal/google/oauth"
	"github.com/wslogin/google-auth/internal/google/settings"
	"github.com/wslogin/google-auth/internal/identity"
	"github.com/wslogin/google-auth/internal/login"
	"github.com/wslogin/google-auth/internal/web"
	"github.com/wslogin/google-auth/internal/web/handler"
	"github.com/wslogin/google-auth/internal/web/session"
)

const (
	sessionTable = "sessions"
	startTimeout = 30 * time.Second
)

// ErrNilConfig is returned by New without a config.
var ErrNilConfig = errors.New("config is nil")

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start serves http until a termination signal arrives.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// New opens and migrates the database and wires every service.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	db, err := dbpkg.Open(cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if err = dbpkg.Migrate(db); err != nil {
		return nil, err //nolint:wrapcheck
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	if err = seed(ctx, cfg, db); err != nil {
		return nil, err
	}

	session.Init(sessionStorage(cfg))

	deps, err := Wire(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("redirect_uri", deps.OAuth.RedirectURI()).
		Bool("google_configured", deps.Settings.Current().Configured).
		Msg("google sign-in ready")

	return &Daemon{
		cfg:        cfg,
		webService: web.New(cfg, deps),
	}, nil
}

// Wire creates the Google sign-in services on top of db.
func Wire(ctx context.Context, cfg *config.Config, db *gorm.DB) (*handler.Deps, error) {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = cfg.Google.HTTPTimeout

	settingsService := settings.NewService(db, settings.FromConfig(cfg.Google))

	cache := endpoints.New(endpoints.Config{
		Issuer:       cfg.Google.Issuer,
		RefreshAfter: settingsService.Current().RefreshAfter(),
		HTTPClient:   httpClient,
		Store:        &endpoints.GormStore{DB: db},
	})

	// a saved cache_refresh_hours applies to the next lookup
	settingsService.OnChange(func(s settings.Settings) {
		cache.SetRefreshAfter(s.RefreshAfter())
	})

	if _, err := settingsService.Load(ctx); err != nil {
		return nil, err //nolint:wrapcheck
	}

	oauthClient := oauth.NewClient(oauth.Config{
		BaseURL:      cfg.Webserver.URL,
		CookiePrefix: cfg.Google.CookiePrefix,
		HTTPClient:   httpClient,
		Endpoints:    cache,
		Credentials:  settingsService,
	})

	accounts := identity.NewGormStore(db)
	mapper := identity.NewMapper(accounts)
	sessions := session.Starter{Expiry: cfg.Webserver.Session.ExpiryTime}

	orchestrator := login.New(login.Config{
		BaseURL:  cfg.Webserver.URL,
		OAuth:    oauthClient,
		Settings: settingsService,
		Mapper:   mapper,
		Sessions: sessions,
	})

	return &handler.Deps{
		DB:        db,
		Login:     orchestrator,
		OAuth:     oauthClient,
		Settings:  settingsService,
		Validator: settings.NewValidator(oauthClient, nil, accounts),
		Endpoints: cache,
		Accounts:  accounts,
		Mapper:    mapper,
		Sessions:  sessions,
	}, nil
}

// Clean removes the stored Google sign-in settings and the cached discovery endpoints.
func Clean(ctx context.Context, cfg *config.Config) error {
	db, err := dbpkg.Open(cfg)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if err = dbpkg.Migrate(db); err != nil {
		return err //nolint:wrapcheck
	}

	if err = settings.NewService(db, settings.Defaults()).Clear(ctx); err != nil {
		return err //nolint:wrapcheck
	}

	if err = (&endpoints.GormStore{DB: db}).Clear(ctx); err != nil {
		return fmt.Errorf("clear endpoint cache: %w", err)
	}

	log.Info().Msg("google sign-in settings and endpoint cache removed")

	return nil
}

// sessionStorage keeps sessions in the account database. Sqlite uses fiber's memory storage.
func sessionStorage(cfg *config.Config) fiber.Storage {
	switch cfg.DB.GormEngine {
	case config.EngineMySQL:
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.SessionURI(cfg),
			Table:         sessionTable,
		})
	case config.EnginePostgres:
		return sessionpostgres.New(sessionpostgres.Config{
			ConnectionURI: dsn.SessionURI(cfg),
			Table:         sessionTable,
		})
	default:
		log.Warn().Msg("sqlite database: sessions are kept in memory and lost on restart")

		return nil
	}
}
