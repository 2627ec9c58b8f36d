package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/wslogin/google-auth/internal/config"
	fiberlogger "github.com/wslogin/google-auth/internal/logger/adapter/fiber"
	"github.com/wslogin/google-auth/internal/web/handler"
	"github.com/wslogin/google-auth/internal/web/handler/admin/settings/google"
	"github.com/wslogin/google-auth/internal/web/handler/admin/users"
	"github.com/wslogin/google-auth/internal/web/handler/dashboard"
	"github.com/wslogin/google-auth/internal/web/handler/home"
	"github.com/wslogin/google-auth/internal/web/handler/login"
	"github.com/wslogin/google-auth/internal/web/handler/logout"
	"github.com/wslogin/google-auth/internal/web/handler/profile"
	"github.com/wslogin/google-auth/internal/web/middleware/auth"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	deps         *handler.Deps
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	s.alive.Store(true)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for a termination signal and shuts the web service down gracefully.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, deps *handler.Deps) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if deps == nil || deps.DB == nil || deps.Login == nil {
		panic("deps cannot be nil")
	}

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize:    8192,
			AppName:           cfg.Title,
			CaseSensitive:     true,
			Prefork:           false,
			Immutable:         true,
			Views:             views(cfg.DevMode),
			PassLocalsToViews: true,
		},
	)

	service := &Service{
		cfg:  cfg,
		App:  app,
		deps: deps,
	}

	service.routes(app)

	return service
}

// routes installs the middleware chain and every handler.
func (s *Service) routes(app *fiber.App) {
	app.Use(fiberlogger.New(fiberlogger.Config{Config: s.cfg.Log}))

	// serve embedded static files
	app.Use("/static",
		filesystem.New(
			filesystem.Config{
				Root: staticFS(),
			},
		),
	)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/checkalive", func(c *fiber.Ctx) error {
		if !s.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("OK")
	})

	// the Google callback lands on the site root and must run before the session check
	app.Use(GoogleCallback(s.deps.Login))

	app.Use(auth.New(auth.Config{
		LoginPath:   login.Path,
		LandingPath: dashboard.Path,
		Public:      append([]string{"/checkalive"}, auth.DefaultPublic...),
	}))

	for _, h := range []handler.Service{
		&home.Handler,
		&login.Handler,
		&logout.Handler,
		&dashboard.Handler,
		&profile.Handler,
		&google.Handler,
		&users.Handler,
	} {
		if err := h.Init(app, s.cfg, s.deps); err != nil {
			log.Fatal().Err(err).Msg("failed to init web handler")
		}
	}
}
