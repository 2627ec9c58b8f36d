// Package fiber provides a zerolog access log middleware for fiber.
package fiber

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/wslogin/google-auth/internal/logger"
)

// redacted is written instead of the value of a sensitive query parameter.
const redacted = "REDACTED"

// Config implements fiber middleware struct.
type Config struct {
	// Next defines a function to skip this middleware when returned true.
	//
	// Optional. Default: nil
	Next func(c *fiber.Ctx) bool

	// Config of the logger.
	Config logger.Log

	// CacheControlError max-age caching on chain errors.
	CacheControlError string

	// SensitiveQueryKeys are replaced by REDACTED in the logged URI.
	// OAuth callbacks carry the authorization code and the anti-forgery state.
	SensitiveQueryKeys []string
}

// ConfigDefault is the default config for fiber.
var ConfigDefault = Config{
	Next:               nil,
	CacheControlError:  "max-age=0",
	SensitiveQueryKeys: []string{"code", "state", "password"},
}

func configDefault(config ...Config) Config {
	if len(config) < 1 {
		return ConfigDefault
	}

	cfg := config[0]

	if cfg.CacheControlError == "" {
		cfg.CacheControlError = ConfigDefault.CacheControlError
	}

	if cfg.SensitiveQueryKeys == nil {
		cfg.SensitiveQueryKeys = ConfigDefault.SensitiveQueryKeys
	}

	return cfg
}

// New creates a new fiber access logging middleware using zerolog.
func New(config ...Config) fiber.Handler {
	var (
		writers    []io.Writer
		cfg        = configDefault(config...)
		once       sync.Once
		errHandler fiber.ErrorHandler
	)

	if cfg.Config.File.Enabled {
		if w := logger.RollingAccessFile(&cfg.Config); w != nil {
			writers = append(writers, w)
		}
	}

	// Console.Enabled is required in addition to EnableAccessLogToConsole.
	if cfg.Config.Console.Enabled && cfg.Config.EnableAccessLogToConsole {
		if cfg.Config.Console.UseConsoleWriter {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:          os.Stdout,
				NoColor:      false,
				TimeFormat:   zerolog.TimeFieldFormat,
				PartsExclude: []string{"level"},
			})
		} else {
			writers = append(writers, os.Stdout)
		}
	}

	accessLogger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger().
		Level(zerolog.NoLevel)

	return func(ctx *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(ctx) {
			return ctx.Next()
		}

		once.Do(func() {
			errHandler = ctx.App().ErrorHandler
		})

		start := time.Now()

		chainErr := ctx.Next()
		if chainErr != nil {
			if errH := errHandler(ctx, chainErr); errH != nil {
				_ = ctx.SendStatus(fiber.StatusInternalServerError) //nolint:errcheck // ok here
				ctx.Response().Header.Set(fiber.HeaderCacheControl, cfg.CacheControlError)
			}
		}

		elapsed := time.Since(start).Seconds()
		ctx.Response().Header.Set("X-Performance", fmt.Sprintf("%f", elapsed))

		// fasthttp normalizes the path, the log wants the raw query.
		uri := ctx.Path()
		if raw := string(ctx.Request().URI().QueryString()); raw != "" {
			uri += "?" + redactQuery(raw, cfg.SensitiveQueryKeys)
		}

		event := accessLogger.Log().Str("IP", ctx.IP()).
			Int("status", ctx.Response().StatusCode()).
			Float64("X-Performance", elapsed).
			Str("URI", uri).
			Str("method", ctx.Method()).
			Bytes("host", ctx.Request().Host()).
			Str(fiber.HeaderXForwardedFor, ctx.Get(fiber.HeaderXForwardedFor)).
			Str(fiber.HeaderUserAgent, ctx.Get(fiber.HeaderUserAgent)).
			Str(fiber.HeaderReferer, ctx.Get(fiber.HeaderReferer))

		if chainErr != nil {
			event.Err(chainErr)
		}

		event.Send()

		return nil
	}
}

// redactQuery masks the values of keys in a raw query string.
// Unparseable queries are dropped entirely.
func redactQuery(raw string, keys []string) string {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return redacted
	}

	changed := false

	for _, k := range keys {
		if _, ok := values[k]; ok {
			values.Set(k, redacted)
			changed = true
		}
	}

	if !changed {
		return raw
	}

	return values.Encode()
}
