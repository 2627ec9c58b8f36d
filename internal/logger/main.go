// Package logger configures the global zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelWriter splits log output by level.
// See WriteLevel for the routing.
type LevelWriter struct {
	io.Writer
	ErrorWriter io.Writer
	InfoWriter  io.Writer
	TraceWriter io.Writer
	WarnWriter  io.Writer
}

// WriteLevel routes p to the writer responsible for level l.
func (lw *LevelWriter) WriteLevel(l zerolog.Level, p []byte) (n int, err error) {
	var w io.Writer

	if l == zerolog.Disabled {
		return 0, nil
	}

	switch {
	case l == zerolog.TraceLevel:
		w = lw.TraceWriter
	case l == zerolog.WarnLevel:
		w = lw.WarnWriter
	case l > zerolog.WarnLevel: // error, fatal and panic
		w = lw.ErrorWriter
	default:
		w = lw.InfoWriter // debug and info
	}

	return w.Write(p) //nolint:wrapcheck
}

// Init the zerolog logger.
// Depending on the config it enables all, some or no logger at all.
func Init(cfg Log) error {
	var (
		logLevel, err = zerolog.ParseLevel(cfg.LogLevel)
		writers       []io.Writer
		stack         bool
	)

	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("loglevel %s is not supported", cfg.LogLevel))
	}

	if cfg.ServiceName == "" {
		return ErrServiceNameIsEmpty
	}

	if cfg.AppName == "" {
		return ErrAppNameIsEmpty
	}

	// stack traces of pkg/errors at trace level
	if logLevel == zerolog.TraceLevel {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack //nolint:reassign
		stack = true
	}

	zerolog.SetGlobalLevel(logLevel)
	zerolog.ErrorHandler = ErrorHandler //nolint:reassign

	lines := NewLevelCounter(cfg.ServiceName)

	if cfg.Console.Enabled {
		writers = append(writers, NewConsoleWriter(cfg))
	}

	if cfg.File.Enabled {
		if fw := newRollingInfoErrorFile(cfg); fw != nil {
			writers = append(writers, fw)
		}
	}

	mw := zerolog.MultiLevelWriter(writers...)
	ctx := zerolog.New(mw).Hook(lines).With().Timestamp().Str("app", cfg.AppName)

	switch {
	case cfg.ReportCaller && stack:
		log.Logger = ctx.Stack().Logger()
	case cfg.ReportCaller:
		log.Logger = ctx.Caller().Logger()
	default:
		log.Logger = ctx.Logger()
	}

	return nil
}

// Component returns a child of the global logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Verbose reports whether debug diagnostics are written.
func Verbose() bool {
	return zerolog.GlobalLevel() <= zerolog.DebugLevel
}

func rolling(dir string, f RollingFile) io.Writer {
	return &lumberjack.Logger{
		Filename:   path.Join(dir, f.Name),
		MaxSize:    f.MaxSize,
		MaxAge:     f.MaxAge,
		MaxBackups: f.MaxBackups,
		LocalTime:  false,
		Compress:   false,
	}
}

// newRollingInfoErrorFile uses LevelWriter and lumberjack to create file based log.
func newRollingInfoErrorFile(cfg Log) io.Writer {
	if err := os.MkdirAll(cfg.File.Path, 0o750); err != nil { //nolint: mnd
		log.Error().Err(err).Str("path", cfg.File.Path).Msg("can't create log directory")

		return nil
	}

	return &LevelWriter{
		ErrorWriter: rolling(cfg.File.Path, cfg.File.Error),
		InfoWriter:  rolling(cfg.File.Path, cfg.File.Info),
		TraceWriter: rolling(cfg.File.Path, cfg.File.Trace),
		WarnWriter:  rolling(cfg.File.Path, cfg.File.Warn),
	}
}

// NewConsoleWriter creates the console writer, human readable if UseConsoleWriter is set.
func NewConsoleWriter(cfg Log) io.Writer {
	if !cfg.Console.UseConsoleWriter {
		return &LevelWriter{
			ErrorWriter: os.Stderr,
			InfoWriter:  os.Stdout,
			TraceWriter: os.Stderr,
			WarnWriter:  os.Stderr,
		}
	}

	pretty := func(out io.Writer) io.Writer {
		return zerolog.ConsoleWriter{Out: out, NoColor: false, TimeFormat: zerolog.TimeFieldFormat}
	}

	return &LevelWriter{
		ErrorWriter: pretty(os.Stderr),
		InfoWriter:  pretty(os.Stdout),
		TraceWriter: pretty(os.Stderr),
		WarnWriter:  pretty(os.Stderr),
	}
}

// RollingAccessFile returns the lumberjack writer for the access log.
func RollingAccessFile(cfg *Log) io.Writer {
	if cfg.File.Path != "" {
		if err := os.MkdirAll(cfg.File.Path, 0o750); err != nil { //nolint: mnd
			log.Error().Err(err).Str("path", cfg.File.Path).Msg("can't create log directory")

			return nil
		}
	}

	return rolling(cfg.File.Path, cfg.File.Access)
}
