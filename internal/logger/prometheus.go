package logger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	logLines     *prometheus.CounterVec //nolint:gochecknoglobals
	logLinesOnce sync.Once              //nolint:gochecknoglobals
)

// LevelCounter is a zerolog hook exporting google_auth_log_lines_total{level}.
type LevelCounter struct{}

// Run implements zerolog.Hook.
func (LevelCounter) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level == zerolog.NoLevel || logLines == nil {
		return
	}

	logLines.WithLabelValues(level.String()).Inc()
}

// NewLevelCounter registers the log line counter for service. Init may run more
// than once per process; the collector is registered on the first call only.
func NewLevelCounter(service string) LevelCounter {
	logLinesOnce.Do(func() {
		logLines = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "google_auth",
				Name:        "log_lines_total",
				Help:        "Log lines written, by level.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			[]string{"level"},
		)
	})

	return LevelCounter{}
}
