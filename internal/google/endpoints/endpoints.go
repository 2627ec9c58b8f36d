// Package endpoints caches the endpoint URLs of Google's OpenID Connect discovery document.
package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// DefaultIssuer is Google's issuer. The discovery document lives below it.
const DefaultIssuer = "https://accounts.google.com"

// ErrDiscoveryUnavailable is returned when the discovery document could not be
// fetched, parsed or lacks one of the required endpoints.
var ErrDiscoveryUnavailable = errors.New("discovery document unavailable")

var refreshes = promauto.NewCounterVec( //nolint:gochecknoglobals
	prometheus.CounterOpts{
		Name: "google_auth_discovery_refresh_total",
		Help: "Number of discovery document fetches, by result.",
	},
	[]string{"result"},
)

// Set holds the three endpoints of one discovery document fetch.
// It is replaced wholesale, never mutated.
type Set struct {
	AuthorizationEndpoint string    `json:"authorization_endpoint"`
	TokenEndpoint         string    `json:"token_endpoint"`
	UserinfoEndpoint      string    `json:"userinfo_endpoint"`
	LastUpdated           time.Time `json:"last_updated"`
}

// Valid reports whether all three endpoints are present.
func (s Set) Valid() bool {
	return s.AuthorizationEndpoint != "" && s.TokenEndpoint != "" && s.UserinfoEndpoint != ""
}

// Config of a Cache.
type Config struct {
	// Issuer defaults to DefaultIssuer.
	Issuer string
	// RefreshAfter is the default age after which the set is fetched again.
	RefreshAfter time.Duration
	// HTTPClient defaults to a pooled cleanhttp client with a 10s timeout.
	HTTPClient *http.Client
	// Store persists the set between restarts. Defaults to a MemoryStore.
	Store Store
	// Now defaults to time.Now.
	Now func() time.Time
}

// Cache returns the discovery endpoints, fetching them lazily when the
// cached set is missing or older than the refresh threshold.
// It is safe for concurrent use; racing refreshes are last writer wins.
type Cache struct {
	issuer       string
	client       *http.Client
	store        Store
	now          func() time.Time
	refreshAfter atomic.Int64
	current      atomic.Pointer[Set]
}

// New creates a Cache.
func New(cfg Config) *Cache {
	c := &Cache{
		issuer: cfg.Issuer,
		client: cfg.HTTPClient,
		store:  cfg.Store,
		now:    cfg.Now,
	}

	if c.issuer == "" {
		c.issuer = DefaultIssuer
	}

	if c.client == nil {
		c.client = cleanhttp.DefaultPooledClient()
		c.client.Timeout = 10 * time.Second //nolint:mnd
	}

	if c.store == nil {
		c.store = &MemoryStore{}
	}

	if c.now == nil {
		c.now = time.Now
	}

	c.refreshAfter.Store(int64(cfg.RefreshAfter))

	return c
}

type options struct {
	refreshAfter *time.Duration
}

// Option modifies a single Get call.
type Option func(*options)

// WithRefreshAfter overrides the refresh threshold for one call.
// Zero forces a fetch.
func WithRefreshAfter(d time.Duration) Option {
	return func(o *options) {
		o.refreshAfter = &d
	}
}

// SetRefreshAfter changes the default refresh threshold.
func (c *Cache) SetRefreshAfter(d time.Duration) {
	c.refreshAfter.Store(int64(d))
}

// RefreshAfter returns the default refresh threshold.
func (c *Cache) RefreshAfter() time.Duration {
	return time.Duration(c.refreshAfter.Load())
}

// Get returns a valid endpoint set.
// A cached set younger than the threshold is returned without network access.
func (c *Cache) Get(ctx context.Context, opts ...Option) (Set, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	threshold := c.RefreshAfter()
	if o.refreshAfter != nil {
		threshold = *o.refreshAfter
	}

	if cached := c.cached(ctx); cached != nil && c.now().Sub(cached.LastUpdated) < threshold {
		return *cached, nil
	}

	set, err := c.fetch(ctx)
	if err != nil {
		refreshes.WithLabelValues("error").Inc()
		log.Debug().Err(err).Str("issuer", c.issuer).Msg("discovery document fetch failed")

		return Set{}, err
	}

	refreshes.WithLabelValues("ok").Inc()

	if err = c.store.Save(ctx, set); err != nil {
		log.Error().Err(err).Msg("can't persist discovery endpoints")
	}

	c.current.Store(&set)

	return set, nil
}

// Clear drops the in-memory and the persisted set.
func (c *Cache) Clear(ctx context.Context) error {
	c.current.Store(nil)

	return c.store.Clear(ctx)
}

func (c *Cache) cached(ctx context.Context) *Set {
	if s := c.current.Load(); s != nil {
		return s
	}

	s, err := c.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotCached) {
			log.Warn().Err(err).Msg("can't load persisted discovery endpoints")
		}

		return nil
	}

	if !s.Valid() {
		return nil
	}

	c.current.CompareAndSwap(nil, s)

	return s
}

func (c *Cache) fetch(ctx context.Context) (Set, error) {
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, c.client), c.issuer)
	if err != nil {
		return Set{}, fmt.Errorf("%w: %w", ErrDiscoveryUnavailable, err)
	}

	var doc Set
	if err = provider.Claims(&doc); err != nil {
		return Set{}, fmt.Errorf("%w: %w", ErrDiscoveryUnavailable, err)
	}

	if !doc.Valid() {
		return Set{}, fmt.Errorf("%w: missing one of authorization_endpoint, token_endpoint, userinfo_endpoint",
			ErrDiscoveryUnavailable)
	}

	doc.LastUpdated = c.now()

	return doc, nil
}
