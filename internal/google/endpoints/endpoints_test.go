package endpoints_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wslogin/google-auth/internal/db/models"
	"github.com/wslogin/google-auth/internal/google/endpoints"
)

type discovery struct {
	srv    *httptest.Server
	hits   atomic.Int32
	status atomic.Int32
	mu     sync.Mutex
	body   func(issuer string) string
}

func newDiscovery(t *testing.T) *discovery {
	t.Helper()

	d := &discovery{}
	d.status.Store(http.StatusOK)
	d.body = validDocument

	d.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}

		d.hits.Add(1)

		d.mu.Lock()
		body := d.body(d.srv.URL)
		d.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(d.status.Load()))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(d.srv.Close)

	return d
}

func (d *discovery) setBody(f func(string) string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.body = f
}

func validDocument(issuer string) string {
	out, _ := json.Marshal(map[string]string{
		"issuer":                 issuer,
		"authorization_endpoint": issuer + "/o/oauth2/v2/auth",
		"token_endpoint":         issuer + "/token",
		"userinfo_endpoint":      issuer + "/v1/userinfo",
		"jwks_uri":               issuer + "/certs",
	})

	return string(out)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newCache(d *discovery, store endpoints.Store, clk *clock) *endpoints.Cache {
	return endpoints.New(endpoints.Config{
		Issuer:       d.srv.URL,
		RefreshAfter: 24 * time.Hour,
		HTTPClient:   d.srv.Client(),
		Store:        store,
		Now:          clk.Now,
	})
}

func TestGetFetchesAndCaches(t *testing.T) {
	ctx := context.Background()
	d := newDiscovery(t)
	clk := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := &endpoints.MemoryStore{}
	cache := newCache(d, store, clk)

	set, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.srv.URL+"/o/oauth2/v2/auth", set.AuthorizationEndpoint)
	assert.Equal(t, d.srv.URL+"/token", set.TokenEndpoint)
	assert.Equal(t, d.srv.URL+"/v1/userinfo", set.UserinfoEndpoint)
	assert.Equal(t, clk.Now(), set.LastUpdated)

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, set, *persisted)

	clk.Advance(23 * time.Hour)

	again, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, set, again)
	assert.Equal(t, int32(1), d.hits.Load(), "fresh cache must not touch the network")

	clk.Advance(time.Hour)

	refreshed, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), d.hits.Load())
	assert.Equal(t, clk.Now(), refreshed.LastUpdated)
}

func TestGetWithRefreshAfter(t *testing.T) {
	ctx := context.Background()
	d := newDiscovery(t)
	clk := &clock{now: time.Now()}
	cache := newCache(d, &endpoints.MemoryStore{}, clk)

	_, err := cache.Get(ctx)
	require.NoError(t, err)

	clk.Advance(10 * time.Minute)

	_, err = cache.Get(ctx, endpoints.WithRefreshAfter(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int32(1), d.hits.Load())

	_, err = cache.Get(ctx, endpoints.WithRefreshAfter(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int32(2), d.hits.Load())

	_, err = cache.Get(ctx, endpoints.WithRefreshAfter(0))
	require.NoError(t, err)
	assert.Equal(t, int32(3), d.hits.Load(), "zero threshold always fetches")
}

func TestGetLoadsPersistedSet(t *testing.T) {
	ctx := context.Background()
	d := newDiscovery(t)
	clk := &clock{now: time.Now()}

	store := &endpoints.MemoryStore{}
	require.NoError(t, store.Save(ctx, endpoints.Set{
		AuthorizationEndpoint: "https://persisted/auth",
		TokenEndpoint:         "https://persisted/token",
		UserinfoEndpoint:      "https://persisted/userinfo",
		LastUpdated:           clk.Now().Add(-time.Hour),
	}))

	set, err := newCache(d, store, clk).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://persisted/auth", set.AuthorizationEndpoint)
	assert.Zero(t, d.hits.Load())
}

func TestGetFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   func(string) string
	}{
		{
			name:   "non 200",
			status: http.StatusInternalServerError,
			body:   validDocument,
		},
		{
			name:   "unparseable body",
			status: http.StatusOK,
			body:   func(string) string { return "not json" },
		},
		{
			name:   "missing userinfo endpoint",
			status: http.StatusOK,
			body: func(issuer string) string {
				return `{"issuer":"` + issuer + `","authorization_endpoint":"a","token_endpoint":"t"}`
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d := newDiscovery(t)
			d.status.Store(int32(tt.status))
			d.setBody(tt.body)

			store := &endpoints.MemoryStore{}
			clk := &clock{now: time.Now()}

			set, err := newCache(d, store, clk).Get(ctx)
			require.ErrorIs(t, err, endpoints.ErrDiscoveryUnavailable)
			assert.Equal(t, endpoints.Set{}, set)

			_, err = store.Load(ctx)
			require.ErrorIs(t, err, endpoints.ErrNotCached, "failed fetch must not persist")
		})
	}
}

func TestFailedRefreshKeepsValidCache(t *testing.T) {
	ctx := context.Background()
	d := newDiscovery(t)
	clk := &clock{now: time.Now()}
	store := &endpoints.MemoryStore{}
	cache := newCache(d, store, clk)

	good, err := cache.Get(ctx)
	require.NoError(t, err)

	d.status.Store(http.StatusBadGateway)
	clk.Advance(48 * time.Hour)

	_, err = cache.Get(ctx)
	require.ErrorIs(t, err, endpoints.ErrDiscoveryUnavailable)

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, good, *persisted)

	d.status.Store(http.StatusOK)

	_, err = cache.Get(ctx)
	require.NoError(t, err)
}

func TestConcurrentGet(t *testing.T) {
	ctx := context.Background()
	d := newDiscovery(t)
	cache := newCache(d, &endpoints.MemoryStore{}, &clock{now: time.Now()})

	var wg sync.WaitGroup

	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			set, err := cache.Get(ctx)
			assert.NoError(t, err)
			assert.True(t, set.Valid())
		}()
	}

	wg.Wait()
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	d := newDiscovery(t)
	store := &endpoints.MemoryStore{}
	cache := newCache(d, store, &clock{now: time.Now()})

	_, err := cache.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Clear(ctx))

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, endpoints.ErrNotCached)

	_, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), d.hits.Load())
}

func TestGormStore(t *testing.T) {
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Setting{}))

	store := &endpoints.GormStore{DB: db}

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, endpoints.ErrNotCached)

	in := endpoints.Set{
		AuthorizationEndpoint: "a",
		TokenEndpoint:         "t",
		UserinfoEndpoint:      "u",
		LastUpdated:           time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, in))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in.AuthorizationEndpoint, out.AuthorizationEndpoint)
	assert.True(t, in.LastUpdated.Equal(out.LastUpdated))

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx), "clearing twice is fine")
}
