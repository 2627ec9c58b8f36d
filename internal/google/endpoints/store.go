package endpoints

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"github.com/wslogin/google-auth/internal/db/controller/setting"
)

// SettingName is the settings table key of the persisted set.
const SettingName = "google_auth_endpoints"

// ErrNotCached is returned by a Store without a persisted set.
var ErrNotCached = errors.New("no cached endpoints")

// Store persists the endpoint set.
type Store interface {
	Load(ctx context.Context) (*Set, error)
	Save(ctx context.Context, s Set) error
	Clear(ctx context.Context) error
}

// GormStore keeps the set as JSON in the settings table.
type GormStore struct {
	DB *gorm.DB
}

// Load implements Store.
func (g *GormStore) Load(ctx context.Context) (*Set, error) {
	var s Set

	err := setting.LoadJSON(ctx, g.DB, SettingName, &s)
	if errors.Is(err, setting.ErrSettingNotFound) {
		return nil, ErrNotCached
	}

	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &s, nil
}

// Save implements Store.
func (g *GormStore) Save(ctx context.Context, s Set) error {
	return setting.SaveJSON(ctx, g.DB, SettingName, s) //nolint:wrapcheck
}

// Clear implements Store.
func (g *GormStore) Clear(ctx context.Context) error {
	err := setting.DeleteByName(ctx, g.DB, SettingName)
	if errors.Is(err, setting.ErrSettingNotFound) {
		return nil
	}

	return err //nolint:wrapcheck
}

// MemoryStore is a Store for tests and single process setups.
type MemoryStore struct {
	mu  sync.Mutex
	set *Set
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (*Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.set == nil {
		return nil, ErrNotCached
	}

	s := *m.set

	return &s, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.set = &s

	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.set = nil

	return nil
}
