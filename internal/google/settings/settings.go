// Package settings holds the administrator managed Google sign-in settings.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/db/controller/setting"
)

// SettingName is the settings table key.
const SettingName = "google_auth"

// DefaultCacheRefreshHours is the discovery cache lifetime used when none is stored.
const DefaultCacheRefreshHours = 24

// SecretMask replaces the client secret in redacted settings.
const SecretMask = "********"

// EmailPattern grants Roles to every email fully matching Regex.
type EmailPattern struct {
	Regex string   `json:"regex" validate:"required"`
	Roles []string `json:"roles" validate:"required,min=1,dive,required"`
}

// Settings of the Google sign-in.
type Settings struct {
	ClientID          string         `json:"client_id" validate:"required"`
	ClientSecret      string         `json:"client_secret"`
	EmailPatterns     []EmailPattern `json:"email_patterns" validate:"dive"`
	CacheRefreshHours int            `json:"cache_refresh_hours"`
	// Configured is set when the last save passed validation.
	// Login interception is off while it is false.
	Configured bool `json:"configured"`
}

// Defaults returns the settings used before anything was stored.
func Defaults() Settings {
	return Settings{
		EmailPatterns:     []EmailPattern{},
		CacheRefreshHours: DefaultCacheRefreshHours,
	}
}

// FromConfig builds the bootstrap settings from the config file.
// They are not marked Configured, an administrator has to validate them once.
func FromConfig(g config.Google) Settings {
	s := Defaults()
	s.ClientID = g.ClientID
	s.ClientSecret = g.ClientSecret
	s.CacheRefreshHours = g.CacheRefreshHours

	for _, p := range g.EmailPatterns {
		s.EmailPatterns = append(s.EmailPatterns, EmailPattern{Regex: p.Regex, Roles: append([]string(nil), p.Roles...)})
	}

	return s
}

// RefreshAfter is the discovery cache threshold.
func (s Settings) RefreshAfter() time.Duration {
	return time.Duration(s.CacheRefreshHours) * time.Hour
}

// Redacted returns a copy without the client secret.
func (s Settings) Redacted() Settings {
	if s.ClientSecret != "" {
		s.ClientSecret = SecretMask
	}

	return s
}

// Service loads, caches and stores the settings.
type Service struct {
	db        *gorm.DB
	bootstrap Settings
	current   atomic.Pointer[Settings]

	mu        sync.Mutex
	listeners []func(Settings)
}

// NewService creates a Service. bootstrap is returned until settings are saved.
func NewService(db *gorm.DB, bootstrap Settings) *Service {
	return &Service{db: db, bootstrap: bootstrap}
}

// OnChange registers f to be called with the settings after every Load and Save.
func (s *Service) OnChange(f func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, f)
}

// Load reads the stored settings, falling back to the bootstrap values.
// Missing fields take their defaults.
func (s *Service) Load(ctx context.Context) (Settings, error) {
	loaded := Defaults()

	err := setting.LoadJSON(ctx, s.db, SettingName, &loaded)

	switch {
	case errors.Is(err, setting.ErrSettingNotFound):
		log.Debug().Msg("google sign-in settings not stored yet, using config values")

		loaded = s.bootstrap
	case err != nil:
		return Settings{}, fmt.Errorf("load google sign-in settings: %w", err)
	}

	if loaded.EmailPatterns == nil {
		loaded.EmailPatterns = []EmailPattern{}
	}

	s.publish(loaded)

	return loaded, nil
}

// Save stores st and makes it current.
func (s *Service) Save(ctx context.Context, st Settings) error {
	if err := setting.SaveJSON(ctx, s.db, SettingName, st); err != nil {
		return fmt.Errorf("save google sign-in settings: %w", err)
	}

	s.publish(st)

	return nil
}

// Clear deletes the stored settings. The bootstrap values become current again.
func (s *Service) Clear(ctx context.Context) error {
	err := setting.DeleteByName(ctx, s.db, SettingName)
	if err != nil && !errors.Is(err, setting.ErrSettingNotFound) {
		return fmt.Errorf("delete google sign-in settings: %w", err)
	}

	s.publish(s.bootstrap)

	return nil
}

// Current returns the last loaded or saved settings.
func (s *Service) Current() Settings {
	if st := s.current.Load(); st != nil {
		return *st
	}

	return s.bootstrap
}

// Credentials returns the current client id and secret.
func (s *Service) Credentials() (string, string) {
	st := s.Current()

	return st.ClientID, st.ClientSecret
}

func (s *Service) publish(st Settings) {
	s.current.Store(&st)

	s.mu.Lock()
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.Unlock()

	for _, f := range listeners {
		f(st)
	}
}
