package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// AuthSource represents the authentication source for a user account.
type AuthSource string

const (
	// AuthSourceLocal indicates the user authenticates with a local database password.
	AuthSourceLocal AuthSource = "local"
	// AuthSourceGoogle indicates the account was created by a Google sign-in.
	AuthSourceGoogle AuthSource = "google"
)

// User represents a user account in the system.
// Accounts created by a Google sign-in carry a random password hash that nobody knows.
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// Active indicates whether the user account is active and can log in.
	Active bool
	// Username is the unique username for login. Google accounts use their email address.
	Username string `gorm:"uniqueIndex;size:191;not null"`
	// Email is the user's email address, the lookup key for Google sign-ins.
	Email string `gorm:"index;size:191;not null"`
	// Password is the Argon2id hashed password.
	Password string `gorm:"size:255" json:"-"`
	// FirstName is the user's first or given name.
	FirstName string `gorm:"size:100"`
	// LastName is the user's last or family name.
	LastName string `gorm:"size:100"`
	// DisplayName is the full name shown in the UI.
	DisplayName string `gorm:"size:255"`
	// AuthSource indicates how this account was created.
	AuthSource AuthSource `gorm:"type:varchar(20);not null;default:'local'"`
	// Roles assigned to the user.
	Roles []Role `gorm:"many2many:user_roles;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time
}

// HasRole reports whether the user holds the role with the given key.
// Roles must be preloaded.
func (u *User) HasRole(key string) bool {
	for _, r := range u.Roles {
		if r.Key == key {
			return true
		}
	}

	return false
}

// RoleKeys returns the keys of the preloaded roles.
func (u *User) RoleKeys() []string {
	keys := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		keys = append(keys, r.Key)
	}

	return keys
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2id.DefaultParams) //nolint:wrapcheck
}

// VerifyPassword verifies a plaintext password against the user's stored hashed password.
// It uses constant-time comparison to prevent timing attacks.
func (u *User) VerifyPassword(password string) bool {
	if u.Password == "" {
		return false
	}

	match, err := argon2id.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		log.Error().Err(err).Uint64("user", u.ID).Msg("failed to verify password")
		return false
	}

	return match
}
