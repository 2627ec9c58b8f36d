// Package identity maps a verified Google identity onto a local account and its roles.
package identity

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-uuid"
	"github.com/rs/zerolog/log"

	"github.com/wslogin/google-auth/internal/db/models"
	"github.com/wslogin/google-auth/internal/google/oauth"
)

// placeholderBytes is the entropy of the never used password of new accounts.
const placeholderBytes = 24

// Profile fields a Google linked account can't edit.
const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldEmail     = "email"
	FieldRole      = "role"
)

// AccountStore persists accounts, their meta data and role grants.
type AccountStore interface {
	// Transaction runs fn with a store bound to one transaction.
	Transaction(ctx context.Context, fn func(tx AccountStore) error) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByID returns the account with its roles preloaded.
	FindByID(ctx context.Context, id uint64) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	UpdateProfile(ctx context.Context, u *models.User) error
	Meta(ctx context.Context, userID uint64) (models.Meta, error)
	SetMeta(ctx context.Context, userID uint64, key, value string) error
	// ReplaceRoles sets the role grants of userID to keys and returns the keys without a role.
	ReplaceRoles(ctx context.Context, userID uint64, keys []string) (unknown []string, err error)
	RoleKeys(ctx context.Context) ([]string, error)
}

// Mapper creates and updates local accounts from Google profiles.
type Mapper struct {
	store AccountStore
}

// NewMapper creates a Mapper.
func NewMapper(store AccountStore) *Mapper {
	return &Mapper{store: store}
}

// Store returns the underlying AccountStore.
func (m *Mapper) Store() AccountStore {
	return m.store
}

// UpsertAccount finds the account of info.Email or creates it, then copies the
// profile over. A picture claim links the account to Google for good.
func (m *Mapper) UpsertAccount(ctx context.Context, info oauth.UserInfo) (*models.User, error) {
	if info.Email == "" {
		return nil, fmt.Errorf("%w: empty email", ErrAccountResolution)
	}

	var user *models.User

	err := m.store.Transaction(ctx, func(tx AccountStore) error {
		u, err := tx.FindByEmail(ctx, info.Email)

		switch {
		case errors.Is(err, ErrAccountNotFound):
			if u, err = newAccount(info.Email); err != nil {
				return err
			}

			if err = tx.Create(ctx, u); err != nil {
				return fmt.Errorf("create account: %w", err)
			}

			log.Info().Str("email", info.Email).Uint64("user", u.ID).Msg("created account for google sign-in")
		case err != nil:
			return fmt.Errorf("find account: %w", err)
		}

		if applyProfile(u, info) {
			if err = tx.UpdateProfile(ctx, u); err != nil {
				return fmt.Errorf("update profile: %w", err)
			}
		}

		if info.Picture != "" {
			if err = tx.SetMeta(ctx, u.ID, models.MetaPicture, info.Picture); err != nil {
				return fmt.Errorf("set picture: %w", err)
			}

			if err = tx.SetMeta(ctx, u.ID, models.MetaGoogleLinked, "1"); err != nil {
				return fmt.Errorf("link account: %w", err)
			}
		}

		user = u

		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("email", info.Email).Msg("can't resolve local account")

		return nil, fmt.Errorf("%w: %w", ErrAccountResolution, err)
	}

	return user, nil
}

// AssignRoles replaces the role set of user with roles. Unknown role keys are skipped.
// user.Roles holds the stored grants afterwards.
func (m *Mapper) AssignRoles(ctx context.Context, user *models.User, roles []string) error {
	unknown, err := m.store.ReplaceRoles(ctx, user.ID, roles)
	if err != nil {
		return fmt.Errorf("%w: assign roles: %w", ErrAccountResolution, err)
	}

	if len(unknown) > 0 {
		log.Warn().Strs("roles", unknown).Uint64("user", user.ID).Msg("email pattern grants unknown roles, skipped")
	}

	stored, err := m.store.FindByID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("%w: reload roles: %w", ErrAccountResolution, err)
	}

	user.Roles = stored.Roles

	return nil
}

// Meta returns the meta data of userID.
func (m *Mapper) Meta(ctx context.Context, userID uint64) (models.Meta, error) {
	return m.store.Meta(ctx, userID) //nolint:wrapcheck
}

// AllowPasswordReset reports whether the account may reset or change its password.
func AllowPasswordReset(meta models.Meta) bool {
	return !meta.GoogleLinked()
}

// LockedFields lists the profile fields the account can't edit.
func LockedFields(meta models.Meta) []string {
	if !meta.GoogleLinked() {
		return nil
	}

	return []string{FieldFirstName, FieldLastName, FieldEmail, FieldRole}
}

// IsLocked reports whether field is locked for the account.
func IsLocked(meta models.Meta, field string) bool {
	return slices.Contains(LockedFields(meta), field)
}

func newAccount(email string) (*models.User, error) {
	b, err := uuid.GenerateRandomBytes(placeholderBytes)
	if err != nil {
		return nil, fmt.Errorf("generate placeholder password: %w", err)
	}

	hash, err := models.HashPassword(hex.EncodeToString(b))
	if err != nil {
		return nil, fmt.Errorf("hash placeholder password: %w", err)
	}

	return &models.User{
		Active:     true,
		Username:   email,
		Email:      strings.ToLower(email),
		Password:   hash,
		AuthSource: models.AuthSourceGoogle,
	}, nil
}

// applyProfile copies the present profile claims and reports whether u changed.
func applyProfile(u *models.User, info oauth.UserInfo) bool {
	changed := false

	for _, f := range []struct {
		dst *string
		src string
	}{
		{&u.FirstName, info.GivenName},
		{&u.LastName, info.FamilyName},
		{&u.DisplayName, info.Name},
	} {
		if f.src != "" && *f.dst != f.src {
			*f.dst = f.src
			changed = true
		}
	}

	return changed
}
