package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wslogin/google-auth/internal/google/settings"
	"github.com/wslogin/google-auth/internal/identity"
)

func TestResolveRoles(t *testing.T) {
	patterns := []settings.EmailPattern{
		{Regex: `.*@example\.com`, Roles: []string{"subscriber"}},
		{Regex: `(hr|accounting)\.\w+@example\.com`, Roles: []string{"editor", "subscriber"}},
		{Regex: `boss@example\.com`, Roles: []string{"administrator", "editor"}},
		{Regex: `(`, Roles: []string{"administrator"}},
	}

	tests := []struct {
		name  string
		email string
		want  []string
		err   error
	}{
		{name: "single match", email: "jane@example.com", want: []string{"subscriber"}},
		{name: "union in first seen order", email: "hr.jane@example.com", want: []string{"subscriber", "editor"}},
		{name: "union deduplicated", email: "boss@example.com", want: []string{"subscriber", "administrator", "editor"}},
		{name: "no match", email: "jane@other.org", err: identity.ErrAccessDenied},
		{name: "suffix is not a full match", email: "jane@example.com.evil.org", err: identity.ErrAccessDenied},
		{name: "prefix is not a full match", email: "x-boss@example.com", want: []string{"subscriber"}},
		{name: "empty email", email: "", err: identity.ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := identity.ResolveRoles(patterns, tt.email)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.Empty(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRolesAlternationIsAnchored(t *testing.T) {
	patterns := []settings.EmailPattern{{Regex: `a@x\.com|b@x\.com`, Roles: []string{"editor"}}}

	_, err := identity.ResolveRoles(patterns, "a@x.com.attacker.net")
	require.ErrorIs(t, err, identity.ErrAccessDenied)

	got, err := identity.ResolveRoles(patterns, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, got)
}

func TestResolveRolesNoPatterns(t *testing.T) {
	_, err := identity.ResolveRoles(nil, "jane@example.com")
	require.ErrorIs(t, err, identity.ErrAccessDenied)
}

func TestPolicyHooks(t *testing.T) {
	assert.True(t, identity.AllowPasswordReset(nil))
	assert.Nil(t, identity.LockedFields(map[string]string{"picture": "x"}))

	linked := map[string]string{"is_google_linked": "1"}
	assert.False(t, identity.AllowPasswordReset(linked))
	assert.Equal(t, []string{"first_name", "last_name", "email", "role"}, identity.LockedFields(linked))
	assert.True(t, identity.IsLocked(linked, identity.FieldEmail))
	assert.False(t, identity.IsLocked(nil, identity.FieldEmail))
}
