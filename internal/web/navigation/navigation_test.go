package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wslogin/google-auth/internal/db/models"
)

func titles(m *Menu) []string {
	out := make([]string, 0, len(m.Items))
	for _, it := range m.Items {
		out = append(out, it.Title)
	}

	return out
}

func TestForUser(t *testing.T) {
	admin := &models.User{ID: 1, Roles: []models.Role{{Key: models.RoleAdministrator}}}
	editor := &models.User{ID: 2, Roles: []models.Role{{Key: models.RoleEditor}}}

	tests := []struct {
		name string
		user *models.User
		want []string
	}{
		{name: "anonymous", user: nil, want: []string{"Log in"}},
		{name: "user without id", user: &models.User{}, want: []string{"Log in"}},
		{name: "editor", user: editor, want: []string{"Dashboard", "Profile", "Log out"}},
		{name: "administrator", user: admin, want: []string{"Dashboard", "Profile", "Google sign-in", "Users", "Log out"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(ForUser("/", tt.user)))
		})
	}
}

func TestMenu_Active(t *testing.T) {
	user := &models.User{ID: 1}

	m := ForUser("/profile", user)
	assert.True(t, m.IsActive("/profile"))
	assert.False(t, m.IsActive("/dashboard"))
	assert.False(t, m.IsActive("/unknown"))

	// sub pages keep their section active
	m = ForUser("/dashboard/stats", user)
	assert.True(t, m.IsActive("/dashboard"))

	// a shared prefix is not a sub page
	m = ForUser("/profiles", user)
	assert.False(t, m.IsActive("/profile"))
}
