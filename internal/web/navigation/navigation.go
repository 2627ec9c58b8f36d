// Package navigation builds the header menu of the web pages.
package navigation

import (
	"strings"

	"github.com/wslogin/google-auth/internal/db/models"
)

// Item is one link of the header menu.
type Item struct {
	Title  string
	URL    string
	Active bool
}

// Menu is the header menu of one request.
type Menu struct {
	Items []Item
}

type entry struct {
	title string
	url   string
	role  string // empty: every signed in user
}

var signedIn = []entry{ //nolint:gochecknoglobals
	{title: "Dashboard", url: "/dashboard"},
	{title: "Profile", url: "/profile"},
	{title: "Google sign-in", url: "/admin/settings/google", role: models.RoleAdministrator},
	{title: "Users", url: "/admin/users", role: models.RoleAdministrator},
	{title: "Log out", url: "/logout"},
}

// ForUser returns the menu of user at path. A nil user gets the log in link only.
func ForUser(path string, user *models.User) *Menu {
	m := &Menu{Items: make([]Item, 0, len(signedIn))}

	if user == nil || user.ID == 0 {
		return m.add("Log in", "/login", path)
	}

	for _, e := range signedIn {
		if e.role != "" && !user.HasRole(e.role) {
			continue
		}

		m.add(e.title, e.url, path)
	}

	return m
}

func (m *Menu) add(title, url, path string) *Menu {
	m.Items = append(m.Items, Item{
		Title:  title,
		URL:    url,
		Active: path == url || strings.HasPrefix(path, url+"/"),
	})

	return m
}

// IsActive reports whether the item with url is the current page.
func (m *Menu) IsActive(url string) bool {
	for _, it := range m.Items {
		if it.URL == url {
			return it.Active
		}
	}

	return false
}
