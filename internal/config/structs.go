package config

import (
	"time"

	"github.com/wslogin/google-auth/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Google    Google
	Admin     Admin
}

// Admin is the local account created when the user table is empty.
type Admin struct {
	Username string
	Password string
}

// Webserver implement webserver settings.
type Webserver struct {
	Port         int     // listening port for the webserver
	ShutDownTime int     // wait time for shutdown
	URL          string  // base url for the webserver, the OAuth redirect uri is derived from it
	Session      Session // session settings
}

// EmailPattern is a bootstrap login rule.
type EmailPattern struct {
	Regex string
	Roles []string
}

// Google holds the bootstrap values of the Google sign-in integration.
// Values stored through the admin api take precedence once saved.
type Google struct {
	ClientID          string
	ClientSecret      string
	EmailPatterns     []EmailPattern
	CacheRefreshHours int
	// CacheRefreshSet marks an explicit zero for CacheRefreshHours.
	CacheRefreshSet bool
	CookiePrefix    string
	Issuer          string
	HTTPTimeout     time.Duration
}
