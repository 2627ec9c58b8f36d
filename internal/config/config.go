// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigJSONEnv holds a JSON document merged over the file based configuration.
	ConfigJSONEnv = "GOOGLE_AUTH_CONFIG_JSON"

	// DefaultIssuer is Google's OpenID Connect issuer.
	DefaultIssuer = "https://accounts.google.com"

	// DefaultCookiePrefix prefixes the transient login cookies and the callback marker.
	DefaultCookiePrefix = "google_auth"

	defaultCacheRefreshHours = 24
	defaultHTTPTimeout       = 10 * time.Second
	defaultShutDownTime      = 5
	defaultSessionExpiry     = 24 * time.Hour
	defaultAdminUsername     = "admin"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	v.SetConfigFile(strings.TrimSuffix(path, "/") + "/main.toml")
	v.SetConfigType("toml")

	if err = v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	if err = v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv(ConfigJSONEnv)

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to merge json config from env")
	}

	return c, nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	redacted := *c
	if redacted.Google.ClientSecret != "" {
		redacted.Google.ClientSecret = "********"
	}

	if redacted.Admin.Password != "" {
		redacted.Admin.Password = "********"
	}

	if redacted.DB.Password != "" {
		redacted.DB.Password = "********"
	}

	if err := j.Encode(redacted); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate checks the settings the daemon can not start without
// and fills in defaults for everything else.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.Google.CacheRefreshHours < 0 {
		return errors.Wrap(ErrNegativeCacheRefresh, invalidErrMessage)
	}

	switch c.DB.GormEngine {
	case "":
		c.DB.GormEngine = EngineSQLite
	case EngineMySQL, EngineSQLite, EnginePostgres:
	default:
		return errors.Wrapf(ErrUnknownGormEngine, "%s: %q", invalidErrMessage, c.DB.GormEngine)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = defaultShutDownTime
	}

	if c.Webserver.Session.ExpiryTime == 0 {
		c.Webserver.Session.ExpiryTime = defaultSessionExpiry
	}

	if c.Google.Issuer == "" {
		c.Google.Issuer = DefaultIssuer
	}

	if c.Google.CookiePrefix == "" {
		c.Google.CookiePrefix = DefaultCookiePrefix
	}

	if c.Admin.Username == "" {
		c.Admin.Username = defaultAdminUsername
	}

	if c.Google.HTTPTimeout == 0 {
		c.Google.HTTPTimeout = defaultHTTPTimeout
	}

	if c.Google.CacheRefreshHours == 0 && !c.Google.CacheRefreshSet {
		c.Google.CacheRefreshHours = defaultCacheRefreshHours
	}

	return nil
}
