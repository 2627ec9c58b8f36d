// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wslogin/google-auth/internal/config"
)

// Create builds the gorm Data Source Name for the configured engine.
func Create(cfg *config.Config) string {
	db := cfg.DB

	switch db.GormEngine {
	case config.EngineMySQL:
		out := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			db.User,
			db.Password,
			db.Host,
			db.Port,
			db.Name,
		)
		if db.Extras != "" {
			out += "?" + db.Extras
		}

		return out
	case config.EnginePostgres:
		parts := []string{
			"host=" + db.Host,
			"port=" + strconv.Itoa(db.Port),
			"user=" + db.User,
			"password=" + db.Password,
			"dbname=" + db.Name,
		}
		if db.Extras != "" {
			parts = append(parts, db.Extras)
		}

		return strings.Join(parts, " ")
	default:
		return db.Name
	}
}

// SessionURI builds the connection uri for the gofiber session storage.
// Postgres wants a URL, mysql the driver DSN. Sqlite has no session storage uri.
func SessionURI(cfg *config.Config) string {
	db := cfg.DB

	switch db.GormEngine {
	case config.EngineMySQL:
		return Create(cfg)
	case config.EnginePostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(db.User, db.Password),
			Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
			Path:     "/" + db.Name,
			RawQuery: db.Extras,
		}

		return u.String()
	default:
		return ""
	}
}
