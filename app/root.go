// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/logger"
)

var rootCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "google-auth",
	Short: "google-auth signs users in with their Google Workspace account",
	Long: `google-auth is a small web service that signs users in with Google
Workspace OAuth2 / OpenID Connect and maps them onto local accounts and roles
through administrator managed email patterns.`,
	Args: cobra.OnlyValidArgs,
}

func init() { //nolint:gochecknoinits
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./etc/", "Directory holding main.toml")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute() //nolint:wrapcheck
}

// loadConfig reads the configuration and sets up logging.
func loadConfig() error {
	if cfg, err = config.ReadConfig(configPath); err != nil {
		return err //nolint:wrapcheck
	}

	if devMode {
		cfg.DevMode = true
	}

	return logger.Init(cfg.Log) //nolint:wrapcheck
}
