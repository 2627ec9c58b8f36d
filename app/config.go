package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/daemon"
)

const cleanTimeout = 30 * time.Second

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(dumpConfigCmd, cleanCmd)
}

var (
	dumpConfigCmd = &cobra.Command{
		Use:   "dump-config",
		Short: "Print the effective configuration as JSON, secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.ReadConfig(configPath)
			if err != nil {
				return err //nolint:wrapcheck
			}

			out, err := config.DumpConfigJSON(&c)
			if err != nil {
				return err //nolint:wrapcheck
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), out)

			return err //nolint:wrapcheck
		},
	}

	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Remove the stored Google sign-in settings and the cached discovery endpoints",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cleanTimeout)
			defer cancel()

			return daemon.Clean(ctx, &cfg) //nolint:wrapcheck
		},
	}
)
