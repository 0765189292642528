package main

import (
	"fmt"
	"os"

	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/spf13/cobra"
)

var (
	flagConfigFile string
	flagEnvFile    string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "filevault",
	Short: "FileVault API server",
	Long: `FileVault stores files in a per-user folder hierarchy and lets
owners share individual files with other users.

Commands:
  filevault serve       Run the HTTP API (default)
  filevault migrate     Apply database migrations and exit
  filevault reconcile   Finish interrupted deletes and purge expired sessions`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(flagEnvFile); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(flagConfigFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger.InitWithOptions(logger.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		})
		utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "Path to a dotenv file loaded before the environment")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
