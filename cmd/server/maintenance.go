package main

import (
	"fmt"

	"github.com/filevault/backend/internal/database"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.DB)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("migrations_applied", map[string]interface{}{"driver": cfg.DB.Driver})
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Finish interrupted deletes and purge expired sessions once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := database.Connect(cfg.DB)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		store, err := storage.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("storage initialization failed: %w", err)
		}

		reconciler := services.NewReconciler(db, store, cfg.Reconcile.Grace, cfg.DB.Timeout, cfg.Storage.Timeout)
		result, err := reconciler.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}

		auth := services.NewAuthService(db, services.NewAccessService(db, cfg.DB.Timeout))
		expired, err := auth.PurgeExpiredSessions(ctx)
		if err != nil {
			return fmt.Errorf("session purge failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "purged %d files (%d failed, %d skipped), removed %d expired sessions\n",
			result.Purged, result.Failed, result.Skipped, expired)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
}
