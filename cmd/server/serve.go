package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filevault/backend/internal/database"
	"github.com/filevault/backend/internal/handlers"
	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed ensuring storage bucket: %w", err)
	}

	access := services.NewAccessService(db, cfg.DB.Timeout)
	folders := services.NewFolderService(db, access, cfg.Folders.MaxDepth)
	audit := services.NewAuditService(db, cfg.Audit.QueueSize)
	reconciler := services.NewReconciler(db, store, cfg.Reconcile.Grace, cfg.DB.Timeout, cfg.Storage.Timeout)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	stopSweeper := make(chan struct{})
	limiter.StartSweeper(time.Minute, stopSweeper)

	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler: utils.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.CORSOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	handlers.RegisterRoutes(app, handlers.Services{
		Auth:    services.NewAuthService(db, access),
		Folders: folders,
		Files:   services.NewFileService(db, access, folders, store, cfg.Storage.Timeout),
		Shares:  services.NewShareService(db, access),
		Audit:   audit,
	}, limiter)

	reconciler.Start(cfg.Reconcile.Interval)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("server_starting", map[string]interface{}{
		"port":           cfg.Server.Port,
		"address":        listenAddr,
		"body_limit":     fmt.Sprintf("%dMB", cfg.Server.BodyLimitMB),
		"storage_driver": cfg.Storage.Driver,
		"db_driver":      cfg.DB.Driver,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error
	select {
	case sig := <-quit:
		logger.Info("server_shutting_down", map[string]interface{}{"signal": sig.String()})
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("server_shutdown_failed", err, nil)
		}
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}

	close(stopSweeper)
	reconciler.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := audit.Close(drainCtx); err != nil {
		logger.Error("audit_drain_failed", err, nil)
	}

	logger.Info("server_stopped", nil)
	return serveErr
}
