package handlers

import (
	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// Services bundles what the HTTP surface needs.
type Services struct {
	Auth    *services.AuthService
	Folders *services.FolderService
	Files   *services.FileService
	Shares  *services.ShareService
	Audit   *services.AuditService
}

// RegisterRoutes mounts /health and every /api route on app. authLimiter
// guards the credential endpoints and may be nil.
func RegisterRoutes(app *fiber.App, svc Services, authLimiter *middleware.RateLimiter) {
	authMiddleware := middleware.NewAuthMiddleware(svc.Auth)

	authHandler := NewAuthHandler(svc.Auth, svc.Audit)
	foldersHandler := NewFoldersHandler(svc.Folders, svc.Files, svc.Audit)
	filesHandler := NewFilesHandler(svc.Files, svc.Shares, svc.Audit)
	sharesHandler := NewSharesHandler(svc.Shares, svc.Audit)
	auditHandler := NewAuditHandler(svc.Audit)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	limited := func(c *fiber.Ctx) error { return c.Next() }
	if authLimiter != nil {
		limited = authLimiter.Handler()
	}

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", limited, authHandler.Register)
	authRoutes.Post("/login", limited, authHandler.Login)
	authRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	fileRoutes := api.Group("/files", authMiddleware.RequireAuth)
	fileRoutes.Post("/", filesHandler.Upload)
	fileRoutes.Get("/", filesHandler.List)
	fileRoutes.Patch("/trash", filesHandler.TrashToggle)
	fileRoutes.Get("/:id", filesHandler.Get)
	fileRoutes.Put("/:id", filesHandler.Update)
	fileRoutes.Delete("/:id", filesHandler.Delete)
	fileRoutes.Post("/:id/star", filesHandler.Star)
	fileRoutes.Post("/:id/trash", filesHandler.Trash)
	fileRoutes.Post("/:id/restore", filesHandler.Restore)
	fileRoutes.Post("/:id/access", filesHandler.Access)
	fileRoutes.Post("/:id/share", sharesHandler.ShareFile)
	fileRoutes.Get("/:id/shares", sharesHandler.ListFileShares)
	fileRoutes.Delete("/:id/shares/:shareId", sharesHandler.DeleteShare)

	folderRoutes := api.Group("/folders", authMiddleware.RequireAuth)
	folderRoutes.Get("/", foldersHandler.List)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Get("/:id", foldersHandler.Get)
	folderRoutes.Put("/:id", foldersHandler.Update)
	folderRoutes.Delete("/:id", foldersHandler.Delete)
	folderRoutes.Get("/:id/path", foldersHandler.Path)
	folderRoutes.Post("/:id/trash", foldersHandler.Trash)
	folderRoutes.Post("/:id/restore", foldersHandler.Restore)

	api.Get("/shared", authMiddleware.RequireAuth, sharesHandler.ListSharedWithMe)
	api.Get("/audit-log", authMiddleware.RequireAuth, auditHandler.ListMine)
}
