package middleware

import (
	"strings"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
)

const (
	currentUserKey    = "currentUser"
	currentSessionKey = "currentSession"
	userIDKey         = "userID"
)

type AuthMiddleware struct {
	Auth *services.AuthService
}

func NewAuthMiddleware(auth *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{Auth: auth}
}

// CORS allows the configured comma-separated origins. An empty list allows
// any origin without credentials.
func CORS(origins string) fiber.Handler {
	if strings.TrimSpace(origins) == "" {
		origins = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("jwt_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Fail(c, utils.ErrUnauthorized)
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader || tokenString == "" {
		logger.Warn("jwt_invalid_format", map[string]interface{}{
			"ip":          c.IP(),
			"path":        c.Path(),
			"auth_header": authHeader[:min(len(authHeader), 20)] + "...",
		})
		return utils.Fail(c, utils.ErrUnauthorized)
	}

	claims, err := utils.ValidateToken(tokenString)
	if err != nil {
		logger.Warn("jwt_validation_failed", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return utils.Fail(c, utils.ErrUnauthorized)
	}

	sessionID, err := claims.SessionID()
	if err != nil {
		logger.Warn("jwt_session_missing", map[string]interface{}{
			"ip":      c.IP(),
			"path":    c.Path(),
			"user_id": claims.UserID.String(),
		})
		return utils.Fail(c, utils.ErrUnauthorized)
	}

	user, session, err := a.Auth.ResolveSession(c.UserContext(), claims.UserID, sessionID)
	if err != nil {
		logger.Warn("jwt_session_rejected", map[string]interface{}{
			"ip":         c.IP(),
			"path":       c.Path(),
			"user_id":    claims.UserID.String(),
			"session_id": sessionID.String(),
		})
		return utils.Fail(c, err)
	}

	c.Locals(currentUserKey, user)
	c.Locals(currentSessionKey, session)
	c.Locals(userIDKey, user.ID.String())
	return c.Next()
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	user, ok := c.Locals(currentUserKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

func GetCurrentSession(c *fiber.Ctx) *models.Session {
	session, ok := c.Locals(currentSessionKey).(*models.Session)
	if !ok {
		return nil
	}
	return session
}

// CurrentUserID returns the principal set by RequireAuth.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	user := GetCurrentUser(c)
	if user == nil {
		return uuid.Nil, false
	}
	return user.ID, true
}
