package handlers

import (
	"strings"

	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/validation"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Auth  *services.AuthService
	Audit *services.AuditService
}

func NewAuthHandler(auth *services.AuthService, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{Auth: auth, Audit: audit}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func clientInfo(c *fiber.Ctx) services.ClientInfo {
	return services.ClientInfo{UserAgent: c.Get("User-Agent"), IPAddress: c.IP()}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return utils.Fail(c, err)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return utils.Fail(c, err)
	}

	result, err := h.Auth.Register(c.UserContext(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, clientInfo(c))
	if err != nil {
		return utils.Fail(c, err)
	}

	logger.InfoWithUser(result.User.ID.String(), "user_registered", map[string]interface{}{
		"email": result.User.Email,
	})
	audit(c, h.Audit, result.User.ID, "user.register", "user", &result.User.ID, nil)

	return utils.Success(c, fiber.StatusCreated, result)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return utils.Fail(c, err)
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return utils.Fail(c, err)
	}

	result, err := h.Auth.Login(c.UserContext(), req.Email, req.Password, clientInfo(c))
	if err != nil {
		logger.Warn("login_failed", map[string]interface{}{
			"email": strings.ToLower(req.Email),
			"ip":    c.IP(),
		})
		return utils.Fail(c, err)
	}

	audit(c, h.Audit, result.User.ID, "user.login", "user", &result.User.ID, nil)
	return utils.Success(c, fiber.StatusOK, result)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	session := middleware.GetCurrentSession(c)
	if user == nil || session == nil {
		return utils.Fail(c, utils.ErrUnauthorized)
	}

	if err := h.Auth.Logout(c.UserContext(), user.ID, session.ID); err != nil {
		return utils.Fail(c, err)
	}

	audit(c, h.Audit, user.ID, "user.logout", "user", &user.ID, nil)
	return utils.NoContent(c)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Fail(c, utils.ErrUnauthorized)
	}
	return utils.Success(c, fiber.StatusOK, user)
}
