package handlers

import (
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type AuditHandler struct {
	Audit *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{Audit: audit}
}

// ListMine returns the caller's own audit trail, newest first.
func (h *AuditHandler) ListMine(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	rows, err := h.Audit.ForUser(c.UserContext(), userID, c.QueryInt("limit", 100))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, rows)
}
