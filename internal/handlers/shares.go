package handlers

import (
	"strings"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/validation"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type SharesHandler struct {
	Shares *services.ShareService
	Audit  *services.AuditService
}

func NewSharesHandler(shares *services.ShareService, audit *services.AuditService) *SharesHandler {
	return &SharesHandler{Shares: shares, Audit: audit}
}

type shareRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Permission string `json:"permission" validate:"required,oneof=VIEW EDIT"`
}

func (h *SharesHandler) ShareFile(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	fileID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	var req shareRequest
	if err := parseBody(c, &req); err != nil {
		return utils.Fail(c, err)
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return utils.Fail(c, err)
	}

	share, created, err := h.Shares.Share(c.UserContext(), userID, fileID, services.ShareInput{
		Email:      req.Email,
		Permission: models.SharePermission(req.Permission),
	})
	if err != nil {
		return utils.Fail(c, err)
	}

	action, status := "share.update", fiber.StatusOK
	if created {
		action, status = "share.create", fiber.StatusCreated
	}

	logger.InfoWithUser(userID.String(), "file_shared", map[string]interface{}{
		"file_id":    fileID.String(),
		"share_id":   share.ID.String(),
		"grantee_id": share.UserID.String(),
		"permission": share.Permission,
	})
	audit(c, h.Audit, userID, action, "file", &fileID, map[string]interface{}{
		"share_id":            share.ID.String(),
		"shared_with_user_id": share.UserID.String(),
		"permission":          string(share.Permission),
	})

	return utils.Success(c, status, share)
}

func (h *SharesHandler) ListFileShares(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	fileID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	shares, err := h.Shares.List(c.UserContext(), userID, fileID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, shares)
}

func (h *SharesHandler) DeleteShare(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	fileID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	shareID, err := paramID(c, "shareId")
	if err != nil {
		return utils.Fail(c, err)
	}

	share, err := h.Shares.Unshare(c.UserContext(), userID, fileID, shareID)
	if err != nil {
		return utils.Fail(c, err)
	}

	audit(c, h.Audit, userID, "share.delete", "file", &fileID, map[string]interface{}{
		"share_id":            share.ID.String(),
		"shared_with_user_id": share.UserID.String(),
	})
	return utils.NoContent(c)
}

func (h *SharesHandler) ListSharedWithMe(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	shares, err := h.Shares.SharedWithMe(c.UserContext(), userID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, shares)
}
