package handlers

import (
	"strings"

	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/validation"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type FoldersHandler struct {
	Folders *services.FolderService
	Files   *services.FileService
	Audit   *services.AuditService
}

func NewFoldersHandler(folders *services.FolderService, files *services.FileService, audit *services.AuditService) *FoldersHandler {
	return &FoldersHandler{Folders: folders, Files: files, Audit: audit}
}

type createFolderRequest struct {
	Name     string                `json:"name" validate:"required,max=255"`
	ParentID validation.OptionalID `json:"parentId" validate:"-"`
}

type updateFolderRequest struct {
	Name     *string               `json:"name" validate:"omitnil,min=1,max=255"`
	ParentID validation.OptionalID `json:"parentId" validate:"-"`
}

// List returns the direct children of parentId (root when absent or null).
// Files are included when includeFiles=true.
func (h *FoldersHandler) List(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	parent := validation.OptionalIDFrom(c.Query("parentId"))
	if err := validation.Struct(struct{}{}, parent.Check("parentId")...); err != nil {
		return utils.Fail(c, err)
	}

	listing, err := h.Files.Browse(c.UserContext(), userID, parent.Value, c.QueryBool("includeFiles", false))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, listing)
}

func (h *FoldersHandler) Create(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	var req createFolderRequest
	if err := parseBody(c, &req); err != nil {
		return utils.Fail(c, err)
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req, req.ParentID.Check("parentId")...); err != nil {
		return utils.Fail(c, err)
	}

	folder, err := h.Folders.Create(c.UserContext(), userID, services.CreateFolderInput{
		Name:     req.Name,
		ParentID: req.ParentID.Value,
	})
	if err != nil {
		return utils.Fail(c, err)
	}

	logger.InfoWithUser(userID.String(), "folder_created", map[string]interface{}{
		"folder_id": folder.ID.String(),
		"parent_id": folder.ParentID,
	})
	audit(c, h.Audit, userID, "folder.create", "folder", &folder.ID, map[string]interface{}{
		"folder_name": folder.Name,
	})

	return utils.Success(c, fiber.StatusCreated, folder)
}

func (h *FoldersHandler) Get(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	folderID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	folder, err := h.Folders.Get(c.UserContext(), userID, folderID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, folder)
}

func (h *FoldersHandler) Update(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	folderID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	var req updateFolderRequest
	if err := parseBody(c, &req); err != nil {
		return utils.Fail(c, err)
	}
	req.Name = trimmed(req.Name)
	if err := validation.Struct(req, req.ParentID.Check("parentId")...); err != nil {
		return utils.Fail(c, err)
	}

	folder, err := h.Folders.Update(c.UserContext(), userID, folderID, services.UpdateFolderInput{
		Name:     req.Name,
		Move:     req.ParentID.Set,
		ParentID: req.ParentID.Value,
	})
	if err != nil {
		return utils.Fail(c, err)
	}

	details := map[string]interface{}{"folder_name": folder.Name}
	if req.ParentID.Set {
		details["moved"] = true
	}
	audit(c, h.Audit, userID, "folder.update", "folder", &folder.ID, details)

	return utils.Success(c, fiber.StatusOK, folder)
}

func (h *FoldersHandler) Delete(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	folderID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	folder, err := h.Folders.Delete(c.UserContext(), userID, folderID)
	if err != nil {
		return utils.Fail(c, err)
	}

	logger.InfoWithUser(userID.String(), "folder_deleted", map[string]interface{}{
		"folder_id": folder.ID.String(),
	})
	audit(c, h.Audit, userID, "folder.delete", "folder", &folder.ID, map[string]interface{}{
		"folder_name": folder.Name,
	})

	return utils.NoContent(c)
}

func (h *FoldersHandler) Path(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	folderID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	path, err := h.Folders.Path(c.UserContext(), userID, folderID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, path)
}

func (h *FoldersHandler) Trash(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	folderID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	folder, err := h.Folders.Trash(c.UserContext(), userID, folderID)
	if err != nil {
		return utils.Fail(c, err)
	}

	audit(c, h.Audit, userID, "folder.trash", "folder", &folder.ID, map[string]interface{}{
		"folder_name": folder.Name,
	})
	return utils.Success(c, fiber.StatusOK, folder)
}

func (h *FoldersHandler) Restore(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	folderID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	folder, err := h.Folders.Restore(c.UserContext(), userID, folderID)
	if err != nil {
		return utils.Fail(c, err)
	}

	audit(c, h.Audit, userID, "folder.restore", "folder", &folder.ID, map[string]interface{}{
		"folder_name": folder.Name,
	})
	return utils.Success(c, fiber.StatusOK, folder)
}
