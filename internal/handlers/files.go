package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/validation"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type FilesHandler struct {
	Files  *services.FileService
	Shares *services.ShareService
	Audit  *services.AuditService
}

func NewFilesHandler(files *services.FileService, shares *services.ShareService, audit *services.AuditService) *FilesHandler {
	return &FilesHandler{Files: files, Shares: shares, Audit: audit}
}

type uploadMetadata struct {
	Name     string                `json:"name" validate:"required,max=255"`
	Type     string                `json:"type" validate:"required"`
	Size     int64                 `json:"size" validate:"gt=0"`
	FolderID validation.OptionalID `json:"folderId" validate:"-"`
}

type updateFileRequest struct {
	Name     *string               `json:"name" validate:"omitnil,min=1,max=255"`
	FolderID validation.OptionalID `json:"folderId" validate:"-"`
}

type starRequest struct {
	Starred *bool `json:"starred" validate:"required"`
}

type trashToggleRequest struct {
	FileID  string `json:"fileId" validate:"required"`
	Trashed *bool  `json:"trashed" validate:"required"`
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	fileHeader, fileErr := c.FormFile("file")
	rawMetadata := strings.TrimSpace(c.FormValue("metadata"))
	if fileErr != nil || rawMetadata == "" {
		return utils.Fail(c, utils.ErrUploadIncomplete)
	}

	var meta uploadMetadata
	if err := json.Unmarshal([]byte(rawMetadata), &meta); err != nil {
		return utils.Fail(c, utils.ErrInvalidBody.Wrap(err))
	}
	meta.Name = strings.TrimSpace(meta.Name)
	meta.Type = strings.TrimSpace(meta.Type)
	if err := validation.Struct(meta, meta.FolderID.Check("folderId")...); err != nil {
		return utils.Fail(c, err)
	}
	if meta.Size != fileHeader.Size {
		return utils.Fail(c, utils.ErrValidation.WithDetails([]utils.FieldError{{
			Field:   "size",
			Message: fmt.Sprintf("must match the uploaded file size (%d bytes)", fileHeader.Size),
		}}))
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Fail(c, err)
	}
	defer stream.Close()

	file, err := h.Files.Upload(c.UserContext(), userID, services.UploadInput{
		Name:          meta.Name,
		Type:          meta.Type,
		Size:          meta.Size,
		FolderID:      meta.FolderID.Value,
		Content:       stream,
		ContentLength: fileHeader.Size,
	})
	if err != nil {
		return utils.Fail(c, err)
	}

	logger.InfoWithUser(userID.String(), "file_uploaded", map[string]interface{}{
		"file_id":      file.ID.String(),
		"file_name":    file.Name,
		"file_size":    file.Size,
		"mime_type":    file.Type,
		"storage_path": file.StoragePath,
		"folder_id":    file.FolderID,
	})

	details := map[string]interface{}{
		"file_name": file.Name,
		"file_size": file.Size,
		"mime_type": file.Type,
	}
	if file.FolderID != nil {
		details["folder_id"] = file.FolderID.String()
	}
	audit(c, h.Audit, userID, "file.upload", "file", &file.ID, details)

	return utils.Success(c, fiber.StatusCreated, file)
}

// List serves the listing variants selected by the type query parameter.
func (h *FilesHandler) List(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	ctx := c.UserContext()

	switch c.Query("type") {
	case "recent":
		limit := services.DefaultRecentLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > services.MaxRecentLimit {
				return utils.Fail(c, utils.ErrValidation.WithDetails([]utils.FieldError{{
					Field:   "limit",
					Message: "must be between 1 and " + strconv.Itoa(services.MaxRecentLimit),
				}}))
			}
			limit = parsed
		}
		files, err := h.Files.Recent(ctx, userID, limit)
		if err != nil {
			return utils.Fail(c, err)
		}
		return utils.Success(c, fiber.StatusOK, files)

	case "starred":
		files, err := h.Files.Starred(ctx, userID)
		if err != nil {
			return utils.Fail(c, err)
		}
		return utils.Success(c, fiber.StatusOK, files)

	case "trash":
		listing, err := h.Files.Trashed(ctx, userID)
		if err != nil {
			return utils.Fail(c, err)
		}
		return utils.Success(c, fiber.StatusOK, listing)

	case "shared":
		shares, err := h.Shares.SharedWithMe(ctx, userID)
		if err != nil {
			return utils.Fail(c, err)
		}
		return utils.Success(c, fiber.StatusOK, shares)

	case "":
		folder := validation.OptionalIDFrom(c.Query("folderId"))
		if err := validation.Struct(struct{}{}, folder.Check("folderId")...); err != nil {
			return utils.Fail(c, err)
		}
		listing, err := h.Files.Browse(ctx, userID, folder.Value, c.QueryBool("includeFiles", false))
		if err != nil {
			return utils.Fail(c, err)
		}
		return utils.Success(c, fiber.StatusOK, listing)

	default:
		return utils.Fail(c, utils.ErrValidation.WithDetails([]utils.FieldError{{
			Field:   "type",
			Message: "must be one of: recent, starred, trash, shared",
		}}))
	}
}

func (h *FilesHandler) Get(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	fileID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	file, err := h.Files.Get(c.UserContext(), userID, fileID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Update(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	fileID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	var req updateFileRequest
	if err := parseBody(c, &req); err != nil {
		return utils.Fail(c, err)
	}
	req.Name = trimmed(req.Name)
	if err := validation.Struct(req, req.FolderID.Check("folderId")...); err != nil {
		return utils.Fail(c, err)
	}

	file, err := h.Files.Update(c.UserContext(), userID, fileID, services.UpdateFileInput{
		Name:     req.Name,
		Move:     req.FolderID.Set,
		FolderID: req.FolderID.Value,
	})
	if err != nil {
		return utils.Fail(c, err)
	}

	audit(c, h.Audit, userID, "file.update", "file", &file.ID, map[string]interface{}{
		"file_name": file.Name,
		"moved":     req.FolderID.Set,
	})
	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	fileID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	file, err := h.Files.Delete(c.UserContext(), userID, fileID)
	if err != nil {
		return utils.Fail(c, err)
	}

	logger.InfoWithUser(userID.String(), "file_deleted", map[string]interface{}{
		"file_id":      file.ID.String(),
		"storage_path": file.StoragePath,
	})
	audit(c, h.Audit, userID, "file.delete", "file", &file.ID, map[string]interface{}{
		"file_name": file.Name,
	})
	return utils.NoContent(c)
}

func (h *FilesHandler) Star(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	fileID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	var req starRequest
	if err := parseBody(c, &req); err != nil {
		return utils.Fail(c, err)
	}
	if err := validation.Struct(req); err != nil {
		return utils.Fail(c, err)
	}

	file, err := h.Files.Star(c.UserContext(), userID, fileID, *req.Starred)
	if err != nil {
		return utils.Fail(c, err)
	}

	audit(c, h.Audit, userID, "file.star", "file", &file.ID, map[string]interface{}{
		"file_name": file.Name,
		"starred":   file.Starred,
	})
	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Trash(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	fileID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	return h.setTrashed(c, userID, fileID, true)
}

func (h *FilesHandler) Restore(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	fileID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	return h.setTrashed(c, userID, fileID, false)
}

// TrashToggle moves a file into or out of the trash from a single endpoint.
func (h *FilesHandler) TrashToggle(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	var req trashToggleRequest
	if err := parseBody(c, &req); err != nil {
		return utils.Fail(c, err)
	}
	if err := validation.Struct(req); err != nil {
		return utils.Fail(c, err)
	}
	fileID, err := validation.ID("fileId", req.FileID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return h.setTrashed(c, userID, fileID, *req.Trashed)
}

func (h *FilesHandler) setTrashed(c *fiber.Ctx, userID, fileID uuid.UUID, trashed bool) error {
	var (
		action = "file.restore"
		run    = h.Files.Restore
	)
	if trashed {
		action = "file.trash"
		run = h.Files.Trash
	}

	file, err := run(c.UserContext(), userID, fileID)
	if err != nil {
		return utils.Fail(c, err)
	}

	audit(c, h.Audit, userID, action, "file", &file.ID, map[string]interface{}{
		"file_name": file.Name,
	})
	return utils.Success(c, fiber.StatusOK, file)
}

// Access records that the caller opened the file. Grantees may call it.
func (h *FilesHandler) Access(c *fiber.Ctx) error {
	userID, err := principal(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	fileID, err := paramID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	file, err := h.Files.Touch(c.UserContext(), userID, fileID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, file)
}
