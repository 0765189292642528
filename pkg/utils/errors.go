package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/filevault/backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a business failure with a stable code and HTTP status.
type APIError struct {
	Message    string
	StatusCode int
	Code       string
	Details    []FieldError
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is matches on code so errors.Is works against the package sentinels.
func (e *APIError) Is(target error) bool {
	var other *APIError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.StatusCode == other.StatusCode
}

func NewAPIError(status int, code, message string) *APIError {
	return &APIError{StatusCode: status, Code: code, Message: message}
}

// Wrap returns a copy carrying the underlying cause.
func (e *APIError) Wrap(err error) *APIError {
	clone := *e
	clone.Err = err
	return &clone
}

func (e *APIError) WithDetails(details []FieldError) *APIError {
	clone := *e
	clone.Details = details
	return &clone
}

var (
	ErrUnauthorized       = NewAPIError(fiber.StatusUnauthorized, "AUTH_001", "Unauthorized access")
	ErrForbidden          = NewAPIError(fiber.StatusForbidden, "AUTH_002", "Forbidden")
	ErrEmailTaken         = NewAPIError(fiber.StatusConflict, "AUTH_001", "User with this email already exists")
	ErrInvalidCredentials = NewAPIError(fiber.StatusUnauthorized, "AUTH_003", "Invalid email or password")
	ErrNotFound           = NewAPIError(fiber.StatusNotFound, "RESOURCE_001", "Resource not found")
	ErrValidation         = NewAPIError(fiber.StatusBadRequest, "VALIDATION_001", "Validation failed")
	ErrInvalidBody        = NewAPIError(fiber.StatusBadRequest, "VALIDATION_001", "Invalid request body")
	ErrUploadIncomplete   = NewAPIError(fiber.StatusBadRequest, "VALIDATION_002", "File and metadata are required")
	ErrStorage            = NewAPIError(fiber.StatusInternalServerError, "STORAGE_001", "Storage operation failed")
	ErrFolderNotFound     = NewAPIError(fiber.StatusNotFound, "FOLDER_001", "Folder not found")
	ErrParentNotFound     = NewAPIError(fiber.StatusNotFound, "FOLDER_002", "Parent folder not found or access denied")
	ErrSelfParent         = NewAPIError(fiber.StatusBadRequest, "FOLDER_003", "Folder cannot be its own parent")
	ErrFolderNotEmpty     = NewAPIError(fiber.StatusBadRequest, "FOLDER_004", "Folder is not empty")
	ErrFolderCycle        = NewAPIError(fiber.StatusBadRequest, "FOLDER_005", "Folder cannot be moved into its own descendant")
	ErrFolderTooDeep      = NewAPIError(fiber.StatusInternalServerError, "FOLDER_006", "Folder hierarchy exceeds maximum depth")
	ErrFolderNotInTrash   = NewAPIError(fiber.StatusNotFound, "FOLDER_007", "Folder not found in trash")
	ErrFileNotFound       = NewAPIError(fiber.StatusNotFound, "FILE_001", "File not found")
	ErrFileNotInTrash     = NewAPIError(fiber.StatusNotFound, "FILE_002", "File not found in trash")
	ErrUserNotFound       = NewAPIError(fiber.StatusNotFound, "USER_001", "User not found")
	ErrShareSelf          = NewAPIError(fiber.StatusBadRequest, "SHARE_001", "Cannot share with yourself")
	ErrShareNotFound      = NewAPIError(fiber.StatusNotFound, "SHARE_001", "Share not found")
	ErrRateLimited        = NewAPIError(fiber.StatusTooManyRequests, "RATE_001", "Too many requests")
	ErrTimeout            = NewAPIError(fiber.StatusGatewayTimeout, "TIMEOUT_001", "Operation timed out")
)

// Fail writes the error envelope for err. Unknown errors are logged and
// reported as a bare 500.
func Fail(c *fiber.Ctx, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= fiber.StatusInternalServerError {
			logFailure(c, err)
		}
		return ErrorWithCode(c, apiErr.StatusCode, apiErr.Code, apiErr.Message, apiErr.Details)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logFailure(c, err)
		return ErrorWithCode(c, ErrTimeout.StatusCode, ErrTimeout.Code, ErrTimeout.Message, nil)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return Error(c, fiberErr.Code, fiberErr.Message)
	}

	logFailure(c, err)
	return Error(c, fiber.StatusInternalServerError, "Internal server error")
}

func logFailure(c *fiber.Ctx, err error) {
	details := map[string]interface{}{
		"method":     c.Method(),
		"path":       c.Path(),
		"request_id": logger.GetRequestIDFromContext(c),
	}
	if userID := logger.GetUserIDFromContext(c); userID != nil {
		logger.ErrorWithUser(*userID, "request_failed", err, details)
		return
	}
	logger.Error("request_failed", err, details)
}

// ErrorHandler is installed as the fiber.Config ErrorHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return Fail(c, err)
}
