package handlers

import (
	"encoding/json"
	"strings"

	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/validation"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// principal returns the authenticated user id. Routes that call it sit
// behind RequireAuth, so a miss is reported as unauthorized.
func principal(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		return uuid.Nil, utils.ErrUnauthorized
	}
	return id, nil
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	return validation.ID(name, c.Params(name))
}

// parseBody decodes a JSON body. Unknown shapes are reported as an invalid
// body rather than a field error.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return utils.ErrInvalidBody.Wrap(err)
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}

func audit(c *fiber.Ctx, svc *services.AuditService, userID uuid.UUID, action, resourceType string, resourceID *uuid.UUID, details map[string]interface{}) {
	if svc == nil {
		return
	}
	svc.LogAsync(services.AuditEntry{
		UserID:       &userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    c.IP(),
		RequestID:    logger.GetRequestIDFromContext(c),
	})
}
