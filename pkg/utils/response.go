package utils

import "github.com/gofiber/fiber/v2"

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func ErrorWithCode(c *fiber.Ctx, status int, code, message string, details []FieldError) error {
	body := fiber.Map{
		"success": false,
		"error":   message,
	}
	if code != "" {
		body["code"] = code
	}
	if len(details) > 0 {
		body["details"] = details
	}
	return c.Status(status).JSON(body)
}
