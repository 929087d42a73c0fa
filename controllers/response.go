package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jibzus/bluefleet-sub001/apperror"
	"github.com/jibzus/bluefleet-sub001/logger"
	"github.com/jibzus/bluefleet-sub001/types"
)

// Send writes the standard envelope
func Send(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(types.ApiResponse{
		Message: message,
		Status:  status,
		Data:    data,
	})
}

// Fail maps a service error onto the envelope. Untyped errors are logged and
// reported without detail.
func Fail(c *fiber.Ctx, err error) error {
	status := apperror.HTTPStatus(err)
	if status == fiber.StatusInternalServerError {
		logger.Error(c.Method()+" "+c.Path()+" failed", err)
		return Send(c, status, "Internal server error", nil)
	}
	return Send(c, status, err.Error(), fiber.Map{"kind": apperror.KindOf(err)})
}

// BadRequest reports a body or query that could not be parsed or validated
func BadRequest(c *fiber.Ctx, message string) error {
	return Send(c, fiber.StatusBadRequest, message, fiber.Map{"kind": apperror.KindValidation})
}
