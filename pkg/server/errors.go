package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
)

// errorHandler maps errors to status codes once, at the transport boundary.
// Server-side failures are logged with the cause; the response only
// carries the public message.
func errorHandler(logger Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(errorResponse{Error: fiberErr.Message})
		}

		status := apperr.HTTPStatus(err)
		fields := map[string]interface{}{"status": status, "path": c.Path()}
		if status >= fiber.StatusInternalServerError {
			logger.ErrorWithContext(c.UserContext(), "request failed", err, fields)
		} else {
			logger.WarnWithContext(c.UserContext(), "request rejected", err, fields)
		}

		return c.Status(status).JSON(errorResponse{Error: apperr.PublicMessage(err)})
	}
}
