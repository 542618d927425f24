package serverutils

import (
	"errors"

	"ai-tutoring-be/internal/pkg/apperr"
	"ai-tutoring-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler maps service errors onto HTTP statuses. Ownership
// mismatches surface as 404, same as a missing session, so session ids
// cannot be probed across owners.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		code := fiber.StatusInternalServerError
		switch apperr.KindOf(err) {
		case apperr.KindValidation:
			code = fiber.StatusBadRequest
		case apperr.KindNotFound, apperr.KindForbidden:
			code = fiber.StatusNotFound
		case apperr.KindConflict:
			code = fiber.StatusConflict
		case apperr.KindInvalidState:
			code = fiber.StatusUnprocessableEntity
		}

		if code == fiber.StatusInternalServerError {
			log.Error("http", "unhandled error", map[string]interface{}{
				"path":  ctx.Path(),
				"error": err.Error(),
			})
			return ctx.Status(code).JSON(ErrorResponse(code, "internal server error"))
		}

		return ctx.Status(code).JSON(ErrorResponse(code, apperr.UserMessage(err)))
	}
}
