package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gurkanbulca/taskboard/internal/apperror"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Timestamp time.Time         `json:"timestamp"`
	Status    int               `json:"status"`
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Exception string            `json:"exception,omitempty"`
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindForbidden:
		return fiber.StatusForbidden
	case apperror.KindValidation, apperror.KindBadRequest:
		return fiber.StatusBadRequest
	case apperror.KindAuthentication:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler maps errors returned by handlers to status codes and a JSON error body
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		resp := ErrorResponse{
			Timestamp: time.Now().UTC(),
			Status:    statusOf(err),
		}

		var appErr *apperror.Error
		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			resp.Error = httpReason(fe.Code)
			resp.Message = fe.Message
		case errors.As(err, &appErr):
			resp.Message = appErr.Message
			resp.Errors = appErr.Fields
			switch appErr.Kind {
			case apperror.KindNotFound:
				resp.Error = "Not Found"
			case apperror.KindForbidden:
				resp.Error = "Forbidden"
			case apperror.KindValidation:
				resp.Error = "Validation Failed"
			case apperror.KindBadRequest:
				resp.Error = "Bad Request"
			case apperror.KindAuthentication:
				resp.Error = "Authentication Failed"
			default:
				resp.Error = "Internal Server Error"
			}
		default:
			resp.Error = "Internal Server Error"
			resp.Message = "an unexpected error occurred"
			resp.Exception = fmt.Sprintf("%T", err)
			logger.Error("unhandled error",
				"method", c.Method(), "path", c.Path(), "error", err,
				"request_id", GetRequestIDFromContext(c.UserContext()))
		}

		return c.Status(resp.Status).JSON(resp)
	}
}

func httpReason(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusUnauthorized:
		return "Unauthorized"
	case fiber.StatusForbidden:
		return "Forbidden"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case fiber.StatusUpgradeRequired:
		return "Upgrade Required"
	case fiber.StatusTooManyRequests:
		return "Too Many Requests"
	default:
		return fiber.ErrInternalServerError.Message
	}
}
