package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/apperror"
)

// messageResponse is the body of operations that return no entity
type messageResponse struct {
	Message string `json:"message"`
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.BadRequest("invalid %s: %q", name, c.Params(name))
	}
	return id, nil
}

func uuidQuery(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.BadRequest("invalid %s: %q", name, raw)
	}
	return &id, nil
}

func intQuery(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.BadRequest("invalid %s: %q", name, raw)
	}
	return n, nil
}

func isForbidden(err error) bool {
	return apperror.Is(err, apperror.KindForbidden)
}
