package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gurkanbulca/taskboard/internal/middleware"
)

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.deps.Users.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// CurrentUser returns the authenticated user
func (h *Handler) CurrentUser(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}

	user, err := h.deps.Users.Me(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(user)
}
