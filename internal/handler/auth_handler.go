package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gurkanbulca/taskboard/internal/service"
)

// Register creates a USER account and returns a signed token
func (h *Handler) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := h.validator.Bind(c, &in); err != nil {
		return err
	}

	resp, err := h.deps.Auth.Register(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// Login exchanges credentials for a signed token
func (h *Handler) Login(c *fiber.Ctx) error {
	var in service.LoginInput
	if err := h.validator.Bind(c, &in); err != nil {
		return err
	}

	resp, err := h.deps.Auth.Login(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
