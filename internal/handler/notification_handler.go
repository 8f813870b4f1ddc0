package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gurkanbulca/taskboard/internal/middleware"
)

// ListNotifications lists the caller's and broadcast notifications, newest first
func (h *Handler) ListNotifications(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}

	notifications, err := h.deps.Notifications.List(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(notifications)
}

func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	notification, err := h.deps.Notifications.MarkRead(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return c.JSON(notification)
}
