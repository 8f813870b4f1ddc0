package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gurkanbulca/taskboard/internal/middleware"
	"github.com/gurkanbulca/taskboard/internal/service"
)

// CreateActivity appends an entry to a task's activity log
func (h *Handler) CreateActivity(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}

	var in service.CreateActivityInput
	if err := h.validator.Bind(c, &in); err != nil {
		return err
	}

	activity, err := h.deps.Activities.Create(c.UserContext(), principal, in)
	if err != nil {
		return err
	}
	return c.JSON(activity)
}

func (h *Handler) ListActivities(c *fiber.Ctx) error {
	taskID, err := uuidParam(c, "taskId")
	if err != nil {
		return err
	}

	activities, err := h.deps.Activities.ListByTask(c.UserContext(), taskID)
	if err != nil {
		return err
	}
	return c.JSON(activities)
}
