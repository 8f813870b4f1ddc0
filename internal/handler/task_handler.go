package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gurkanbulca/taskboard/internal/middleware"
	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/service"
)

// defaultDueMinutes is the look-ahead of GET /api/tasks/due without a minutes query
const defaultDueMinutes = 60

// ListTasks lists active tasks. Query: status, priority, assigneeId, unassigned, q, sort, order, limit, offset.
func (h *Handler) ListTasks(c *fiber.Ctx) error {
	assigneeID, err := uuidQuery(c, "assigneeId")
	if err != nil {
		return err
	}
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		return err
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		return err
	}

	tasks, err := h.deps.Tasks.List(c.UserContext(), service.ListTasksInput{
		Status:     models.TaskStatus(c.Query("status")),
		Priority:   models.Priority(c.Query("priority")),
		AssigneeID: assigneeID,
		Unassigned: c.QueryBool("unassigned", false),
		Search:     c.Query("q"),
		Sort:       c.Query("sort"),
		Order:      c.Query("order"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(tasks)
}

func (h *Handler) GetTask(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	task, err := h.deps.Tasks.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}

	var in service.CreateTaskInput
	if err := h.validator.Bind(c, &in); err != nil {
		return err
	}

	task, err := h.deps.Tasks.Create(c.UserContext(), principal, in)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// UpdateTask replaces a task. Only its creator or assignee may do so.
func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var in service.UpdateTaskInput
	if err := h.validator.Bind(c, &in); err != nil {
		return err
	}

	task, err := h.deps.Tasks.Update(c.UserContext(), principal, id, in)
	if err != nil {
		if isForbidden(err) {
			h.deps.Security.LogAccessDenied(c.UserContext(), principal.Username, "update task "+id.String())
		}
		return err
	}
	return c.JSON(task)
}

// DeleteTask soft-deletes a task. Only its creator may do so.
func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	task, err := h.deps.Tasks.Delete(c.UserContext(), principal, id)
	if err != nil {
		if isForbidden(err) {
			h.deps.Security.LogAccessDenied(c.UserContext(), principal.Username, "delete task "+id.String())
		}
		return err
	}
	return c.JSON(task)
}

// MyTasks lists tasks the caller created or is assigned to
func (h *Handler) MyTasks(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}

	tasks, err := h.deps.Tasks.Mine(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(tasks)
}

// DueTasks lists the caller's tasks due within the next minutes
func (h *Handler) DueTasks(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}
	minutes, err := intQuery(c, "minutes", defaultDueMinutes)
	if err != nil {
		return err
	}

	tasks, err := h.deps.Tasks.DueWithin(c.UserContext(), principal, minutes)
	if err != nil {
		return err
	}
	return c.JSON(tasks)
}

func (h *Handler) TaskStats(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}

	stats, err := h.deps.Tasks.Stats(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
