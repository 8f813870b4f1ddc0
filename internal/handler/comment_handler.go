package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gurkanbulca/taskboard/internal/middleware"
	"github.com/gurkanbulca/taskboard/internal/service"
)

func (h *Handler) CreateComment(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}

	var in service.CreateCommentInput
	if err := h.validator.Bind(c, &in); err != nil {
		return err
	}

	comment, err := h.deps.Comments.Create(c.UserContext(), principal, in)
	if err != nil {
		return err
	}
	return c.JSON(comment)
}

// ListComments lists the comments of a task, oldest first
func (h *Handler) ListComments(c *fiber.Ctx) error {
	taskID, err := uuidParam(c, "taskId")
	if err != nil {
		return err
	}

	comments, err := h.deps.Comments.ListByTask(c.UserContext(), taskID)
	if err != nil {
		return err
	}
	return c.JSON(comments)
}

// UpdateComment edits a comment. Only its author may do so.
func (h *Handler) UpdateComment(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var in service.UpdateCommentInput
	if err := h.validator.Bind(c, &in); err != nil {
		return err
	}

	comment, err := h.deps.Comments.Update(c.UserContext(), principal, id, in)
	if err != nil {
		if isForbidden(err) {
			h.deps.Security.LogAccessDenied(c.UserContext(), principal.Username, "update comment "+id.String())
		}
		return err
	}
	return c.JSON(comment)
}

// DeleteComment removes a comment. Its author or an ADMIN may do so.
func (h *Handler) DeleteComment(c *fiber.Ctx) error {
	principal, err := middleware.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.deps.Comments.Delete(c.UserContext(), principal, id); err != nil {
		if isForbidden(err) {
			h.deps.Security.LogAccessDenied(c.UserContext(), principal.Username, "delete comment "+id.String())
		}
		return err
	}
	return c.JSON(messageResponse{Message: "comment deleted"})
}
