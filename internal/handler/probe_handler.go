package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gurkanbulca/taskboard/internal/broker"
	"github.com/gurkanbulca/taskboard/internal/stomp"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

type webSocketInfo struct {
	Endpoint      string         `json:"endpoint"`
	Protocol      string         `json:"protocol"`
	Versions      []string       `json:"versions"`
	Destinations  []string       `json:"destinations"`
	Subscriptions map[string]int `json:"subscriptions"`
}

// Public is an unauthenticated connectivity check
func (h *Handler) Public(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":   "public endpoint reachable",
		"timestamp": time.Now().UTC(),
	})
}

// Health reports UP, or DOWN with 503 when the database does not answer
func (h *Handler) Health(c *fiber.Ctx) error {
	if h.deps.Database == nil {
		return c.JSON(healthResponse{Status: "UP"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := h.deps.Database.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(healthResponse{Status: "DOWN", Database: "DOWN"})
	}
	return c.JSON(healthResponse{Status: "UP", Database: "UP"})
}

// WebSocketInfo describes the STOMP endpoint for client discovery
func (h *Handler) WebSocketInfo(c *fiber.Ctx) error {
	info := webSocketInfo{
		Endpoint: "/ws",
		Protocol: "STOMP",
		Versions: stomp.SupportedVersions(),
		Destinations: []string{
			broker.TopicTasks,
			broker.TopicNotifications,
			broker.UserDestination(broker.QueueNotifications),
		},
	}
	if h.deps.Broker != nil {
		topics, queues := h.deps.Broker.Stats()
		info.Subscriptions = map[string]int{"topics": topics, "queues": queues}
	}
	return c.JSON(info)
}
