package handler

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/gurkanbulca/taskboard/internal/middleware"
	"github.com/gurkanbulca/taskboard/internal/stomp"
)

// Locals keys copied from the upgrade request into the WebSocket session
const (
	localsClientIP  = "ws_client_ip"
	localsUserAgent = "ws_user_agent"
)

// stompSubprotocols are offered by STOMP clients during the handshake
var stompSubprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// wsConn adapts a WebSocket connection to the STOMP session transport
type wsConn struct {
	conn *websocket.Conn
}

func (w wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w wsConn) WriteMessage(data []byte) error {
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w wsConn) Close() error {
	return w.conn.Close()
}

// upgrade rejects plain HTTP requests to the WebSocket endpoint.
// The handshake itself is open; sessions authenticate with their CONNECT frame.
func (h *Handler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(localsClientIP, c.IP())
	c.Locals(localsUserAgent, c.Get(fiber.HeaderUserAgent))
	return c.Next()
}

// WebSocket returns the handler serving one STOMP session per connection
func (h *Handler) WebSocket() fiber.Handler {
	return websocket.New(h.serveSession, websocket.Config{
		Subprotocols: stompSubprotocols,
	})
}

func (h *Handler) serveSession(c *websocket.Conn) {
	ctx := h.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if ip, ok := c.Locals(localsClientIP).(string); ok && ip != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeyIPAddress, ip)
	}
	if ua, ok := c.Locals(localsUserAgent).(string); ok && ua != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeyUserAgent, ua)
	}

	session := stomp.NewSession(wsConn{conn: c}, h.deps.Gate, h.deps.Broker, stomp.Options{
		QueueSize: h.queueSize,
		Security:  h.deps.Security,
		Logger:    h.deps.Logger,
	})

	h.logger.Debug("websocket opened", "session", session.ID())
	if err := session.Serve(ctx); err != nil {
		h.logger.Info("websocket session ended", "session", session.ID(), "error", err)
		return
	}
	h.logger.Debug("websocket closed", "session", session.ID())
}
