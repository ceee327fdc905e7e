package handler

import (
	"workflow-agent-be/internal/pkg/logger"
	internalWS "workflow-agent-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ChatStreamHandler upgrades clients onto the per-session event stream.
type ChatStreamHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewChatStreamHandler(hub *internalWS.Hub, log logger.ILogger) *ChatStreamHandler {
	return &ChatStreamHandler{
		hub:    hub,
		logger: log,
	}
}

func (h *ChatStreamHandler) RegisterRoutes(app *fiber.App) {
	ws := app.Group("/ws")

	// Upgrade guard: reject plain HTTP before the websocket handler runs.
	ws.Use("/chat/:session_id", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	ws.Get("/chat/:session_id", websocket.New(func(conn *websocket.Conn) {
		sessionID := conn.Params("session_id")
		if _, err := uuid.Parse(sessionID); err != nil {
			h.logger.Warn("ChatStreamHandler", "Rejecting stream with malformed session id", map[string]interface{}{"session_id": sessionID})
			conn.Close()
			return
		}
		internalWS.ServeWs(h.hub, conn, sessionID)
	}))
}
