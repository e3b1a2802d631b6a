package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/realtime"
	"github.com/spec-kit/support-chat/internal/service"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

const principalLocal = "ws_principal"

// clientFrame is an inbound control frame from a websocket client.
type clientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

// SocketHandler upgrades authenticated clients and bridges their frames to
// the fan-out bus. Clients join conversations explicitly; the server never
// auto-subscribes anyone.
type SocketHandler struct {
	chats  *service.ChatService
	bus    *realtime.Bus
	authmw *auth.AuthMiddleware
	logger *zap.Logger
}

// NewSocketHandler constructs handler.
func NewSocketHandler(chatService *service.ChatService, bus *realtime.Bus, authmw *auth.AuthMiddleware, logger *zap.Logger) *SocketHandler {
	return &SocketHandler{chats: chatService, bus: bus, authmw: authmw, logger: logger}
}

// Upgrade authenticates the handshake before the protocol switch. The token
// arrives either as a query parameter or a bearer header.
func (h *SocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		header := c.Get(fiber.HeaderAuthorization)
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = parts[1]
		}
	}
	if token == "" {
		return apperrors.NewUnauthorized("missing token")
	}

	principal, err := h.authmw.Resolve(c.UserContext(), token)
	if err != nil {
		return err
	}
	c.Locals(principalLocal, principal)
	return c.Next()
}

// Serve is the upgraded websocket loop for one client.
func (h *SocketHandler) Serve() fiber.Handler {
	return websocket.New(func(ws *websocket.Conn) {
		principal, ok := ws.Locals(principalLocal).(*auth.Principal)
		if !ok {
			_ = ws.Close()
			return
		}

		conn := realtime.NewConnection(principal.User.ID, ws)
		conn.Start()
		defer func() {
			h.bus.Disconnect(conn)
			conn.Close(websocket.CloseNormalClosure, "bye")
		}()

		h.logger.Info("websocket connected",
			zap.String("connection_id", conn.ID()),
			zap.String("user_id", principal.User.ID))
		h.sendAck(conn, "connected", "")

		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var frame clientFrame
			if err := json.Unmarshal(raw, &frame); err != nil {
				h.sendError(conn, "malformed frame")
				continue
			}
			h.handleFrame(conn, principal, frame)
		}
	})
}

func (h *SocketHandler) handleFrame(conn *realtime.Connection, principal *auth.Principal, frame clientFrame) {
	if frame.ConversationID == "" {
		h.sendError(conn, "conversationId is required")
		return
	}

	switch frame.Type {
	case "join":
		// Access is checked once at join; later revocations only apply to
		// new joins.
		ctx, cancel := frameContext()
		_, err := h.chats.AccessibleConversation(ctx, principal, frame.ConversationID)
		cancel()
		if err != nil {
			h.sendError(conn, "cannot join conversation")
			return
		}
		h.bus.Subscribe(conn, frame.ConversationID)
		h.sendAck(conn, "joined", frame.ConversationID)

	case "leave":
		h.bus.Unsubscribe(conn, frame.ConversationID)
		h.sendAck(conn, "left", frame.ConversationID)

	case "typing":
		// Typing piggybacks on the join-time access check: only members of
		// the room may signal into it.
		if !h.bus.Subscribed(conn, frame.ConversationID) {
			h.sendError(conn, "not joined to conversation")
			return
		}
		payload, err := realtime.TypingEvent(frame.ConversationID, principal.User.ID)
		if err != nil {
			return
		}
		h.bus.Publish(frame.ConversationID, payload, principal.User.ID)

	default:
		h.sendError(conn, "unknown frame type")
	}
}

func (h *SocketHandler) sendAck(conn *realtime.Connection, ackType, conversationID string) {
	ack := map[string]string{"type": ackType}
	if conversationID != "" {
		ack["conversationId"] = conversationID
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}

func frameContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (h *SocketHandler) sendError(conn *realtime.Connection, message string) {
	payload, err := json.Marshal(map[string]string{"type": "error", "message": message})
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}
