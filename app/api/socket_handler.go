package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mwanga/app/chat"
	"mwanga/logger"
	"mwanga/types"
)

const socketSessionLocal = "session_uuid"

// SocketHandler serves the real-time chat channel.
type SocketHandler struct {
	svc    *chat.Service
	logger *zap.Logger
}

func NewSocketHandler(svc *chat.Service, l *zap.Logger) *SocketHandler {
	return &SocketHandler{svc: svc, logger: logger.OrNop(l)}
}

// HandleUpgrade checks the session before the connection is upgraded.
func (h *SocketHandler) HandleUpgrade(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if _, _, err := h.svc.Info(c.UserContext(), id); err != nil {
		return mapStoreErr(id, err)
	}
	c.Locals(socketSessionLocal, id)
	return c.Next()
}

// Handler returns the websocket endpoint. Each user_message gets one bot_response;
// malformed frames get an error event and the connection stays open.
func (h *SocketHandler) Handler() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *SocketHandler) serve(conn *websocket.Conn) {
	id, _ := conn.Locals(socketSessionLocal).(uuid.UUID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := h.logger.With(zap.String("session_id", id.String()))
	log.Debug("socket connected")
	defer log.Debug("socket closed")

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("socket read", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			if !h.reply(conn, log, errorEvent("text frames only")) {
				return
			}
			continue
		}

		var msg types.SocketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if !h.reply(conn, log, errorEvent("malformed message")) {
				return
			}
			continue
		}
		if msg.Event != types.EventUserMessage {
			if !h.reply(conn, log, errorEvent("unsupported event "+msg.Event)) {
				return
			}
			continue
		}

		ans, err := h.svc.Ask(ctx, id, msg.Message)
		reply := types.SocketReply{
			Event:      types.EventBotResponse,
			Response:   ans.Text,
			Provenance: ans.Provenance.String(),
		}
		if err != nil {
			reply = errorEvent(socketError(err))
		}
		if !h.reply(conn, log, reply) {
			return
		}
	}
}

func (h *SocketHandler) reply(conn *websocket.Conn, log *zap.Logger, reply types.SocketReply) bool {
	if err := conn.WriteJSON(reply); err != nil {
		log.Warn("socket write", zap.Error(err))
		return false
	}
	return true
}

func errorEvent(msg string) types.SocketReply {
	return types.SocketReply{Event: types.EventError, Error: msg}
}

func socketError(err error) string {
	var apiErr Error
	if errors.As(mapStoreErr(uuid.Nil, err), &apiErr) {
		return "session not found"
	}
	return "internal error"
}
