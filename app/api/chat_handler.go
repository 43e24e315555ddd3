package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"mwanga/app/chat"
	"mwanga/types"
)

type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{
		svc: svc,
	}
}

// HandleChat answers one message. Generation failures still produce a 200 with a friendly reply.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	ans, err := h.svc.Ask(c.UserContext(), id, params.Message)
	if err != nil {
		return mapStoreErr(id, err)
	}

	return c.JSON(&types.ChatResponse{
		Response:   ans.Text,
		Provenance: ans.Provenance.String(),
		Timestamp:  time.Now(),
	})
}
