package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"collabboard-backend/internal/collab"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 500
)

// MessageHandler 채팅 기록 핸들러
type MessageHandler struct {
	engine *collab.Engine
	log    zerolog.Logger
}

// NewMessageHandler MessageHandler 생성
func NewMessageHandler(engine *collab.Engine, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{engine: engine, log: log}
}

// GetMessages 보드의 최근 메시지 (오래된 순)
func (h *MessageHandler) GetMessages(c *fiber.Ctx) error {
	boardID := c.Params("boardId")

	limit := c.QueryInt("limit", defaultMessageLimit)
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	messages, err := h.engine.FetchHistory(c.UserContext(), boardID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("boardId", boardID).Msg("failed to fetch messages")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch messages",
		})
	}
	return c.JSON(messages)
}
