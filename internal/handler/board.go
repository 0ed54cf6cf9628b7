package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"collabboard-backend/internal/collab"
	"collabboard-backend/internal/model"
	"collabboard-backend/internal/store"
)

// BoardHandler 보드 REST 핸들러
type BoardHandler struct {
	boards store.BoardStore
	engine *collab.Engine
	log    zerolog.Logger
}

// NewBoardHandler BoardHandler 생성
func NewBoardHandler(boards store.BoardStore, engine *collab.Engine, log zerolog.Logger) *BoardHandler {
	return &BoardHandler{boards: boards, engine: engine, log: log}
}

// BoardSummary 목록용 보드 요약
type BoardSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ElementCount int       `json:"elementCount"`
	ActiveUsers  int       `json:"activeUsers"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateBoardRequest 보드 생성 요청
type CreateBoardRequest struct {
	Name     string          `json:"name"`
	Elements []model.Element `json:"elements,omitempty"`
}

// ListBoards 보드 목록 (현재 접속자 수 포함)
func (h *BoardHandler) ListBoards(c *fiber.Ctx) error {
	boards, err := h.boards.ListBoards(c.UserContext())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list boards")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch boards",
		})
	}

	summaries := make([]BoardSummary, len(boards))
	for i, b := range boards {
		summaries[i] = BoardSummary{
			ID:           b.ID,
			Name:         b.Name,
			ElementCount: len(b.Elements),
			ActiveUsers:  h.engine.ActiveCount(b.ID),
			CreatedAt:    b.CreatedAt,
			UpdatedAt:    b.UpdatedAt,
		}
	}
	return c.JSON(summaries)
}

// CreateBoard 보드 생성
func (h *BoardHandler) CreateBoard(c *fiber.Ctx) error {
	var req CreateBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	board := &model.Board{
		Name:     req.Name,
		Elements: collab.Normalize(req.Elements),
	}
	if err := h.boards.CreateBoard(c.UserContext(), board); err != nil {
		return h.storeError(c, err, "failed to create board")
	}

	h.log.Info().Str("boardId", board.ID).Str("name", board.Name).Msg("board created")
	return c.Status(fiber.StatusCreated).JSON(board)
}

// GetBoard 보드 조회
func (h *BoardHandler) GetBoard(c *fiber.Ctx) error {
	board, err := h.boards.GetBoard(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.storeError(c, err, "failed to fetch board")
	}
	return c.JSON(board)
}

// UpdateBoard 이름/요소 배열 통째 저장 (마지막 저장이 이김)
func (h *BoardHandler) UpdateBoard(c *fiber.Ctx) error {
	var patch store.BoardPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	board, err := h.engine.PersistSnapshot(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return h.storeError(c, err, "failed to update board")
	}
	return c.JSON(board)
}

// storeError 저장소 에러 → HTTP 상태
func (h *BoardHandler) storeError(c *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "board not found",
		})
	case errors.Is(err, store.ErrEmptyName):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.log.Error().Err(err).Str("boardId", c.Params("id")).Msg(msg)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}
