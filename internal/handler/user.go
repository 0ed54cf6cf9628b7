package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"collabboard-backend/internal/auth"
	"collabboard-backend/internal/store"
)

// UserHandler 유저 핸들러
type UserHandler struct {
	users store.UserStore
}

// NewUserHandler UserHandler 생성
func NewUserHandler(users store.UserStore) *UserHandler {
	return &UserHandler{users: users}
}

// ProfileResponse 내 프로필 응답
type ProfileResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// GetMe 토큰 주인의 프로필
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	user, err := h.users.GetUser(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch user",
		})
	}

	return c.JSON(ProfileResponse{
		UserID:   user.ID,
		Username: user.Username,
		Color:    user.Color,
	})
}
