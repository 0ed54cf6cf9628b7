package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabboard-backend/internal/model"
	"collabboard-backend/internal/store"
)

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := &model.User{ID: "u1", Username: "alice"}

	token, err := m.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("other-secret", time.Hour)
		_, err := other.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewJWTManager("test-secret", time.Minute)
		expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
		old, err := expired.GenerateAccessToken(user)
		require.NoError(t, err)

		_, err = m.ValidateAccessToken(old)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ValidateAccessToken("not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

type failingUsers struct {
	store.UserStore
}

func (failingUsers) GetUser(ctx context.Context, id string) (*model.User, error) {
	return nil, errors.New("connection refused")
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryStore()
	user := &model.User{Username: "bob", Color: "#123456"}
	require.NoError(t, users.CreateUser(ctx, user))

	jwtManager := NewJWTManager("secret", time.Hour)
	resolver := NewResolver(jwtManager, users, zerolog.Nop())

	valid, err := jwtManager.GenerateAccessToken(user)
	require.NoError(t, err)

	t.Run("valid token uses stored identity", func(t *testing.T) {
		id := resolver.Resolve(ctx, "conn-1", Claim{Token: valid, Name: "ignored", Color: "#000"})
		assert.Equal(t, Identity{UserID: user.ID, Name: "bob", Color: "#123456"}, id)
		assert.True(t, id.Authenticated())
	})

	t.Run("invalid token falls back to claimed guest", func(t *testing.T) {
		id := resolver.Resolve(ctx, "conn-1", Claim{Token: "bogus", Name: "Carol", Color: "#abcdef"})
		assert.Equal(t, Identity{Name: "Carol", Color: "#abcdef"}, id)
		assert.False(t, id.Authenticated())
	})

	t.Run("unknown user falls back", func(t *testing.T) {
		ghost, err := jwtManager.GenerateAccessToken(&model.User{ID: "missing"})
		require.NoError(t, err)
		id := resolver.Resolve(ctx, "conn-1", Claim{Token: ghost, Name: "Dan"})
		assert.Equal(t, "Dan", id.Name)
		assert.Empty(t, id.UserID)
	})

	t.Run("store failure falls back", func(t *testing.T) {
		r := NewResolver(jwtManager, failingUsers{}, zerolog.Nop())
		id := r.Resolve(ctx, "conn-1", Claim{Token: valid, Name: "Eve", Color: "#111"})
		assert.Equal(t, Identity{Name: "Eve", Color: "#111"}, id)
	})

	t.Run("guest defaults", func(t *testing.T) {
		id := resolver.Resolve(ctx, "conn-7", Claim{})
		assert.Equal(t, defaultGuestName, id.Name)
		assert.Contains(t, guestColors, id.Color)
		assert.Equal(t, id, resolver.Resolve(ctx, "conn-7", Claim{Name: "  "}))
	})
}

func TestAuthMiddleware(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	app := fiber.New()
	app.Get("/me", AuthMiddleware(m), func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(claims.UserID)
	})

	token, err := m.GenerateAccessToken(&model.User{ID: "u42"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"bad format", "Token " + token, fiber.StatusUnauthorized},
		{"invalid", "Bearer nope", fiber.StatusUnauthorized},
		{"ok", "Bearer " + token, fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
