package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabboard-backend/internal/auth"
	"collabboard-backend/internal/collab"
	"collabboard-backend/internal/config"
	"collabboard-backend/internal/model"
	"collabboard-backend/internal/presence"
	"collabboard-backend/internal/room"
	"collabboard-backend/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: ":0"},
		WebSocket: config.WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			SendBuffer:      16,
			MaxMessageSize:  1024,
			PongWait:        time.Minute,
			WriteTimeout:    time.Second,
		},
		Store: config.StoreConfig{Driver: config.StoreMemory},
		CORS:  config.CORSConfig{AllowOrigins: "*", AllowHeaders: "Content-Type, Authorization"},
	}

	st := store.NewMemoryStore()
	jwtManager := auth.NewJWTManager("secret", time.Hour)
	resolver := auth.NewResolver(jwtManager, st, zerolog.Nop())
	engine := collab.NewEngine(presence.NewRegistry(), room.NewRouter(), resolver, st, nil, collab.Options{}, zerolog.Nop())

	srv := New(cfg, st, engine, jwtManager, nil, zerolog.Nop())
	srv.SetupMiddleware()
	srv.SetupRoutes()
	return srv
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"liveness", http.MethodGet, "/health/live", "", http.StatusOK},
		{"readiness", http.MethodGet, "/health/ready", "", http.StatusOK},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"api test", http.MethodGet, "/api/test", "", http.StatusOK},
		{"stats", http.MethodGet, "/api/stats", "", http.StatusOK},
		{"list boards", http.MethodGet, "/api/boards", "", http.StatusOK},
		{"create board", http.MethodPost, "/api/boards", `{"name":"Roadmap"}`, http.StatusCreated},
		{"missing board", http.MethodGet, "/api/boards/unknown", "", http.StatusNotFound},
		{"history", http.MethodGet, "/api/boards/unknown/messages", "", http.StatusOK},
		{"me without token", http.MethodGet, "/api/me", "", http.StatusUnauthorized},
		{"profile without token", http.MethodGet, "/api/users/profile", "", http.StatusUnauthorized},
		{"plain http on ws", http.MethodGet, "/ws", "", http.StatusUpgradeRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := srv.App().Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCORSAllowsPatch(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/boards/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestProfileRoutesServeSameUser(t *testing.T) {
	srv := newTestServer(t)
	user := &model.User{Username: "mina", Color: "#123456"}
	require.NoError(t, srv.store.CreateUser(context.Background(), user))
	token, err := srv.jwtManager.GenerateAccessToken(user)
	require.NoError(t, err)

	var bodies []string
	for _, path := range []string{"/api/me", "/api/users/profile"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := srv.App().Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(data))
	}
	assert.JSONEq(t, bodies[0], bodies[1])
	assert.Contains(t, bodies[1], `"username":"mina"`)
}
