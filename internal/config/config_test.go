package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetDuration(t *testing.T) {
	t.Run("plain seconds", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "15")
		assert.Equal(t, 15*time.Second, getDuration("TEST_DURATION", time.Minute))
	})

	t.Run("go duration", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "250ms")
		assert.Equal(t, 250*time.Millisecond, getDuration("TEST_DURATION", time.Minute))
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "soon")
		assert.Equal(t, time.Minute, getDuration("TEST_DURATION", time.Minute))
	})
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("IN_MEMORY_DB", "")
	t.Setenv("PORT", "5050")

	cfg := Load()

	assert.Equal(t, ":5050", cfg.Server.Port)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, fallbackJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 50, cfg.Chat.HistoryLimit)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 54*time.Second, cfg.WebSocket.PingPeriod())
}

func TestLoadInMemoryOverride(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("IN_MEMORY_DB", "true")

	cfg := Load()

	assert.Equal(t, StoreMemory, cfg.Store.Driver)
}

func TestLoadClampsWebSocketSettings(t *testing.T) {
	t.Setenv("WS_PONG_WAIT", "0")
	t.Setenv("WS_SEND_BUFFER", "0")
	t.Setenv("WS_MESSAGE_BURST", "-3")
	t.Setenv("WS_VIOLATION_BURST", "0")

	cfg := Load()

	assert.Positive(t, cfg.WebSocket.PingPeriod())
	assert.Equal(t, defaultPongWait, cfg.WebSocket.PongWait)
	assert.Equal(t, defaultSendBuffer, cfg.WebSocket.SendBuffer)
	assert.Equal(t, defaultMessageBurst, cfg.WebSocket.MessageBurst)
	assert.Equal(t, defaultViolationBurst, cfg.WebSocket.ViolationBurst)
}

func TestSanitizeKeepsValidValues(t *testing.T) {
	in := WebSocketConfig{
		ReadBufferSize:      1,
		WriteBufferSize:     2,
		SendBuffer:          3,
		MaxMessageSize:      4,
		PongWait:            5 * time.Second,
		WriteTimeout:        6 * time.Second,
		MessagesPerSecond:   7,
		MessageBurst:        8,
		ViolationsPerSecond: 9,
		ViolationBurst:      10,
	}
	assert.Equal(t, in, in.Sanitize())

	tiny := WebSocketConfig{PongWait: time.Nanosecond}.Sanitize()
	assert.Positive(t, tiny.PingPeriod())
}
