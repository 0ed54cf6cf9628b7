package database

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabboard-backend/internal/config"
	"collabboard-backend/internal/store"
)

func TestOpenStoreMemory(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: config.StoreMemory}}

	s, err := OpenStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, s)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "cassandra"}}

	_, err := OpenStore(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "cassandra")
}

func TestGormWriterForwardsToZerolog(t *testing.T) {
	var buf bytes.Buffer
	w := gormWriter{log: zerolog.New(&buf)}

	w.Printf("slow query %dms", 250)

	assert.Contains(t, buf.String(), "slow query 250ms")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
