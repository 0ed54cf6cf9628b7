package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabboard-backend/internal/store"
)

func TestFindOrCreateUser(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	created, err := findOrCreateUser(ctx, st, "zoe", " #0f0 ")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "#0f0", created.Color)

	again, err := findOrCreateUser(ctx, st, "ZOE", "#fff")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "#0f0", again.Color)
}
