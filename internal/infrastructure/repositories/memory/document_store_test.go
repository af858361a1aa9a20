package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStore_SaveLoad(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	var out map[string]bool
	found, err := s.Load(ctx, "auth_tokens", &out)
	require.NoError(t, err)
	assert.False(t, found)

	in := map[string]bool{"abc": true}
	require.NoError(t, s.Save(ctx, "auth_tokens", in))
	in["def"] = true // later mutation must not leak into the store

	found, err = s.Load(ctx, "auth_tokens", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]bool{"abc": true}, out)
	assert.NoError(t, s.Ping(ctx))
}
