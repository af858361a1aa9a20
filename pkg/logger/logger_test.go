package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "console")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l, err = New("WARN", "json")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))

	_, err = New("loud", "json")
	assert.Error(t, err)
}

func TestContextLogger_AttachesSessionFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := WithRemoteAddr(WithSessionID(context.Background(), "sess-1"), "10.0.0.2:5000")
	cl.LogInfo(ctx, "session authenticated")
	cl.LogError(context.Background(), errors.New("boom"), "apply failed")

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0].ContextMap()
	assert.Equal(t, "sess-1", first["session_id"])
	assert.Equal(t, "10.0.0.2:5000", first["remote_addr"])

	second := logs.All()[1].ContextMap()
	assert.NotContains(t, second, "session_id")
	assert.Equal(t, "boom", second["error"])
}

func TestSessionIDFrom(t *testing.T) {
	assert.Equal(t, "", SessionIDFrom(context.Background()))
	assert.Equal(t, "abc", SessionIDFrom(WithSessionID(context.Background(), "abc")))
}
