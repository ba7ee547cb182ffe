package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReturnsUsableLogger(t *testing.T) {
	logger := New(slog.LevelInfo)
	require.NotNil(t, logger)
	assert.NotPanics(t, func() {
		logger.Info("daemon starting", "socket", "/tmp/acd.sock")
	})
}

func TestStartSpanEndWithNilErrorDoesNotPanic(t *testing.T) {
	ctx, end := StartSpan(context.Background(), "rpcserver.handle_connection")
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() { end(nil) })
}

func TestStartSpanEndWithErrorDoesNotPanic(t *testing.T) {
	ctx, end := StartSpan(context.Background(), "rpcserver.handle_connection")
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() { end(errors.New("boom")) })
}
