package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithTimeoutDerivesFromRootCtx(t *testing.T) {
	oldCtx, oldCancel := rootCtx, rootCancel
	defer func() { rootCtx, rootCancel = oldCtx, oldCancel }()

	rootCtx, rootCancel = context.WithCancel(context.Background())
	defer rootCancel()

	ctx, cancel := contextWithTimeout(50 * time.Millisecond)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.True(t, time.Until(deadline) <= 50*time.Millisecond)

	rootCancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
