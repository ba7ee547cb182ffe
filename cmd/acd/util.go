package main

import (
	"context"
	"time"
)

// hookConnectTimeout bounds claude-hook's connect-or-lazy-start attempt;
// it must stay well under whatever timeout Claude Code itself imposes on
// hook commands.
const hookConnectTimeout = 5 * time.Second

// contextWithTimeout derives a bounded context from the command's
// signal-aware root context, for CLI invocations that must not hang
// forever waiting on a daemon that will never answer.
func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(rootCtx, d)
}
