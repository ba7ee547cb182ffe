// Package client implements the connector side of the daemon's Unix
// socket: connect, classify the failure, and if nothing is listening,
// spawn a detached daemon and retry on a fixed backoff schedule before
// giving up.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/PabloLION/agent-console-dashboard/internal/daemonerr"
)

// maxAutoStartAttempts bounds the connect-retry loop after spawning a
// detached daemon: the loop tries exactly this many times before giving
// up with ErrDaemonStartFailed.
const maxAutoStartAttempts = 10

// fixedScheduleBackOff implements backoff.BackOff with the connector's
// fixed retry schedule: min(10*2^i, 500) ms, capped at maxAutoStartAttempts
// attempts by the caller via backoff.WithMaxRetries.
type fixedScheduleBackOff struct {
	attempt int
}

func (b *fixedScheduleBackOff) NextBackOff() time.Duration {
	delay := 10 * (1 << b.attempt)
	if delay > 500 {
		delay = 500
	}
	b.attempt++
	return time.Duration(delay) * time.Millisecond
}

func (b *fixedScheduleBackOff) Reset() { b.attempt = 0 }

// Connector dials the daemon's Unix socket, optionally auto-starting the
// daemon process when nothing is listening.
type Connector struct {
	SocketPath string
	Executable string // path to the daemon binary; defaults to os.Executable()
	Log        *slog.Logger
}

// NewConnector builds a Connector for the given socket path, defaulting
// Executable to the currently running binary.
func NewConnector(socketPath string, log *slog.Logger) *Connector {
	return &Connector{SocketPath: socketPath, Log: log}
}

func (c *Connector) executablePath() (string, error) {
	if c.Executable != "" {
		return c.Executable, nil
	}
	return os.Executable()
}

// Connect dials the socket once and classifies any failure without
// attempting recovery. Callers that want auto-start use
// ConnectWithAutoStart or ConnectWithLazyStart instead.
func (c *Connector) Connect(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.SocketPath)
	if err != nil {
		return nil, classifyConnectError(err)
	}
	return conn, nil
}

// classifyConnectError maps a raw dial error onto the daemon's closed
// error-kind set: ECONNREFUSED and "no such file" are recoverable by
// auto-start, everything else (permission denied, is-a-directory, ...)
// is not.
func classifyConnectError(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", daemonerr.ErrConnectionRefused, err)
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ENOENT:
			return fmt.Errorf("%w: %s", daemonerr.ErrConnectionRefused, err)
		}
	}
	return fmt.Errorf("%w: %s", daemonerr.ErrNonRecoverableConnect, err)
}

// ConnectWithAutoStart dials the socket; on a recoverable connection
// failure it spawns a detached daemon and retries on the fixed
// min(10*2^i, 500) ms schedule for up to maxAutoStartAttempts attempts,
// returning *daemonerr.DaemonStartFailedError if the daemon never comes
// up. A non-recoverable error is returned immediately without spawning.
func (c *Connector) ConnectWithAutoStart(ctx context.Context) (net.Conn, error) {
	conn, err := c.Connect(ctx)
	if err == nil {
		return conn, nil
	}
	if !errors.Is(err, daemonerr.ErrConnectionRefused) {
		return nil, err
	}

	if spawnErr := c.spawnDetached(); spawnErr != nil {
		return nil, spawnErr
	}

	return c.retryConnect(ctx)
}

// ConnectWithLazyStart behaves like ConnectWithAutoStart, and additionally
// logs a non-recoverable connect error or a spawn failure to c.Log (when
// set) before returning it. Callers decide whether the error is fatal.
func (c *Connector) ConnectWithLazyStart(ctx context.Context) (net.Conn, error) {
	conn, err := c.Connect(ctx)
	if err == nil {
		return conn, nil
	}
	if !errors.Is(err, daemonerr.ErrConnectionRefused) {
		if c.Log != nil {
			c.Log.Debug("lazy connect: non-recoverable error, skipping auto-start", "error", err)
		}
		return nil, err
	}

	if spawnErr := c.spawnDetached(); spawnErr != nil {
		if c.Log != nil {
			c.Log.Warn("lazy connect: failed to spawn daemon", "error", spawnErr)
		}
		return nil, spawnErr
	}

	return c.retryConnect(ctx)
}

func (c *Connector) spawnDetached() error {
	exePath, err := c.executablePath()
	if err != nil {
		return fmt.Errorf("%w: %s", daemonerr.ErrExecutableNotFound, err)
	}

	cmd := exec.Command(exePath, "daemon", "start", "--detach", "--socket", c.SocketPath)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = detachedSysProcAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s", daemonerr.ErrSpawnFailed, err)
	}
	// The spawned daemon is independent of this process from here on;
	// reaping its exit status is its own concern (it detaches into its
	// own session), so we deliberately don't Wait on it.
	return nil
}

// retryConnect implements the fixed min(10*2^i, 500) ms / 10-attempt
// connect-retry loop, returning the last observed connect error wrapped
// in DaemonStartFailedError if every attempt fails.
func (c *Connector) retryConnect(ctx context.Context) (net.Conn, error) {
	var lastErr error
	var established net.Conn
	attempts := 0

	bo := backoff.WithMaxRetries(&fixedScheduleBackOff{}, maxAutoStartAttempts-1)
	bo = backoff.WithContext(bo, ctx)

	operation := func() error {
		attempts++
		conn, err := c.Connect(ctx)
		if err != nil {
			lastErr = err
			return err
		}
		lastErr = nil
		established = conn
		return nil
	}

	if err := backoff.Retry(operation, bo); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, &daemonerr.DaemonStartFailedError{Attempts: attempts, LastCause: lastErr}
	}

	return established, nil
}
