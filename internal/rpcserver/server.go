// Package rpcserver implements the Unix-socket IPC server: socket
// lifecycle, the accept loop, graceful shutdown fan-out, and the
// per-connection request/response and subscribe state machine.
package rpcserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PabloLION/agent-console-dashboard/internal/daemonerr"
	"github.com/PabloLION/agent-console-dashboard/internal/store"
)

// DefaultIdleTimeout is the duration of daemon-wide inactivity (no
// non-inactive sessions) after which the idle-timeout task fires a
// shutdown.
const DefaultIdleTimeout = 60 * time.Minute

// idleCheckInterval is how often the idle-timeout task polls HasActive.
const idleCheckInterval = 30 * time.Second

// Server is the Unix-socket IPC server: socket bind/stale-cleanup/accept
// loop, a process-wide shutdown fan-out, and an active-connection counter.
// It is not itself reference-counted; one Server per daemon process.
type Server struct {
	socketPath  string
	store       *store.SessionStore
	usage       *store.UsageSlot
	startTime   time.Time
	idleTimeout time.Duration
	log         *slog.Logger

	mu       sync.Mutex
	listener net.Listener

	activeConns int32

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// New constructs a Server bound to the given socket path, store, and usage
// slot. Start must be called before Run.
func New(socketPath string, sessions *store.SessionStore, usage *store.UsageSlot, log *slog.Logger) *Server {
	return &Server{
		socketPath:  socketPath,
		store:       sessions,
		usage:       usage,
		startTime:   time.Now(),
		idleTimeout: DefaultIdleTimeout,
		log:         log,
		shutdownCh:  make(chan struct{}),
	}
}

// SetIdleTimeout overrides DefaultIdleTimeout; zero disables the idle
// shutdown task entirely.
func (s *Server) SetIdleTimeout(d time.Duration) {
	s.idleTimeout = d
}

// ActiveConnections returns the current count of accepted, not-yet-closed
// connections.
func (s *Server) ActiveConnections() int32 {
	return atomic.LoadInt32(&s.activeConns)
}

// SocketPath returns the configured socket path.
func (s *Server) SocketPath() string { return s.socketPath }

// StartTime returns the daemon's construction time, used for uptime
// reporting.
func (s *Server) StartTime() time.Time { return s.startTime }

// Shutdown fires the shutdown fan-out exactly once; safe to call
// concurrently and repeatedly. Sources: OS signals, the idle timer, and
// the STOP command handler.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Start probes for a stale socket, binds, and tightens permissions. It
// must complete before Run is called.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("ensure socket directory: %w", err)
	}

	if err := s.removeStaleSocket(); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("bind socket %s: %w", s.socketPath, err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(s.socketPath, 0o600); err != nil {
			s.log.Warn("failed to tighten socket permissions", "path", s.socketPath, "error", err)
		}
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

// removeStaleSocket implements the probe-then-unlink lifecycle step: a
// live daemon at this path fails startup with address-in-use; a crash
// residue is removed.
func (s *Server) removeStaleSocket() error {
	if _, err := os.Stat(s.socketPath); err != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %s", daemonerr.ErrAddressInUse, s.socketPath)
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}

// Run coordinates the accept loop, the idle-timeout task, and OS signal
// handling via an errgroup: any one of them returning ends the others
// through shared shutdown-channel cancellation, and the first error (if
// any) propagates to the caller. Run blocks until shutdown.
func (s *Server) Run(ctx context.Context, signals <-chan os.Signal) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-signals:
			s.log.Info("shutdown signal received")
			s.Shutdown()
		case <-s.shutdownCh:
		case <-ctx.Done():
		}
		return nil
	})

	if s.idleTimeout > 0 {
		g.Go(func() error { return s.runIdleTimer(ctx) })
	}

	g.Go(func() error { return s.acceptLoop(ctx) })

	err := g.Wait()
	s.cleanupSocket()
	return err
}

func (s *Server) runIdleTimer(ctx context.Context) error {
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// A daemon that has never seen a SET is not "idle" until
			// idleTimeout has actually elapsed since it started; an empty
			// session map must not be mistaken for a timed-out one on the
			// very first tick.
			neverSeeded := s.store.Count() == 0 && time.Since(s.startTime) < s.idleTimeout
			if !neverSeeded && !s.store.HasActive(s.idleTimeout) {
				s.log.Info("idle timeout reached, shutting down", "idle_timeout", s.idleTimeout)
				s.Shutdown()
				return nil
			}
		case <-s.shutdownCh:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return fmt.Errorf("rpcserver: Start must be called before Run")
	}

	go func() {
		select {
		case <-s.shutdownCh:
			_ = listener.Close()
		case <-ctx.Done():
			_ = listener.Close()
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
				return nil
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error("accept error", "error", err)
			continue
		}

		atomic.AddInt32(&s.activeConns, 1)
		s.log.Debug("accepted connection", "active_connections", s.ActiveConnections())
		go func() {
			defer atomic.AddInt32(&s.activeConns, -1)
			h := &connHandler{server: s, conn: conn}
			h.run(ctx)
		}()
	}
}

func (s *Server) cleanupSocket() {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		_ = listener.Close()
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove socket file on shutdown", "path", s.socketPath, "error", err)
	}
}
