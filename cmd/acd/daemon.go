package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PabloLION/agent-console-dashboard/internal/client"
	"github.com/PabloLION/agent-console-dashboard/internal/config"
	"github.com/PabloLION/agent-console-dashboard/internal/logging"
	"github.com/PabloLION/agent-console-dashboard/internal/rpcserver"
	"github.com/PabloLION/agent-console-dashboard/internal/store"
)

var detachFlag bool

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: groupSession,
	Short:   "Manage the session daemon process",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon, binding its Unix socket",
	RunE: func(cmd *cobra.Command, args []string) error {
		if detachFlag {
			return spawnDetachedDaemon()
		}
		return runDaemonForeground()
	},
}

func init() {
	daemonStartCmd.Flags().BoolVar(&detachFlag, "detach", false, "fork and detach from the controlling terminal before starting")
	daemonCmd.AddCommand(daemonStartCmd)
	rootCmd.AddCommand(daemonCmd)
}

// spawnDetachedDaemon re-execs the current binary as `daemon start`
// without --detach, under a detached SysProcAttr, and returns immediately
// without waiting — the same detachment idiom internal/client uses for
// the connector's auto-start path.
func spawnDetachedDaemon() error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	cmd := exec.Command(exePath, "daemon", "start", "--socket", socketPath)
	cmd.SysProcAttr = client.DetachedSysProcAttr()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn detached daemon: %w", err)
	}
	fmt.Printf("daemon started (pid %d), socket %s\n", cmd.Process.Pid, socketPath)
	return nil
}

func runDaemonForeground() error {
	cfg, err := config.Load(resolvedConfigPath())
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Daemon.SocketPath = socketPath
	}

	level := slog.LevelInfo
	switch cfg.Daemon.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	log := logging.New(level)

	sessions := store.NewWithMaxClosed(cfg.Daemon.MaxClosedSessions)
	usage := store.NewUsageSlot()

	srv := rpcserver.New(cfg.Daemon.SocketPath, sessions, usage, log)
	srv.SetIdleTimeout(time.Duration(cfg.Daemon.IdleTimeoutMin) * time.Minute)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	log.Info("daemon listening", "socket", cfg.Daemon.SocketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	return srv.Run(rootCtx, sigCh)
}

