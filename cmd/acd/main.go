// Command acd is the session-lifecycle daemon's CLI: it starts the
// daemon, queries it, manages the Claude Code hook registry, and manages
// config.toml.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PabloLION/agent-console-dashboard/internal/config"
	"github.com/PabloLION/agent-console-dashboard/internal/debug"
)

var (
	socketPath  string
	configPath  string
	verboseFlag bool
	quietFlag   bool

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

const (
	groupSession = "session"
	groupSetup   = "setup"
)

var rootCmd = &cobra.Command{
	Use:   "acd",
	Short: "acd - session-lifecycle daemon for concurrent AI coding-agent sessions",
	Long: `acd aggregates the lifecycle state of multiple concurrent AI coding-agent
sessions (Claude Code and friends) behind a local Unix-socket daemon, so a
dashboard, a shell prompt, or a hook script can all see the same picture.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)

		if socketPath == "" {
			if cfg, err := config.Load(resolvedConfigPath()); err == nil {
				socketPath = cfg.Daemon.SocketPath
			} else {
				socketPath = config.DefaultSocketPath
			}
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// resolvedConfigPath returns --config if set, else the default
// $XDG_CONFIG_HOME/agent-console-dashboard/config.toml path.
func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return ""
	}
	return path
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupSession, Title: "Session Commands:"},
		&cobra.Group{ID: groupSetup, Title: "Setup & Configuration:"},
	)
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon socket path (default: config.toml's daemon.socket_path)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config.toml path (default: $XDG_CONFIG_HOME/agent-console-dashboard/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress non-essential output")
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
