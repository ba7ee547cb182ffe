package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PabloLION/agent-console-dashboard/internal/hooks"
)

const hookAgentName = "acd"

var (
	installEvent   string
	installMatcher string
	installTimeout int
	installAsync   bool

	uninstallEvent string
)

var installCmd = &cobra.Command{
	Use:     "install <command>",
	GroupID: groupSetup,
	Short:   "Register a Claude Code hook command in settings.json",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := hookPaths()
		if err != nil {
			return err
		}
		handler := hooks.Handler{
			Type:    "command",
			Command: args[0],
			Timeout: installTimeout,
			Async:   installAsync,
		}
		if err := hooks.Install(paths, installEvent, handler, installMatcher, "acd install", hookAgentName); err != nil {
			return err
		}
		fmt.Printf("installed %s hook for event %s\n", args[0], installEvent)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <command>",
	GroupID: groupSetup,
	Short:   "Remove a previously installed Claude Code hook command",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := hookPaths()
		if err != nil {
			return err
		}
		if err := hooks.Uninstall(paths, uninstallEvent, args[0], hookAgentName); err != nil {
			return err
		}
		fmt.Printf("uninstalled %s hook for event %s\n", args[0], uninstallEvent)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: groupSetup,
	Short:   "List every hook handler present in settings.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := hookPaths()
		if err != nil {
			return err
		}
		listed, err := hooks.List(paths, hookAgentName)
		if err != nil {
			return err
		}
		if len(listed) == 0 {
			fmt.Println("no hooks installed")
			return nil
		}
		for _, l := range listed {
			managed := "unmanaged"
			if l.Managed {
				managed = "managed"
			}
			matcher := l.Matcher
			if matcher == "" {
				matcher = "*"
			}
			fmt.Printf("%-20s %-10s %-10s %s\n", l.Event, matcher, managed, l.Handler.Command)
		}
		return nil
	},
}

func init() {
	installCmd.Flags().StringVar(&installEvent, "event", "Stop", "Claude Code lifecycle event to hook")
	installCmd.Flags().StringVar(&installMatcher, "matcher", "", "tool/event matcher, empty matches all")
	installCmd.Flags().IntVar(&installTimeout, "timeout", 0, "advisory timeout in seconds passed through to the agent")
	installCmd.Flags().BoolVar(&installAsync, "async", false, "mark the hook as asynchronous")

	uninstallCmd.Flags().StringVar(&uninstallEvent, "event", "Stop", "Claude Code lifecycle event the hook was registered under")

	rootCmd.AddCommand(installCmd, uninstallCmd, listCmd)
}

func hookPaths() (hooks.Paths, error) {
	defaults, err := hooks.DefaultPaths()
	if err != nil {
		return hooks.Paths{}, err
	}
	if cfg, err := loadedConfig(); err == nil && cfg.Agents.ClaudeCode.SettingsPath != "" {
		defaults.SettingsPath = cfg.Agents.ClaudeCode.SettingsPath
	}
	return defaults, nil
}

