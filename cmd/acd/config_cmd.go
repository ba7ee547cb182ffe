package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/PabloLION/agent-console-dashboard/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: groupSetup,
	Short:   "Manage config.toml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented config.toml template",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolvedConfigPath()
		if err := config.Init(path, configInitForce); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the resolved config.toml path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(resolvedConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}
		return toml.NewEncoder(os.Stdout).Encode(cfg)
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config.toml in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolvedConfigPath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := config.Init(path, false); err != nil {
				return err
			}
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		c := exec.Command(editor, path)
		c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
		return c.Run()
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config.toml without starting the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadedConfig(); err != nil {
			return err
		}
		fmt.Println("config valid:", resolvedConfigPath())
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "back up an existing config.toml before overwriting it")
	configCmd.AddCommand(configInitCmd, configPathCmd, configShowCmd, configEditCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

// loadedConfig loads and validates the resolved config.toml, used by
// `config show` and `config validate`.
func loadedConfig() (*config.Config, error) {
	return config.Load(resolvedConfigPath())
}
