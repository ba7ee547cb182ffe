package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PabloLION/agent-console-dashboard/internal/client"
	"github.com/PabloLION/agent-console-dashboard/internal/protocol"
)

var resurrectQuiet bool

var resurrectCmd = &cobra.Command{
	Use:     "resurrect <session_id>",
	GroupID: groupSession,
	Short:   "Print a shell snippet to cd and re-invoke a closed session's agent",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		conn, err := dialDaemon()
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()

		reply, err := client.SendLine(conn, protocol.VerbResurrect, sessionID)
		if err != nil {
			return fmt.Errorf("resurrect: %w", err)
		}
		var report protocol.ResurrectReport
		if err := client.DecodeJSONReply(reply, &report); err != nil {
			return fmt.Errorf("resurrect %s: %w", sessionID, err)
		}

		if resurrectQuiet {
			fmt.Println(report.Command)
			return nil
		}
		fmt.Printf("cd %q && %s\n", report.WorkingDir, report.Command)
		return nil
	},
}

func init() {
	resurrectCmd.Flags().BoolVar(&resurrectQuiet, "quiet", false, "print only the resume command, no cd wrapper")
	rootCmd.AddCommand(resurrectCmd)
}
