package main

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/PabloLION/agent-console-dashboard/internal/client"
	"github.com/PabloLION/agent-console-dashboard/internal/protocol"
)

var dumpFormat string

var dumpCmd = &cobra.Command{
	Use:     "dump",
	GroupID: groupSession,
	Short:   "Print a full snapshot of daemon state",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := dialDaemon()
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()

		reply, err := client.SendLine(conn, protocol.VerbDump)
		if err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		var report protocol.DumpReport
		if err := client.DecodeJSONReply(reply, &report); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVar(&dumpFormat, "format", "json", "output format (only json is supported)")
	rootCmd.AddCommand(dumpCmd)
}

// dialDaemon connects to the daemon, auto-starting it if it isn't
// running yet.
func dialDaemon() (net.Conn, error) {
	connector := client.NewConnector(socketPath, nil)
	ctx, cancel := contextWithTimeout(10 * time.Second)
	defer cancel()
	return connector.ConnectWithAutoStart(ctx)
}
