package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/PabloLION/agent-console-dashboard/internal/client"
	"github.com/PabloLION/agent-console-dashboard/internal/protocol"
)

// hookStdin is the `{session_id, cwd}` object Claude Code pipes to
// `claude-hook <status>` on stdin.
type hookStdin struct {
	SessionID string `json:"session_id"`
	Cwd       string `json:"cwd"`
}

// hookStdout is always printed, exit 0, even on daemon failure — a
// daemon outage must never block the agent from proceeding.
type hookStdout struct {
	Continue      bool   `json:"continue"`
	SystemMessage string `json:"systemMessage,omitempty"`
}

var claudeHookCmd = &cobra.Command{
	Use:     "claude-hook <status>",
	GroupID: groupSession,
	Short:   "Report a Claude Code session status transition (invoked by an installed hook)",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		status := args[0]

		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "claude-hook: failed to read stdin:", err)
			os.Exit(2)
		}
		var in hookStdin
		if err := json.Unmarshal(raw, &in); err != nil {
			fmt.Fprintln(os.Stderr, "claude-hook: malformed stdin:", err)
			os.Exit(2)
		}

		out := hookStdout{Continue: true}
		if err := reportSessionStatus(in.SessionID, status, in.Cwd); err != nil {
			out.SystemMessage = fmt.Sprintf("acd daemon unavailable: %v", err)
		}

		encoded, _ := json.Marshal(out)
		fmt.Println(string(encoded))
		os.Exit(0)
	},
}

func init() {
	rootCmd.AddCommand(claudeHookCmd)
}

// reportSessionStatus issues a SET command, auto-starting the daemon
// lazily. Its error is returned, not logged; the hook command reports it
// to the agent without failing it.
func reportSessionStatus(sessionID, status, cwd string) error {
	connector := client.NewConnector(socketPath, nil)
	ctx, cancel := contextWithTimeout(hookConnectTimeout)
	defer cancel()

	conn, err := connector.ConnectWithLazyStart(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	reply, err := client.SendLine(conn, protocol.VerbSet, sessionID, status, cwd)
	if err != nil {
		return err
	}
	if len(reply) >= 4 && reply[:4] == "ERR " {
		return fmt.Errorf("%s", reply[4:])
	}
	return nil
}
