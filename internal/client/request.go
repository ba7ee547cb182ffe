package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/PabloLION/agent-console-dashboard/internal/protocol"
)

// requestTimeout bounds a single request/reply round trip over an
// already-established connection, distinct from the connector's own
// auto-start retry budget.
const requestTimeout = 5 * time.Second

// SendLine writes a legacy-dialect request line to conn and returns the
// single reply line, with its trailing newline stripped.
func SendLine(conn net.Conn, verb protocol.Verb, args ...string) (string, error) {
	line := protocol.EncodeLegacyRequest(verb, args...)
	return roundTrip(conn, line)
}

// SendLineBlock writes a request line and reads reply lines until a blank
// line terminator, for LIST-style block replies. The returned slice
// excludes the terminating blank line.
func SendLineBlock(conn net.Conn, verb protocol.Verb, args ...string) ([]string, error) {
	line := protocol.EncodeLegacyRequest(verb, args...)
	if err := conn.SetWriteDeadline(time.Now().Add(requestTimeout)); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return nil, err
	}

	reader := bufio.NewReader(conn)
	var lines []string
	for {
		if err := conn.SetReadDeadline(time.Now().Add(requestTimeout)); err != nil {
			return nil, err
		}
		raw, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimRight(raw, "\r\n")
		if trimmed == "" {
			break
		}
		lines = append(lines, trimmed)
	}
	return lines, nil
}

func roundTrip(conn net.Conn, line string) (string, error) {
	if err := conn.SetWriteDeadline(time.Now().Add(requestTimeout)); err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return "", err
	}
	if err := conn.SetReadDeadline(time.Now().Add(requestTimeout)); err != nil {
		return "", err
	}
	reader := bufio.NewReader(conn)
	raw, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(raw, "\r\n"), nil
}

// DecodeJSONReply parses an `OK <json>` reply into v, or returns the
// error carried by an `ERR ...` reply.
func DecodeJSONReply(reply string, v any) error {
	if strings.HasPrefix(reply, "ERR ") {
		return fmt.Errorf("%s", strings.TrimPrefix(reply, "ERR "))
	}
	payload := strings.TrimPrefix(reply, "OK ")
	return json.Unmarshal([]byte(payload), v)
}
