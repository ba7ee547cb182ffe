package rpcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloLION/agent-console-dashboard/internal/protocol"
	"github.com/PabloLION/agent-console-dashboard/internal/store"
	"github.com/PabloLION/agent-console-dashboard/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	srv     *Server
	sess    *store.SessionStore
	usage   *store.UsageSlot
	path    string
	cancel  context.CancelFunc
	done    chan error
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "acd.sock")

	sess := store.New()
	usage := store.NewUsageSlot()
	srv := New(sockPath, sess, usage, testLogger())
	srv.SetIdleTimeout(0)

	require.NoError(t, srv.Start())

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal)
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, signals) }()

	ts := &testServer{srv: srv, sess: sess, usage: usage, path: sockPath, cancel: cancel, done: done}
	t.Cleanup(func() {
		ts.cancel()
		select {
		case <-ts.done:
		case <-time.After(2 * time.Second):
		}
	})
	return ts
}

func (ts *testServer) dial(t *testing.T) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, err = net.Dial("unix", ts.path)
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	return conn
}

func sendLine(t *testing.T, conn net.Conn, line string) string {
	t.Helper()
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	resp, err := reader.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(resp, "\n")
}

func TestSetThenGetRoundTrip(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	resp := sendLine(t, conn, "SET abc working /tmp/proj")
	assert.Equal(t, "OK abc working", resp)

	resp = sendLine(t, conn, "GET abc")
	assert.True(t, strings.HasPrefix(resp, "OK abc working"))
	assert.Contains(t, resp, "/tmp/proj")
}

func TestGetUnknownSessionReturnsError(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	resp := sendLine(t, conn, "GET nonexistent")
	assert.True(t, strings.HasPrefix(resp, "ERR"))
	assert.Contains(t, resp, "session-not-found")
}

func TestRMClosesSessionAndIsIdempotent(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	sendLine(t, conn, "SET abc working /tmp/proj")
	resp := sendLine(t, conn, "RM abc")
	assert.Equal(t, "OK abc closed", resp)

	resp = sendLine(t, conn, "RM abc")
	assert.Equal(t, "OK abc closed", resp)
}

func TestRMUnknownSessionReturnsError(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	resp := sendLine(t, conn, "RM nonexistent")
	assert.True(t, strings.HasPrefix(resp, "ERR"))
}

func TestListReturnsBlockTerminatedByBlankLine(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	sendLine(t, conn, "SET a working /a")
	sendLine(t, conn, "SET b attention /b")

	_, err := conn.Write([]byte("LIST\n"))
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)

	header, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "OK\n", header)

	var lines []string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			break
		}
		lines = append(lines, strings.TrimRight(line, "\n"))
	}
	assert.Len(t, lines, 2)
}

func TestStatusReturnsJSONReport(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	sendLine(t, conn, "SET a working /a")
	resp := sendLine(t, conn, "STATUS")
	require.True(t, strings.HasPrefix(resp, "OK "))

	var report protocol.StatusReport
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &report))
	assert.Equal(t, 1, report.Sessions.Active)
	assert.Equal(t, ts.path, report.SocketPath)
}

func TestDumpReturnsFullSnapshot(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	sendLine(t, conn, "SET a working /a")
	sendLine(t, conn, "RM a")

	resp := sendLine(t, conn, "DUMP")
	require.True(t, strings.HasPrefix(resp, "OK "))

	var report protocol.DumpReport
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &report))
	assert.Len(t, report.ClosedSessions, 1)
	assert.Equal(t, "a", report.ClosedSessions[0].SessionID)
}

func TestResurrectNotResumableWithoutToken(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	sendLine(t, conn, "SET a working /a")
	sendLine(t, conn, "RM a")

	resp := sendLine(t, conn, "RESURRECT a")
	assert.True(t, strings.HasPrefix(resp, "ERR"))
	assert.Contains(t, resp, "not-resumable")
}

func TestResurrectResumableReturnsArgv(t *testing.T) {
	ts := startTestServer(t)

	token := store.NewResumeToken()
	ts.sess.GetOrCreate("a", types.AgentClaudeCode, "/a", token, types.StatusWorking, 0)
	ts.sess.Close("a")

	conn := ts.dial(t)
	defer conn.Close()

	resp := sendLine(t, conn, "RESURRECT a")
	require.True(t, strings.HasPrefix(resp, "OK "))

	var report protocol.ResurrectReport
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &report))
	assert.Equal(t, "a", report.SessionID)
	assert.Contains(t, report.Argv, token)
}

func TestStopRequiresConfirmationWhenSessionsActive(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	sendLine(t, conn, "SET a working /a")
	resp := sendLine(t, conn, "STOP")

	var report protocol.StopReport
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &report))
	assert.Equal(t, protocol.StopStatusConfirmRequired, report.StopStatus)
	assert.Equal(t, 1, report.ActiveCount)
}

func TestStopSucceedsAndShutsDownWhenConfirmed(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	sendLine(t, conn, "SET a working /a")
	resp := sendLine(t, conn, "STOP confirmed")

	var report protocol.StopReport
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &report))
	assert.Equal(t, protocol.StopStatusOK, report.StopStatus)

	select {
	case err := <-ts.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after confirmed STOP")
	}
}

func TestStopSucceedsImmediatelyWithNoActiveSessions(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	resp := sendLine(t, conn, "STOP")
	var report protocol.StopReport
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &report))
	assert.Equal(t, protocol.StopStatusOK, report.StopStatus)
}

func TestSubReceivesInitialUsageThenUpdates(t *testing.T) {
	ts := startTestServer(t)
	ts.usage.Set(types.UsageSnapshot{Short: types.UsagePeriod{UtilizationPercent: 42.0}})

	conn := ts.dial(t)
	defer conn.Close()

	_, err := conn.Write([]byte("SUB\n"))
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "OK subscribed\n", line)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "USAGE "))

	otherConn := ts.dial(t)
	defer otherConn.Close()
	sendLine(t, otherConn, "SET a working /a")

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "UPDATE a working"), fmt.Sprintf("got %q", line))
}

func TestUnknownVerbReturnsError(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	resp := sendLine(t, conn, "BOGUS")
	assert.True(t, strings.HasPrefix(resp, "ERR"))
	assert.Contains(t, resp, "unknown-command")
}

func TestMalformedSetReturnsProtocolParseError(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t)
	defer conn.Close()

	resp := sendLine(t, conn, "SET onlyid")
	assert.True(t, strings.HasPrefix(resp, "ERR"))
	assert.Contains(t, resp, "protocol-parse")
}

func TestStaleSocketFromDeadProcessIsReclaimed(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "acd.sock")

	listener, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	// Simulate a crashed daemon: the socket file is left behind but
	// nothing is listening on it.
	require.NoError(t, listener.Close())

	srv := New(sockPath, store.New(), store.NewUsageSlot(), testLogger())
	srv.SetIdleTimeout(0)
	require.NoError(t, srv.Start())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal)
	go func() { _ = srv.Run(ctx, signals) }()

	conn := (&testServer{path: sockPath}).dial(t)
	defer conn.Close()
}

func TestLiveSocketRejectsSecondDaemon(t *testing.T) {
	ts := startTestServer(t)

	second := New(ts.path, store.New(), store.NewUsageSlot(), testLogger())
	err := second.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address-in-use")
}
