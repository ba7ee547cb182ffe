package rpcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/PabloLION/agent-console-dashboard/internal/daemonerr"
	"github.com/PabloLION/agent-console-dashboard/internal/logging"
	"github.com/PabloLION/agent-console-dashboard/internal/protocol"
	"github.com/PabloLION/agent-console-dashboard/internal/store"
	"github.com/PabloLION/agent-console-dashboard/internal/types"
)

// readWriteTimeout bounds each individual request/response round trip
// outside of SUB mode, so a stalled client cannot pin a connection slot
// forever.
const readWriteTimeout = 30 * time.Second

// connHandler owns one accepted connection's request loop: parse, dispatch,
// reply, and (on SUB) switch into the subscribe streaming state machine.
type connHandler struct {
	server *Server
	conn   net.Conn
}

func (h *connHandler) run(ctx context.Context) {
	defer h.conn.Close()

	ctx, end := logging.StartSpan(ctx, "rpcserver.handle_connection")
	defer func() { end(nil) }()

	reader := bufio.NewReaderSize(h.conn, 64*1024)
	writer := bufio.NewWriter(h.conn)

	for {
		select {
		case <-h.server.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		_ = h.conn.SetReadDeadline(time.Now().Add(readWriteTimeout))
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if len(line) == 0 {
				return
			}
		}
		if len(line) > protocol.MaxFrameBytes {
			h.reply(writer, protocol.EncodeErrLine(daemonerr.ErrProtocolParse))
			return
		}

		req, perr := protocol.ParseLine(line)
		if perr != nil {
			h.reply(writer, protocol.EncodeErrLine(perr))
			continue
		}

		if req.Verb == protocol.VerbSub {
			h.runSubscribe(ctx, writer)
			return
		}

		shouldStop := h.dispatch(ctx, writer, req)
		if shouldStop {
			return
		}

		if err != nil {
			return
		}
	}
}

func (h *connHandler) reply(w *bufio.Writer, line string) error {
	_ = h.conn.SetWriteDeadline(time.Now().Add(readWriteTimeout))
	_, _ = w.WriteString(line)
	if !hasTrailingNewline(line) {
		_, _ = w.WriteString("\n")
	}
	return w.Flush()
}

func hasTrailingNewline(s string) bool {
	return len(s) > 0 && s[len(s)-1] == '\n'
}

// dispatch handles one non-SUB request. It returns true when the
// connection must be torn down after replying (STOP).
func (h *connHandler) dispatch(ctx context.Context, w *bufio.Writer, req protocol.Request) bool {
	switch req.Verb {
	case protocol.VerbSet:
		h.handleSet(w, req)
	case protocol.VerbRM:
		h.handleRM(w, req)
	case protocol.VerbGet:
		h.handleGet(w, req)
	case protocol.VerbList:
		h.handleList(w, req)
	case protocol.VerbStatus:
		h.handleStatus(w, req)
	case protocol.VerbDump:
		h.handleDump(w, req)
	case protocol.VerbResurrect:
		h.handleResurrect(w, req)
	case protocol.VerbStop:
		return h.handleStop(ctx, w, req)
	default:
		h.reply(w, protocol.EncodeErrLine(daemonerr.ErrUnknownCommand))
	}
	return false
}

func (h *connHandler) handleSet(w *bufio.Writer, req protocol.Request) {
	_, end := logging.StartSpan(context.Background(), "store.get_or_create", attribute.String("session_id", firstArg(req.Args)))
	if len(req.Args) < 2 {
		end(daemonerr.ErrProtocolParse)
		h.reply(w, protocol.EncodeErrLine(daemonerr.ErrProtocolParse))
		return
	}
	id, statusArg := req.Args[0], req.Args[1]
	status, err := types.ParseStatus(statusArg)
	if err != nil {
		end(err)
		h.reply(w, protocol.EncodeErrLine(fmt.Errorf("%w: %s", daemonerr.ErrProtocolParse, statusArg)))
		return
	}
	workdir := ""
	if len(req.Args) >= 3 {
		workdir = req.Args[2]
	}
	resumeToken := ""
	if len(req.Args) >= 4 {
		resumeToken = req.Args[3]
	}
	var priority uint64
	if len(req.Args) >= 5 {
		if p, err := strconv.ParseUint(req.Args[4], 10, 64); err == nil {
			priority = p
		}
	}

	h.server.store.GetOrCreate(id, types.AgentClaudeCode, workdir, resumeToken, status, priority)
	end(nil)
	h.reply(w, fmt.Sprintf("OK %s %s", id, status))
}

func (h *connHandler) handleRM(w *bufio.Writer, req protocol.Request) {
	if len(req.Args) < 1 {
		h.reply(w, protocol.EncodeErrLine(daemonerr.ErrProtocolParse))
		return
	}
	id := req.Args[0]
	if _, ok := h.server.store.Close(id); ok {
		h.reply(w, fmt.Sprintf("OK %s closed", id))
		return
	}
	h.reply(w, protocol.EncodeErrLine(fmt.Errorf("%w: %s", daemonerr.ErrSessionNotFound, id)))
}

func (h *connHandler) handleGet(w *bufio.Writer, req protocol.Request) {
	if len(req.Args) < 1 {
		h.reply(w, protocol.EncodeErrLine(daemonerr.ErrProtocolParse))
		return
	}
	id := req.Args[0]
	sess, ok := h.server.store.Get(id)
	if !ok {
		h.reply(w, protocol.EncodeErrLine(fmt.Errorf("%w: %s", daemonerr.ErrSessionNotFound, id)))
		return
	}
	h.reply(w, fmt.Sprintf("OK %s %s %d %s", sess.SessionID, sess.Status, int64(sess.Elapsed().Seconds()), sess.WorkingDir))
}

func (h *connHandler) handleList(w *bufio.Writer, _ protocol.Request) {
	sessions := h.server.store.ListAll()
	h.reply(w, "OK")
	for _, sess := range sessions {
		_, _ = w.WriteString(fmt.Sprintf("%s %s %d %s\n", sess.SessionID, sess.Status, int64(sess.Elapsed().Seconds()), sess.WorkingDir))
	}
	_, _ = w.WriteString("\n")
	_ = w.Flush()
}

func (h *connHandler) handleStatus(w *bufio.Writer, _ protocol.Request) {
	active, closedCount := h.statusCounts()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := protocol.StatusReport{
		UptimeSeconds: int64(time.Since(h.server.startTime).Seconds()),
		Sessions:      protocol.SessionCounts{Active: active, Closed: closedCount},
		Connections:   h.server.ActiveConnections(),
		MemoryMB:      float64(mem.Sys) / (1024 * 1024),
		SocketPath:    h.server.socketPath,
	}
	h.replyJSON(w, report)
}

func (h *connHandler) statusCounts() (active, closed int) {
	for _, sess := range h.server.store.ListAll() {
		if sess.Status != types.StatusClosed {
			active++
		}
	}
	return active, len(h.server.store.ListClosed())
}

func (h *connHandler) handleDump(w *bufio.Writer, _ protocol.Request) {
	sessions := h.server.store.ListAll()
	closedSessions := h.server.store.ListClosed()

	snapshots := make([]protocol.SessionSnapshot, 0, len(sessions))
	active := 0
	for _, sess := range sessions {
		if sess.Status != types.StatusClosed {
			active++
		}
		snapshots = append(snapshots, protocol.SessionSnapshot{
			ID:             sess.SessionID,
			Status:         sess.Status.String(),
			WorkingDir:     sess.WorkingDir,
			ElapsedSeconds: int64(sess.Elapsed().Seconds()),
			Closed:         sess.Status == types.StatusClosed,
		})
	}

	closedSnapshots := make([]protocol.ClosedSessionSnapshot, 0, len(closedSessions))
	for _, cs := range closedSessions {
		closedSnapshots = append(closedSnapshots, protocol.ClosedSessionSnapshot{
			SessionID:          cs.SessionID,
			WorkingDir:         cs.WorkingDir,
			Resumable:          cs.Resumable,
			NotResumableReason: cs.NotResumableReason,
			ClosedAtMs:         cs.ClosedAt.UnixMilli(),
		})
	}

	report := protocol.DumpReport{
		UptimeSeconds:  int64(time.Since(h.server.startTime).Seconds()),
		SocketPath:     h.server.socketPath,
		Sessions:       snapshots,
		ClosedSessions: closedSnapshots,
		SessionCounts:  protocol.SessionCounts{Active: active, Closed: len(closedSnapshots)},
		Connections:    h.server.ActiveConnections(),
	}
	h.replyJSON(w, report)
}

func (h *connHandler) handleResurrect(w *bufio.Writer, req protocol.Request) {
	if len(req.Args) < 1 {
		h.reply(w, protocol.EncodeErrLine(daemonerr.ErrProtocolParse))
		return
	}
	id := req.Args[0]
	cs, ok := h.server.store.GetClosed(id)
	if !ok {
		h.reply(w, protocol.EncodeErrLine(fmt.Errorf("%w: %s", daemonerr.ErrSessionNotFound, id)))
		return
	}
	if !cs.Resumable {
		h.reply(w, protocol.EncodeErrLine(fmt.Errorf("%w: %s", daemonerr.ErrNotResumable, cs.NotResumableReason)))
		return
	}

	argv := []string{"claude", "--resume", cs.ResumeToken}
	report := protocol.ResurrectReport{
		SessionID:  cs.SessionID,
		WorkingDir: cs.WorkingDir,
		Command:    joinArgv(argv),
		Argv:       argv,
	}
	h.replyJSON(w, report)
}

func joinArgv(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func (h *connHandler) handleStop(ctx context.Context, w *bufio.Writer, req protocol.Request) bool {
	active := 0
	for _, sess := range h.server.store.ListAll() {
		if sess.Status != types.StatusClosed {
			active++
		}
	}

	if active > 0 && !req.StopConfirmed {
		h.replyJSON(w, protocol.StopReport{StopStatus: protocol.StopStatusConfirmRequired, ActiveCount: active})
		return false
	}

	h.replyJSON(w, protocol.StopReport{StopStatus: protocol.StopStatusOK, ActiveCount: active})
	h.server.Shutdown()
	return true
}

func (h *connHandler) replyJSON(w *bufio.Writer, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.reply(w, protocol.EncodeErrLine(fmt.Errorf("marshal response: %w", err)))
		return
	}
	h.reply(w, "OK "+string(data))
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// subEvent is the fan-in unit for the SUB loop: exactly one of
// sessionUpdate or usageUpdate is populated, per isUsage.
type subEvent struct {
	isUsage       bool
	sessionUpdate types.SessionUpdate
	usageUpdate   store.UsageUpdate
	missed        uint64
	hasLag        bool
	closed        bool
}

// runSubscribe switches the connection into the SUB streaming state
// machine: an initial usage snapshot (if available), then an unbounded
// stream of session updates and usage updates until the client
// disconnects or the server shuts down.
func (h *connHandler) runSubscribe(ctx context.Context, w *bufio.Writer) {
	h.reply(w, "OK subscribed")

	sessionSub := h.server.store.SubscribeSessions()
	defer sessionSub.Unsubscribe()

	usageSub := h.server.usage.SubscribeUsage()
	defer usageSub.Unsubscribe()

	if snapshot, ok := h.server.usage.Current(); ok {
		h.emitUsage(w, snapshot)
	}

	done, cancel := mergeDone(ctx, h.server.shutdownCh)
	defer cancel()

	events := make(chan subEvent)

	go func() {
		for {
			update, missed, hasLag, ok := sessionSub.Recv(done)
			if !ok {
				select {
				case events <- subEvent{closed: true}:
				case <-done:
				}
				return
			}
			select {
			case events <- subEvent{sessionUpdate: update, missed: missed, hasLag: hasLag}:
			case <-done:
				return
			}
		}
	}()

	go func() {
		for {
			update, missed, hasLag, ok := usageSub.Recv(done)
			if !ok {
				select {
				case events <- subEvent{isUsage: true, closed: true}:
				case <-done:
				}
				return
			}
			select {
			case events <- subEvent{isUsage: true, usageUpdate: update, missed: missed, hasLag: hasLag}:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			if ev.closed {
				return
			}
			var writeErr error
			switch {
			case ev.isUsage && ev.hasLag:
				// Usage lag resynchronizes on the next snapshot; it never
				// reaches the wire as a WARN frame, only the log.
				h.server.log.Debug("usage broadcast subscriber lagged", "missed", ev.missed)
			case ev.hasLag:
				writeErr = h.reply(w, fmt.Sprintf("WARN lagged %d", ev.missed))
			case ev.isUsage && !ev.usageUpdate.Available:
				// An unavailable transition is dropped on the wire; the
				// subscriber keeps its last good value until the next
				// available snapshot arrives.
			case ev.isUsage:
				writeErr = h.emitUsage(w, ev.usageUpdate.Snapshot)
			default:
				writeErr = h.emitSessionUpdate(w, ev.sessionUpdate)
			}
			if writeErr != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *connHandler) emitSessionUpdate(w *bufio.Writer, update types.SessionUpdate) error {
	return h.reply(w, fmt.Sprintf("UPDATE %s %s %d", update.SessionID, update.Status, update.ElapsedSeconds))
}

func (h *connHandler) emitUsage(w *bufio.Writer, snapshot types.UsageSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return h.reply(w, "USAGE "+string(data))
}

// mergeDone returns a channel that closes when ctx is cancelled, the
// server begins shutdown, or the returned cancel func is called —
// whichever comes first — so callers can select on a single channel
// instead of juggling ctx.Done() and the shutdown channel directly.
func mergeDone(ctx context.Context, shutdownCh <-chan struct{}) (<-chan struct{}, func()) {
	done := make(chan struct{})
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }

	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCh:
		case <-done:
		}
		closeDone()
	}()

	return done, closeDone
}
