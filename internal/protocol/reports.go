package protocol

// SessionCounts mirrors HealthStatus.sessions / DaemonDump.session_counts
// in the original daemon: the active/closed split used by STATUS and DUMP.
type SessionCounts struct {
	Active int `json:"active"`
	Closed int `json:"closed"`
}

// StatusReport is the payload of the STATUS command's `OK <json>` reply.
type StatusReport struct {
	UptimeSeconds int64         `json:"uptime_seconds"`
	Sessions      SessionCounts `json:"sessions"`
	Connections   int32         `json:"connections"`
	MemoryMB      float64       `json:"memory_mb"`
	SocketPath    string        `json:"socket_path"`
}

// SessionSnapshot is one entry in a DUMP report.
type SessionSnapshot struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	WorkingDir     string `json:"working_dir"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Closed         bool   `json:"closed"`
}

// ClosedSessionSnapshot is one entry in a DUMP report's closed_sessions
// list.
type ClosedSessionSnapshot struct {
	SessionID          string `json:"session_id"`
	WorkingDir         string `json:"working_dir"`
	Resumable          bool   `json:"resumable"`
	NotResumableReason string `json:"not_resumable_reason,omitempty"`
	ClosedAtMs         int64  `json:"closed_at_ms"`
}

// DumpReport is the payload of the DUMP command's `OK <json>` reply: a full
// snapshot of daemon state.
type DumpReport struct {
	UptimeSeconds  int64                   `json:"uptime_seconds"`
	SocketPath     string                  `json:"socket_path"`
	Sessions       []SessionSnapshot       `json:"sessions"`
	ClosedSessions []ClosedSessionSnapshot `json:"closed_sessions"`
	SessionCounts  SessionCounts           `json:"session_counts"`
	Connections    int32                   `json:"connections"`
}

// ResurrectReport is the payload of a successful RESURRECT reply. Command
// is kept for wire compatibility with the legacy shell-string form; Argv
// is the structured equivalent addressing the core's own open question
// about shell-injection safety without breaking legacy clients.
type ResurrectReport struct {
	SessionID  string   `json:"session_id"`
	WorkingDir string   `json:"working_dir"`
	Command    string   `json:"command"`
	Argv       []string `json:"argv"`
}

// StopStatus is the `stop_status` field of a STOP reply.
type StopStatus string

const (
	StopStatusOK               StopStatus = "ok"
	StopStatusConfirmRequired  StopStatus = "confirm_required"
)

// StopReport is the payload of a STOP reply.
type StopReport struct {
	StopStatus  StopStatus `json:"stop_status"`
	ActiveCount int        `json:"active_count"`
}
