// Package types defines the data model shared by the session store, the
// wire protocol, and the hook registry: agent sessions, their lifecycle
// status, and the usage snapshots relayed from the external metrics
// fetcher.
package types

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a Session. The wire form is always the
// lowercase token.
type Status int

const (
	StatusWorking Status = iota
	StatusAttention
	StatusQuestion
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusWorking:
		return "working"
	case StatusAttention:
		return "attention"
	case StatusQuestion:
		return "question"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ParseStatus parses the lowercase wire token for a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "working":
		return StatusWorking, nil
	case "attention":
		return StatusAttention, nil
	case "question":
		return StatusQuestion, nil
	case "closed":
		return StatusClosed, nil
	default:
		return 0, fmt.Errorf("invalid status: %s (expected: working, attention, question, closed)", s)
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Status) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("invalid status json: %s", data)
	}
	parsed, err := ParseStatus(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AgentType identifies the kind of coding-agent session. Only ClaudeCode is
// defined today; new variants must parse from a stable lowercase token.
type AgentType int

const (
	AgentClaudeCode AgentType = iota
)

func (a AgentType) String() string {
	switch a {
	case AgentClaudeCode:
		return "claude_code"
	default:
		return "unknown"
	}
}

func ParseAgentType(s string) (AgentType, error) {
	switch s {
	case "claude_code":
		return AgentClaudeCode, nil
	default:
		return 0, fmt.Errorf("invalid agent type: %s", s)
	}
}

func (a AgentType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *AgentType) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("invalid agent_type json: %s", data)
	}
	parsed, err := ParseAgentType(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// StateTransition records one status change in a Session's history. Created
// exclusively when the status actually changes.
type StateTransition struct {
	Timestamp     time.Time     `json:"timestamp"`
	From          Status        `json:"from"`
	To            Status        `json:"to"`
	DurationInFrom time.Duration `json:"duration_in_from_ms"`
}

// Session is the central entity tracked by the store.
type Session struct {
	SessionID    string
	AgentType    AgentType
	Status       Status
	WorkingDir   string // empty means "unknown / error"
	Since        time.Time
	LastActivity time.Time
	History      []StateTransition
	Priority     uint64
	Closed       bool
	ResumeToken  string
}

// NewSession creates a Session in its initial Working state.
func NewSession(id string, agentType AgentType, workingDir string) *Session {
	now := time.Now()
	return &Session{
		SessionID:    id,
		AgentType:    agentType,
		Status:       StatusWorking,
		WorkingDir:   workingDir,
		Since:        now,
		LastActivity: now,
		History:      nil,
		Priority:     0,
		Closed:       false,
	}
}

// SetStatus applies a status transition, appending to history and updating
// Since, but only if the status actually changes. Setting to the same value
// is a no-op: no history entry, since unchanged.
func (s *Session) SetStatus(newStatus Status) bool {
	if s.Status == newStatus {
		return false
	}
	now := time.Now()
	s.History = append(s.History, StateTransition{
		Timestamp:      now,
		From:           s.Status,
		To:             newStatus,
		DurationInFrom: now.Sub(s.Since),
	})
	s.Status = newStatus
	s.Since = now
	s.Closed = newStatus == StatusClosed
	return true
}

// Elapsed returns the duration since the last status change.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.Since)
}

// Clone returns a deep-enough copy safe to hand to a caller outside the
// store's lock: History is copied since it is an append-only slice that
// could otherwise alias the store's backing array.
func (s *Session) Clone() *Session {
	clone := *s
	clone.History = append([]StateTransition(nil), s.History...)
	return &clone
}

// ClosedSession is the immutable tombstone recorded at the moment a Session
// is closed.
type ClosedSession struct {
	SessionID          string    `json:"session_id"`
	WorkingDir         string    `json:"working_dir"`
	Resumable          bool      `json:"resumable"`
	NotResumableReason string    `json:"not_resumable_reason,omitempty"`
	ResumeToken        string    `json:"resume_token,omitempty"`
	ClosedAt           time.Time `json:"closed_at"`
}

// UsagePeriod is a single utilization window reported by the external usage
// fetcher.
type UsagePeriod struct {
	UtilizationPercent float64    `json:"utilization_percent"`
	ResetsAt           *time.Time `json:"resets_at,omitempty"`
}

// UsageSnapshot is an opaque record carried verbatim from the external
// usage-metrics collaborator. The core does not interpret these numbers
// beyond forwarding them.
type UsageSnapshot struct {
	Short UsagePeriod `json:"short"`
	Long  UsagePeriod `json:"long"`
}

// SessionUpdate is the payload broadcast to subscribers on a status change.
type SessionUpdate struct {
	SessionID      string
	Status         Status
	ElapsedSeconds int64
}
