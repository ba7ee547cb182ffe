package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusWorking, StatusAttention, StatusQuestion, StatusClosed} {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}

func TestParseStatusInvalid(t *testing.T) {
	_, err := ParseStatus("bogus")
	assert.Error(t, err)
}

func TestSessionSetStatusNoopOnSameValue(t *testing.T) {
	s := NewSession("abc", AgentClaudeCode, "/repo")
	since := s.Since

	changed := s.SetStatus(StatusWorking)

	assert.False(t, changed)
	assert.Empty(t, s.History)
	assert.Equal(t, since, s.Since)
}

func TestSessionSetStatusRecordsTransition(t *testing.T) {
	s := NewSession("abc", AgentClaudeCode, "/repo")

	changed := s.SetStatus(StatusAttention)

	require.True(t, changed)
	require.Len(t, s.History, 1)
	assert.Equal(t, StatusWorking, s.History[0].From)
	assert.Equal(t, StatusAttention, s.History[0].To)
	assert.Equal(t, StatusAttention, s.Status)
}

func TestSessionHistoryNeverHasEqualFromTo(t *testing.T) {
	s := NewSession("abc", AgentClaudeCode, "/repo")
	s.SetStatus(StatusAttention)
	s.SetStatus(StatusAttention) // no-op, same value
	s.SetStatus(StatusQuestion)

	for _, h := range s.History {
		assert.NotEqual(t, h.From, h.To)
	}
	assert.Len(t, s.History, 2)
}

func TestSessionCloneIsIndependent(t *testing.T) {
	s := NewSession("abc", AgentClaudeCode, "/repo")
	s.SetStatus(StatusAttention)

	clone := s.Clone()
	clone.History[0].To = StatusClosed

	assert.Equal(t, StatusAttention, s.History[0].To, "mutating the clone must not affect the original")
}

func TestSessionClosedMirrorsStatus(t *testing.T) {
	s := NewSession("abc", AgentClaudeCode, "/repo")
	s.SetStatus(StatusClosed)
	assert.True(t, s.Closed)
	assert.Equal(t, StatusClosed, s.Status)
}

func TestAgentTypeRoundTrip(t *testing.T) {
	parsed, err := ParseAgentType(AgentClaudeCode.String())
	require.NoError(t, err)
	assert.Equal(t, AgentClaudeCode, parsed)

	_, err = ParseAgentType("unsupported-agent")
	assert.Error(t, err)
}
