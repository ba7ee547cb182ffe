// Package store implements the Session Store and Usage Slot: the daemon's
// in-memory authoritative model of live and recently closed agent sessions,
// and the single-value cell holding the latest external usage snapshot.
// Both publish change notifications on bounded broadcast rings that surface
// an explicit lag signal to slow subscribers instead of silently dropping
// updates.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloLION/agent-console-dashboard/internal/types"
)

const (
	defaultSessionBroadcastCapacity = 256
	defaultUsageBroadcastCapacity   = 8
	defaultMaxClosedSessions        = 20
)

// SessionStore is the process-singleton, reference-counted handle to the
// daemon's session state. Every connection handler shares one pointer to
// it; the struct holds mutexes and is not copied.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session

	closedMu sync.Mutex
	closed   []types.ClosedSession
	maxClosed int

	updates *ring[types.SessionUpdate]
}

// New creates an empty SessionStore with the default broadcast capacity and
// closed-session retention.
func New() *SessionStore {
	return NewWithMaxClosed(defaultMaxClosedSessions)
}

// NewWithMaxClosed creates an empty SessionStore whose closed-session FIFO
// retains at most maxClosed entries, for callers that size it from
// config.toml's daemon.max_closed_sessions instead of the package default.
func NewWithMaxClosed(maxClosed int) *SessionStore {
	if maxClosed <= 0 {
		maxClosed = defaultMaxClosedSessions
	}
	return &SessionStore{
		sessions:  make(map[string]*types.Session),
		maxClosed: maxClosed,
		updates:   newRing[types.SessionUpdate](defaultSessionBroadcastCapacity),
	}
}

// Get retrieves a session by id. The returned Session is a clone; callers
// may not mutate the store through it.
func (s *SessionStore) Get(id string) (*types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// ListAll returns a clone of every session currently tracked, live or
// closed (closed sessions remain in the live map until explicitly
// Removed).
func (s *SessionStore) ListAll() []*types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	return out
}

// HasActive reports whether any non-closed session has had activity more
// recently than threshold ago.
func (s *SessionStore) HasActive(threshold time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-threshold)
	for _, sess := range s.sessions {
		if !sess.Closed && sess.LastActivity.After(cutoff) {
			return true
		}
	}
	return false
}

// Count returns the total number of sessions tracked, live or closed. It
// lets callers (e.g. the idle-timeout task) distinguish a store that has
// never seen a session from one whose sessions have simply gone idle.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CountInactive returns the number of non-closed sessions whose last
// activity is older than threshold.
func (s *SessionStore) CountInactive(threshold time.Duration) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-threshold)
	count := 0
	for _, sess := range s.sessions {
		if !sess.Closed && sess.LastActivity.Before(cutoff) {
			count++
		}
	}
	return count
}

// GetOrCreate looks up a session by id, creating it with the given metadata
// if absent. On an existing session it bumps LastActivity and applies the
// update rules: the status transition is recorded only if it differs, and
// priority is only ever raised, never lowered. A broadcast is published iff
// status or priority changed.
func (s *SessionStore) GetOrCreate(id string, agentType types.AgentType, workingDir, resumeToken string, initialStatus types.Status, initialPriority uint64) *types.Session {
	s.mu.Lock()

	sess, existed := s.sessions[id]
	if !existed {
		sess = types.NewSession(id, agentType, workingDir)
		sess.ResumeToken = resumeToken
		sess.Priority = initialPriority
		if initialStatus != types.StatusWorking {
			sess.SetStatus(initialStatus)
		}
		s.sessions[id] = sess
		result := sess.Clone()
		s.mu.Unlock()
		s.updates.publish(types.SessionUpdate{
			SessionID:      result.SessionID,
			Status:         result.Status,
			ElapsedSeconds: int64(result.Elapsed().Seconds()),
		})
		return result
	}

	sess.LastActivity = time.Now()
	changed := sess.SetStatus(initialStatus)
	if initialPriority > sess.Priority {
		sess.Priority = initialPriority
		changed = true
	}
	result := sess.Clone()
	s.mu.Unlock()

	if changed {
		s.updates.publish(types.SessionUpdate{
			SessionID:      result.SessionID,
			Status:         result.Status,
			ElapsedSeconds: int64(result.Elapsed().Seconds()),
		})
	}
	return result
}

// Close marks a session closed, recording a terminal transition and
// enqueuing a ClosedSession tombstone. Closing an already-closed session is
// a no-op: no second transition, no second broadcast.
func (s *SessionStore) Close(id string) (*types.Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	wasAlreadyClosed := sess.Closed
	sess.SetStatus(types.StatusClosed)
	result := sess.Clone()
	s.mu.Unlock()

	if !wasAlreadyClosed {
		s.updates.publish(types.SessionUpdate{
			SessionID:      result.SessionID,
			Status:         result.Status,
			ElapsedSeconds: int64(result.Elapsed().Seconds()),
		})
		s.enqueueTombstone(result)
	}
	return result, true
}

func (s *SessionStore) enqueueTombstone(sess *types.Session) {
	tomb := types.ClosedSession{
		SessionID:   sess.SessionID,
		WorkingDir:  sess.WorkingDir,
		Resumable:   sess.ResumeToken != "",
		ResumeToken: sess.ResumeToken,
		ClosedAt:    time.Now(),
	}
	if sess.ResumeToken == "" {
		tomb.NotResumableReason = "no resume token recorded for this session"
	}

	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	s.closed = append([]types.ClosedSession{tomb}, s.closed...)
	if len(s.closed) > s.maxClosed {
		s.closed = s.closed[:s.maxClosed]
	}
}

// Remove hard-deletes a session from the live map. Unlike Close, it does
// not enqueue a tombstone. Idempotent: removing a non-existent session
// returns ok=false without error.
func (s *SessionStore) Remove(id string) (*types.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	delete(s.sessions, id)
	return sess.Clone(), true
}

// ListClosed returns tombstones, most recently closed first.
func (s *SessionStore) ListClosed() []types.ClosedSession {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	out := make([]types.ClosedSession, len(s.closed))
	copy(out, s.closed)
	return out
}

// GetClosed looks up a single tombstone by session id.
func (s *SessionStore) GetClosed(id string) (types.ClosedSession, bool) {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	for _, tomb := range s.closed {
		if tomb.SessionID == id {
			return tomb, true
		}
	}
	return types.ClosedSession{}, false
}

// RemoveClosed deletes a tombstone by session id.
func (s *SessionStore) RemoveClosed(id string) bool {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	for i, tomb := range s.closed {
		if tomb.SessionID == id {
			s.closed = append(s.closed[:i], s.closed[i+1:]...)
			return true
		}
	}
	return false
}

// NewResumeToken generates an opaque resume token for a newly created
// session; callers that want resumability pass this to GetOrCreate.
func NewResumeToken() string {
	return uuid.NewString()
}

// SubscribeSessions returns a handle for reading session update events. The
// caller must call Unsubscribe when done.
func (s *SessionStore) SubscribeSessions() *SessionSubscription {
	return &SessionSubscription{sub: s.updates.subscribe()}
}

// SessionSubscription is a live handle to the session-update broadcast.
type SessionSubscription struct {
	sub *subscriber[types.SessionUpdate]
}

// Recv blocks until an update, a lag signal, or done is closed.
// hasLag distinguishes a lag signal (missed carries the count) from a
// regular update.
func (sub *SessionSubscription) Recv(done <-chan struct{}) (update types.SessionUpdate, missed uint64, hasLag bool, ok bool) {
	v, m, lag, _, recvOK := sub.sub.recv(done)
	return v, m, lag, recvOK
}

// Unsubscribe releases the subscription's slot in the ring's waiter set.
func (sub *SessionSubscription) Unsubscribe() {
	sub.sub.unsubscribe()
}
