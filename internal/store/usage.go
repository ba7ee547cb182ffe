package store

import (
	"sync"

	"github.com/PabloLION/agent-console-dashboard/internal/types"
)

// UsageUpdate is the value published on the usage broadcast channel: it
// carries both directions of the unavailable/available(snapshot)
// transition, since unlike SessionUpdate an absent snapshot is itself a
// meaningful state, not just "no value yet".
type UsageUpdate struct {
	Snapshot  types.UsageSnapshot
	Available bool
}

// UsageSlot holds the single most recent usage snapshot relayed from an
// external fetcher. It is independent of SessionStore so that a slow or
// stalled fetcher never back-pressures session updates. A subscription
// receives only values published after it subscribes; the current value
// is read with Current.
type UsageSlot struct {
	mu        sync.RWMutex
	available bool
	snapshot  types.UsageSnapshot

	updates *ring[UsageUpdate]
}

// NewUsageSlot creates an empty, unavailable UsageSlot.
func NewUsageSlot() *UsageSlot {
	return &UsageSlot{updates: newRing[UsageUpdate](defaultUsageBroadcastCapacity)}
}

// Set stores a new snapshot and broadcasts it to subscribers.
func (u *UsageSlot) Set(snapshot types.UsageSnapshot) {
	u.mu.Lock()
	u.snapshot = snapshot
	u.available = true
	u.mu.Unlock()
	u.updates.publish(UsageUpdate{Snapshot: snapshot, Available: true})
}

// Clear drives the slot back to unavailable (the `set_usage(none)`
// transition) and broadcasts it. The broadcast reaches subscribers so they
// can drop their cached value internally, but per the wire contract an
// unavailable transition is never written to the wire itself; callers keep
// their last good value there until the next available snapshot arrives.
func (u *UsageSlot) Clear() {
	u.mu.Lock()
	u.snapshot = types.UsageSnapshot{}
	u.available = false
	u.mu.Unlock()
	u.updates.publish(UsageUpdate{Available: false})
}

// Current returns the latest snapshot and whether one is currently
// available (false before the first Set and after Clear).
func (u *UsageSlot) Current() (types.UsageSnapshot, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.snapshot, u.available
}

// UsageSubscription is a live handle to the usage-update broadcast.
type UsageSubscription struct {
	sub *subscriber[UsageUpdate]
}

// SubscribeUsage returns a handle for reading usage update events.
func (u *UsageSlot) SubscribeUsage() *UsageSubscription {
	return &UsageSubscription{sub: u.updates.subscribe()}
}

// Recv blocks until an update, a lag signal, or done is closed.
func (sub *UsageSubscription) Recv(done <-chan struct{}) (update UsageUpdate, missed uint64, hasLag bool, ok bool) {
	v, m, lag, _, recvOK := sub.sub.recv(done)
	return v, m, lag, recvOK
}

// Unsubscribe releases the subscription's slot in the ring's waiter set.
func (sub *UsageSubscription) Unsubscribe() {
	sub.sub.unsubscribe()
}
