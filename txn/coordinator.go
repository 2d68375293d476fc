// Package txn implements the session-scoped TransactionCoordinator: a FIFO
// of pending sync tokens that gets drained to the log bridge's Sync
// operation, opportunistically, at session boundaries.
package txn

import (
	"context"
	"sync"

	"github.com/lineagedb/lineage/collab"
)

// pending is one queued (partition, token) pair awaiting a flush.
type pending struct {
	partitionKey string
	token        collab.SyncToken
}

// Coordinator is tied to a single session's lifetime. Add enqueues work
// from any number of concurrent callers; Finish drains the queue to the
// log bridge one consumer at a time. Coordinator carries no ambient
// thread-local state — callers construct one per session and discard it
// when the session ends.
type Coordinator struct {
	bridge collab.LogBridge

	drain   sync.Mutex // held for the whole of a Finish call
	mu      sync.Mutex
	pending []pending
	closed  bool
}

// New builds a Coordinator that forwards flushes to bridge.
func New(bridge collab.LogBridge) *Coordinator {
	return &Coordinator{bridge: bridge}
}

// Add enqueues a sync token for partitionKey. Safe to call concurrently
// with Finish and with other Add calls.
func (c *Coordinator) Add(partitionKey string, token collab.SyncToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending = append(c.pending, pending{partitionKey: partitionKey, token: token})
}

// Finish drains every currently queued sync token, forwarding each to the
// log bridge's Sync in FIFO order. It is safe to call concurrently with
// Add — entries added while a Finish is in flight are picked up by that
// same call if they arrive before its drain loop observes an empty queue,
// or by the next Finish otherwise. Finish returns the first error
// encountered but still attempts to flush the remaining entries, since a
// single stuck partition must not strand sync tokens for the others.
func (c *Coordinator) Finish(ctx context.Context) error {
	c.drain.Lock()
	defer c.drain.Unlock()

	var firstErr error
	for {
		next, ok := c.pop()
		if !ok {
			return firstErr
		}
		if err := c.bridge.Sync(ctx, next.partitionKey, next.token); err != nil && firstErr == nil {
			firstErr = err
		}
	}
}

func (c *Coordinator) pop() (pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return pending{}, false
	}
	next := c.pending[0]
	c.pending = c.pending[1:]
	return next, true
}

// Close marks the coordinator closed: further Add calls are silently
// dropped. Callers should call Finish before Close to guarantee in-flight
// writes are flushed at the session boundary.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// OnSessionEvent is a convenience hook for wiring Finish to plain session
// lifecycle callbacks (e.g. a context.Context cancellation or an explicit
// "session ending" notification) instead of an ambient thread-local.
func (c *Coordinator) OnSessionEvent(ctx context.Context) {
	_ = c.Finish(ctx)
}
