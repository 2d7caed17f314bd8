package hub

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultRequestTimeout applies to callbacks registered without an explicit
// timeout.
const DefaultRequestTimeout = 30 * time.Second

// ResultCallback receives the outcome of one request. Exactly one of three
// things invokes it: a matching result frame, the request timeout, or a
// disconnect flush.
type ResultCallback func(success bool, result json.RawMessage, rpcErr *RPCError)

// pendingEntry tracks one in-flight request.
type pendingEntry struct {
	cb    ResultCallback
	timer *time.Timer
}

// pendingTable correlates request ids with their callbacks. At most one
// callback may exist per id; ids are never reused while pending.
type pendingTable struct {
	mu      sync.Mutex
	entries map[int64]*pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		entries: make(map[int64]*pendingEntry),
	}
}

// Register stores cb keyed by id and arms its timeout. If no response
// arrives before the timer fires, cb is invoked with a timeout RPCError and
// removed.
func (p *pendingTable) Register(id int64, cb ResultCallback, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	p.mu.Lock()
	entry := &pendingEntry{cb: cb}
	// Armed under the lock: even an immediate fire blocks in take until
	// the entry is in the map. take() arbitrates against a concurrent
	// Resolve or Clear; whoever removes the entry invokes the callback.
	entry.timer = time.AfterFunc(timeout, func() {
		if e := p.take(id); e != nil {
			e.cb(false, nil, &RPCError{Code: CodeTimeout, Message: "Request timed out"})
		}
	})
	p.entries[id] = entry
	p.mu.Unlock()
}

// Resolve invokes and removes the callback registered for id, cancelling its
// timer. It reports whether a callback was found; the caller uses this to
// know whether the frame should instead be routed as a registry-load
// response.
func (p *pendingTable) Resolve(id int64, success bool, result json.RawMessage, rpcErr *RPCError) bool {
	e := p.take(id)
	if e == nil {
		return false
	}
	e.cb(success, result, rpcErr)
	return true
}

// Clear flushes every still-pending callback with a disconnected error and
// empties the table. No callback is ever silently dropped.
func (p *pendingTable) Clear() {
	p.mu.Lock()
	flushed := make([]*pendingEntry, 0, len(p.entries))
	for id, e := range p.entries {
		e.timer.Stop()
		flushed = append(flushed, e)
		delete(p.entries, id)
	}
	p.mu.Unlock()

	// Invoke outside the lock; callbacks may re-enter the client.
	for _, e := range flushed {
		e.cb(false, nil, &RPCError{Code: CodeDisconnected, Message: "WebSocket disconnected"})
	}
}

// Len returns the number of in-flight requests.
func (p *pendingTable) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// take removes and returns the entry for id, stopping its timer. Returns nil
// if the id is not pending (already resolved, timed out, or flushed).
func (p *pendingTable) take(id int64) *pendingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		return nil
	}
	e.timer.Stop()
	delete(p.entries, id)
	return e
}
