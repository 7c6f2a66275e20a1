package ami

import (
	"fmt"
	"sync"
)

// slotResult is what a pending request's slot is fulfilled with: exactly
// one of a reply Message or an error (Cancelled, or a terminal cause).
type slotResult struct {
	msg *Message
	err error
}

// slot is a single-shot rendezvous for one reply. Only the first call to
// fulfil has effect; later calls are no-ops.
type slot struct {
	ch   chan slotResult
	once sync.Once
}

func newSlot() *slot {
	return &slot{ch: make(chan slotResult, 1)}
}

func (s *slot) fulfil(r slotResult) {
	s.once.Do(func() {
		s.ch <- r
	})
}

// wait blocks until the slot is fulfilled; it takes no context. A caller
// that stops waiting is responsible for removing the pending entry (the
// Client does this via cancel, which also fulfils the slot).
func (s *slot) wait() slotResult {
	return <-s.ch
}

// pendingTable maps request ActionID to a one-shot reply slot. Register,
// complete, and cancel are serialized against each other by one mutex;
// fulfilment of a slot always happens outside that mutex.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*slot
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*slot)}
}

// register inserts a new entry for id. It fails with ErrDuplicateActionID
// if an entry already exists for id.
func (t *pendingTable) register(id string) (*slot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateActionID, id)
	}
	s := newSlot()
	t.entries[id] = s
	return s, nil
}

// complete removes the entry for id, if present, and fulfils its slot with
// msg. Returns false if no entry exists for id (the caller should then
// treat msg as an event).
func (t *pendingTable) complete(id string, msg *Message) bool {
	t.mu.Lock()
	s, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	s.fulfil(slotResult{msg: msg})
	return true
}

// cancel removes the entry for id, if present, and fulfils its slot with
// ErrCancelled.
func (t *pendingTable) cancel(id string) {
	t.mu.Lock()
	s, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if ok {
		s.fulfil(slotResult{err: ErrCancelled})
	}
}

// failAll removes every entry and fulfils each with cause, wrapped as
// ErrClientClosed. Used on terminal transition.
func (t *pendingTable) failAll(cause error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*slot)
	t.mu.Unlock()
	err := fmt.Errorf("%w: %v", ErrClientClosed, cause)
	for _, s := range entries {
		s.fulfil(slotResult{err: err})
	}
}

// size returns the number of outstanding entries (for metrics/tests).
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
