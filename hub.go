package ami

import "sync"

// Policy selects the subscription hub's back-pressure behavior when a
// subscriber's queue is full. DropOldest (the default) evicts the oldest
// queued event for that subscriber and keeps the reader moving; BlockReader
// makes the reader wait for the slow subscriber to drain, which is only
// appropriate when a caller needs strict delivery and accepts the
// reader-wide stall it implies.
type Policy int

const (
	// DropOldest evicts the oldest queued event for a full subscriber,
	// preserving order among delivered events but allowing skips. This is
	// the chief back-pressure contract of the hub and the default.
	DropOldest Policy = iota
	// BlockReader delivers to a full subscriber by waiting, stalling the
	// shared reader for every other subscriber and every pending reply
	// until the slow subscriber drains. Select only when strict,
	// undropped delivery matters more than reader liveness.
	BlockReader
)

// Subscription is a handle returned by Client.Subscribe. Disposing it (via
// Unsubscribe) removes the subscriber from the hub; its completion callback,
// if any, does not fire for an explicit unsubscribe, only for a terminal client
// transition.
type Subscription struct {
	hub      *hub
	observer *observer
	once     sync.Once
}

// Unsubscribe removes this subscription from the hub. Idempotent.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s.observer)
	})
}

// observer is one registered subscriber: an event callback, an optional
// completion callback, and its delivery queue. Events are drained from
// queue to callback on a dedicated goroutine, so hub.publish (called from
// the reader) never blocks on a slow callback under DropOldest.
type observer struct {
	onEvent    func(*Message)
	onComplete func(error)
	queue      chan *Message
	policy     Policy
	done       chan struct{}
	closeOnce  sync.Once
}

// stop ends the drain goroutine without firing onComplete (explicit
// unsubscribe).
func (o *observer) stop() {
	o.closeOnce.Do(func() { close(o.done) })
}

// completeWith ends the drain goroutine and fires onComplete(cause) exactly
// once (terminal transition).
func (o *observer) completeWith(cause error) {
	fired := false
	o.closeOnce.Do(func() {
		close(o.done)
		fired = true
	})
	if fired && o.onComplete != nil {
		o.onComplete(cause)
	}
}

func (o *observer) run() {
	for {
		select {
		case m, ok := <-o.queue:
			if !ok {
				return
			}
			o.onEvent(m)
		case <-o.done:
			return
		}
	}
}

// deliver enqueues m for this observer according to its policy. Never
// blocks under DropOldest; may block the caller (the reader) under
// BlockReader.
func (o *observer) deliver(m *Message, onDrop func()) {
	switch o.policy {
	case BlockReader:
		select {
		case o.queue <- m:
		case <-o.done:
		}
	default: // DropOldest
		for {
			select {
			case o.queue <- m:
				return
			default:
			}
			select {
			case <-o.queue:
				if onDrop != nil {
					onDrop()
				}
			default:
			}
		}
	}
}

// hub maintains the current set of event subscribers and fans out each
// published event to all of them without blocking the reader (unless the
// hub's policy, shared by every subscriber, is BlockReader). Iteration for delivery takes a
// snapshot of the subscriber set so publish never holds the set mutex
// during callbacks.
type hub struct {
	mu            sync.RWMutex
	observers     map[*observer]*Subscription
	bufSize       int
	defaultPol    Policy
	onDrop        func()
	onCountChange func(int)
	terminal      bool
	terminalErr   error
}

func newHub(bufSize int, defaultPolicy Policy, onDrop func()) *hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &hub{
		observers:  make(map[*observer]*Subscription),
		bufSize:    bufSize,
		defaultPol: defaultPolicy,
		onDrop:     onDrop,
	}
}

// setCountChangeHandler installs a callback invoked with the current
// subscriber count whenever it changes (subscribe, remove, complete).
func (h *hub) setCountChangeHandler(fn func(int)) {
	h.mu.Lock()
	h.onCountChange = fn
	h.mu.Unlock()
}

// subscribe registers onEvent (and optional onComplete) as a new subscriber
// and starts its drain goroutine.
func (h *hub) subscribe(onEvent func(*Message), onComplete func(error)) *Subscription {
	o := &observer{
		onEvent:    onEvent,
		onComplete: onComplete,
		queue:      make(chan *Message, h.bufSize),
		policy:     h.defaultPol,
		done:       make(chan struct{}),
	}
	sub := &Subscription{hub: h, observer: o}

	h.mu.Lock()
	terminal := h.terminal
	cause := h.terminalErr
	if !terminal {
		h.observers[o] = sub
	}
	n, onCountChange := len(h.observers), h.onCountChange
	h.mu.Unlock()

	if terminal {
		o.completeWith(cause)
		return sub
	}
	if onCountChange != nil {
		onCountChange(n)
	}
	go o.run()
	return sub
}

// remove unregisters an observer and stops its drain goroutine without
// firing onComplete.
func (h *hub) remove(o *observer) {
	h.mu.Lock()
	delete(h.observers, o)
	n, onCountChange := len(h.observers), h.onCountChange
	h.mu.Unlock()
	if onCountChange != nil {
		onCountChange(n)
	}
	o.stop()
}

// publish delivers msg to every current subscriber. Snapshotting the set
// avoids holding the mutex during delivery.
func (h *hub) publish(msg *Message) {
	h.mu.RLock()
	if h.terminal {
		h.mu.RUnlock()
		return
	}
	snapshot := make([]*observer, 0, len(h.observers))
	for o := range h.observers {
		snapshot = append(snapshot, o)
	}
	h.mu.RUnlock()

	for _, o := range snapshot {
		o.deliver(msg, h.onDrop)
	}
}

// complete signals completion-with-cause to every subscriber and empties
// the set. A subscribe call racing a completed hub receives an
// already-completed subscription (onComplete fires immediately).
func (h *hub) complete(cause error) {
	h.mu.Lock()
	if h.terminal {
		h.mu.Unlock()
		return
	}
	h.terminal = true
	h.terminalErr = cause
	observers := h.observers
	h.observers = make(map[*observer]*Subscription)
	onCountChange := h.onCountChange
	h.mu.Unlock()

	if onCountChange != nil {
		onCountChange(0)
	}
	for o := range observers {
		o.completeWith(cause)
	}
}

// count returns the number of active subscribers (for metrics/tests).
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}
