package ami

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MykytaPozdiakov/AmiClient/internal/logging"
	"github.com/MykytaPozdiakov/AmiClient/internal/metrics"
)

// Stream is the minimal bidirectional byte stream the client needs. The
// core never dials or reconnects; it accepts an already-opened stream
// (spec: "the core accepts an already-opened bidirectional byte stream").
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithBackpressurePolicy selects the subscription hub's back-pressure
// policy. Defaults to DropOldest.
func WithBackpressurePolicy(p Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithActionIDGenerator overrides the function used to mint ActionID
// values for outbound messages that don't already carry one. ActionID
// assignment happens at Message construction time (spec: "this assignment
// happens at construction time, not at send time"), so the override is
// process-wide rather than scoped to one Client — intended for
// deterministic tests. The default mints a fresh UUID per call.
func WithActionIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			SetActionIDGenerator(gen)
		}
	}
}

// WithLogger overrides the client's structured logger. Defaults to the
// package-wide logger from internal/logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber delivery queue capacity.
func WithSubscriberBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.subBufSize = n
		}
	}
}

// WithRawObserver installs the data-sent / data-received debug hook
// (spec §6). Best effort: must not block or panic.
func WithRawObserver(fn func(direction string, b []byte)) Option {
	return func(c *Client) { c.rawObserve = fn }
}

// Client owns the stream, the writer mutex, the pending table, the
// subscription hub, and the reader task. It transitions once, irreversibly,
// from running to terminal — on clean EOF, a decode error, an I/O error, or
// explicit Dispose.
type Client struct {
	stream Stream
	wr     *writer
	fr     *framer
	pending *pendingTable
	hub    *hub

	policy      Policy
	subBufSize  int
	rawObserve  func(direction string, b []byte)
	logger      *slog.Logger

	group *errgroup.Group

	termMu        sync.Mutex
	terminal      bool
	terminalCause error
	terminalCh    chan struct{}
}

// New constructs a Client around stream and starts its reader goroutine.
// The reader owns stream for reading exclusively until the client reaches
// its terminal state.
func New(stream Stream, opts ...Option) *Client {
	c := &Client{
		stream:     stream,
		policy:     DropOldest,
		subBufSize: 64,
		logger:     logging.L(),
		terminalCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	observe := func(direction string, b []byte) {
		if c.rawObserve != nil {
			c.rawObserve(direction, b)
		}
	}

	c.pending = newPendingTable()
	c.hub = newHub(c.subBufSize, c.policy, metrics.HubDropped.Inc)
	c.hub.setCountChangeHandler(func(n int) { metrics.Subscribers.Set(float64(n)) })
	c.wr = newWriter(stream, observe)
	c.fr = newFramer(stream, observe)

	c.group = &errgroup.Group{}
	c.group.Go(func() error {
		c.readLoop()
		return nil
	})

	return c
}

// Publish is the main entry point: send action and await its reply.
//
//  1. If action lacks an ActionID, fail with ErrInvalidArgument (every
//     Message constructed via NewMessage already has one; this is a
//     defensive check for hand-built Messages).
//  2. Register the ActionID in the pending table.
//  3. The writer sends the bytes; on write failure, the client goes
//     terminal (which also removes the pending entry) and the write error
//     is returned.
//  4. Await the slot: returns the reply Message, or propagates
//     ErrCancelled / the terminal cause.
func (c *Client) Publish(ctx context.Context, action *Message) (*Message, error) {
	id := action.ActionID()
	if id == "" {
		return nil, ErrInvalidArgument
	}

	if cause, closed := c.isTerminal(); closed {
		return nil, fmt.Errorf("%w: %v", ErrClientClosed, cause)
	}

	s, err := c.pending.register(id)
	if err != nil {
		metrics.IncError(metrics.KindDuplicate)
		return nil, err
	}

	if err := c.wr.send(action); err != nil {
		// A write I/O error is terminal (spec: any I/O error on write
		// triggers termination), not local to this one request — terminate
		// fails every pending entry (including id) and completes the hub.
		c.terminate(err)
		return nil, err
	}
	metrics.MessagesSent.Inc()
	metrics.PendingRequests.Set(float64(c.pending.size()))

	resultCh := make(chan slotResult, 1)
	go func() { resultCh <- s.wait() }()

	select {
	case r := <-resultCh:
		metrics.PendingRequests.Set(float64(c.pending.size()))
		if r.err != nil {
			return nil, r.err
		}
		return r.msg, nil
	case <-ctx.Done():
		c.pending.cancel(id)
		metrics.PendingRequests.Set(float64(c.pending.size()))
		return nil, ErrCancelled
	}
}

// Subscribe registers onEvent to receive every published event, in the
// order the reader decoded them (subject to the back-pressure policy). No
// completion callback is installed; use SubscribeWithComplete to observe
// the terminal cause.
func (c *Client) Subscribe(onEvent func(*Message)) *Subscription {
	return c.hub.subscribe(onEvent, nil)
}

// SubscribeWithComplete is Subscribe plus a completion callback invoked
// exactly once, with the terminal cause, when the client reaches its
// terminal state. It is never invoked for an explicit Unsubscribe.
func (c *Client) SubscribeWithComplete(onEvent func(*Message), onComplete func(error)) *Subscription {
	return c.hub.subscribe(onEvent, onComplete)
}

// Err returns the client's terminal cause, or nil if the client is still
// running.
func (c *Client) Err() error {
	cause, _ := c.isTerminal()
	return cause
}

// Done returns a channel closed once the client reaches its terminal state.
func (c *Client) Done() <-chan struct{} { return c.terminalCh }

// Dispose triggers an explicit terminal transition and waits for the
// reader goroutine to exit. Idempotent.
func (c *Client) Dispose() error {
	c.terminate(errors.New("ami: disposed by caller"))
	_ = c.group.Wait()
	return nil
}

func (c *Client) isTerminal() (error, bool) {
	c.termMu.Lock()
	defer c.termMu.Unlock()
	return c.terminalCause, c.terminal
}

// terminate performs the one-time terminal transition: records the cause,
// closes the stream (idempotently), fails every pending request, completes
// every subscriber, and signals Done(). Safe to call multiple times and
// concurrently; only the first call has effect.
func (c *Client) terminate(cause error) {
	c.termMu.Lock()
	if c.terminal {
		c.termMu.Unlock()
		return
	}
	c.terminal = true
	c.terminalCause = cause
	c.termMu.Unlock()

	c.logger.Info("ami_terminal", "cause", cause)
	metrics.IncTerminal(classifyCause(cause))

	_ = c.stream.Close()
	c.pending.failAll(cause)
	c.hub.complete(cause)
	close(c.terminalCh)
}

// readLoop runs from construction until terminal: Framer.next() →
// DecodeMessage() → dispatch(). It owns the stream for reading exclusively.
func (c *Client) readLoop() {
	c.logger.Debug("ami_reader_start")
	for {
		frame, err := c.fr.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.terminate(io.EOF)
			} else {
				c.terminate(err)
			}
			c.logger.Debug("ami_reader_stop")
			return
		}

		msg, err := DecodeMessage(frame)
		if err != nil {
			metrics.IncError(metrics.KindMalformed)
			c.terminate(err)
			c.logger.Debug("ami_reader_stop")
			return
		}

		metrics.MessagesReceived.Inc()
		c.dispatch(msg)
	}
}

// dispatch classifies a decoded Message as a reply (matches a pending
// request) or an event (no match) and routes it. A reply is never also
// published to the hub — see spec §4.D.
func (c *Client) dispatch(msg *Message) {
	id := msg.ActionID()
	if id != "" && c.pending.complete(id, msg) {
		metrics.Replies.Inc()
		c.logger.Debug("ami_dispatch_reply", "action_id", id)
		return
	}
	metrics.Events.Inc()
	c.logger.Debug("ami_dispatch_event", "action_id", id, "event", msg.Get("Event"))
	c.hub.publish(msg)
}

func classifyCause(cause error) string {
	switch {
	case errors.Is(cause, io.EOF):
		return "eof"
	case errors.Is(cause, ErrMalformedMessage):
		return "malformed"
	case errors.Is(cause, ErrUnexpectedEOF):
		return "unexpected_eof"
	case errors.Is(cause, ErrIO):
		return "io"
	default:
		return "disposed"
	}
}
