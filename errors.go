package ami

import "errors"

// Sentinel errors classifying client failures. Wrap with fmt.Errorf("%w: ...")
// where a cause needs to travel with the sentinel; callers classify with
// errors.Is.
var (
	// ErrMalformedMessage is returned when a decoded frame has a header line
	// with no colon separator, or a frame exceeds the framer's size cap.
	// Terminal.
	ErrMalformedMessage = errors.New("ami: malformed message")

	// ErrUnexpectedEOF is returned when the stream ends mid-frame. Terminal.
	ErrUnexpectedEOF = errors.New("ami: unexpected eof")

	// ErrIO marks a read or write failure on the underlying stream; the
	// error's message includes the underlying failure. Terminal.
	ErrIO = errors.New("ami: io error")

	// ErrDuplicateActionID is returned when a caller issues a second publish
	// with an ActionID already outstanding. Local: the first request is
	// untouched.
	ErrDuplicateActionID = errors.New("ami: duplicate action id")

	// ErrInvalidArgument is returned when a required field is missing at
	// publish time. Local.
	ErrInvalidArgument = errors.New("ami: invalid argument")

	// ErrCancelled is returned when a caller's wait for a reply is cancelled.
	// Local.
	ErrCancelled = errors.New("ami: cancelled")

	// ErrClientClosed is returned by Publish after the client has reached
	// its terminal state. The error's message includes the terminal cause;
	// errors.Is matches ErrClientClosed, not the cause itself.
	ErrClientClosed = errors.New("ami: client closed")
)
