package ami

import (
	"bytes"
	"fmt"
	"io"
)

// maxFrameSize is the framer's buffer cap (spec: an implementation SHOULD
// cap it, e.g. 1 MiB, and raise ErrMalformedMessage if a single frame would
// exceed the cap).
const maxFrameSize = 1 << 20

// rawObserver receives the exact bytes read off (or written to) the stream,
// for the data-sent / data-received debug hook. Best effort: the observer
// must not block or panic the caller.
type rawObserver func(direction string, b []byte)

// framer splits an inbound byte stream into message-sized frames on the
// CRLFCRLF boundary. It also tolerates the AMI connect banner: the first
// inbound line, if it is not itself a well-formed "Key: Value" header, is
// discarded rather than surfaced as a frame.
type framer struct {
	r          io.Reader
	buf        []byte
	bannerSeen bool
	observe    rawObserver
	readBuf    [4096]byte
}

func newFramer(r io.Reader, observe rawObserver) *framer {
	return &framer{r: r, observe: observe}
}

// next blocks until a full frame is available, returning the frame bytes
// without the trailing CRLFCRLF. It returns io.EOF for clean termination
// (EOF on an empty buffer) and ErrUnexpectedEOF for EOF mid-frame.
func (f *framer) next() ([]byte, error) {
	for {
		if !f.bannerSeen {
			if consumed := f.tryDiscardBanner(); consumed {
				continue
			}
		}

		if idx := bytes.Index(f.buf, []byte(terminator)); idx >= 0 {
			frame := append([]byte(nil), f.buf[:idx]...)
			f.buf = append([]byte(nil), f.buf[idx+len(terminator):]...)
			return frame, nil
		}

		if len(f.buf) > maxFrameSize {
			return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformedMessage, maxFrameSize)
		}

		n, err := f.r.Read(f.readBuf[:])
		if n > 0 {
			chunk := f.readBuf[:n]
			if f.observe != nil {
				f.observe("data-received", append([]byte(nil), chunk...))
			}
			f.buf = append(f.buf, chunk...)
		}
		if err != nil {
			if n > 0 {
				continue // drain what's buffered before surfacing the error
			}
			if err == io.EOF {
				if len(f.buf) == 0 {
					return nil, io.EOF
				}
				return nil, ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
}

// tryDiscardBanner inspects the first line of the buffer, if a complete
// line is available. If it looks like the AMI connect banner (no colon
// header), it is stripped from the buffer and true is returned so the
// caller re-evaluates framing from scratch. If a full line isn't available
// yet, false is returned and bannerSeen stays unset, so the check runs again
// once more bytes arrive. If the line looks like a real header, bannerSeen
// is set and false is returned (no bytes consumed) so normal CRLFCRLF
// framing takes over.
func (f *framer) tryDiscardBanner() bool {
	nl := bytes.IndexByte(f.buf, '\n')
	if nl < 0 {
		return false
	}
	line := bytes.TrimRight(f.buf[:nl], "\r")
	f.bannerSeen = true
	if len(line) == 0 || bytes.IndexByte(line, ':') < 0 {
		f.buf = f.buf[nl+1:]
		return true
	}
	return false
}
