package ami

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// terminator is the four-byte sequence that ends an AMI packet on the wire.
const terminator = "\r\n\r\n"

// sep is the header line separator: a colon followed by one space.
const sep = ": "

// actionIDKey is the field every outbound Message carries.
const actionIDKey = "ActionID"

// Pair is one ordered (key, value) field of a Message.
type Pair struct {
	Key   string
	Value string
}

// Message is an ordered sequence of (key, value) string pairs plus an
// immutable creation timestamp. Order is preserved on both read and write;
// duplicate keys are permitted. Key comparisons are case-insensitive; values
// are compared verbatim.
type Message struct {
	pairs     []Pair
	createdAt time.Time
}

// actionIDGenerator produces fresh ActionID values. Overridable via
// SetActionIDGenerator (or the Client option WithActionIDGenerator) for
// deterministic tests.
var actionIDGenerator = func() string { return uuid.New().String() }

// SetActionIDGenerator replaces the process-wide ActionID generator used
// by NewMessage. Intended for deterministic tests; production code should
// leave the default UUID generator in place.
func SetActionIDGenerator(gen func() string) {
	if gen != nil {
		actionIDGenerator = gen
	}
}

// NewMessage builds an outbound Message from the given pairs, in order. If
// no ActionID pair is present, one is auto-assigned at construction time
// using the package's ActionID generator (a fresh UUID in 8-4-4-4-12 hex
// form by default).
func NewMessage(pairs ...Pair) *Message {
	m := &Message{
		pairs:     append([]Pair(nil), pairs...),
		createdAt: time.Now(),
	}
	if m.Get(actionIDKey) == "" {
		m.Set(actionIDKey, actionIDGenerator())
	}
	return m
}

// newParsedMessage builds a Message from already-split pairs without
// assigning an ActionID — used by Decode, where ActionID is simply one of
// the parsed fields (possibly absent, e.g. unsolicited events).
func newParsedMessage(pairs []Pair) *Message {
	return &Message{pairs: pairs, createdAt: time.Now()}
}

// CreatedAt returns the Message's construction timestamp.
func (m *Message) CreatedAt() time.Time { return m.createdAt }

// Get returns the value of the first pair whose key matches key
// case-insensitively, or "" if none match.
func (m *Message) Get(key string) string {
	for _, p := range m.pairs {
		if strings.EqualFold(p.Key, key) {
			return p.Value
		}
	}
	return ""
}

// Has reports whether key is present, case-insensitively.
func (m *Message) Has(key string) bool {
	for _, p := range m.pairs {
		if strings.EqualFold(p.Key, key) {
			return true
		}
	}
	return false
}

// Set replaces the value of the first pair whose key matches key
// case-insensitively, or appends a new pair if none matches.
func (m *Message) Set(key, value string) {
	for i, p := range m.pairs {
		if strings.EqualFold(p.Key, key) {
			m.pairs[i].Value = value
			return
		}
	}
	m.pairs = append(m.pairs, Pair{Key: key, Value: value})
}

// Add appends a new pair unconditionally, permitting duplicate keys.
func (m *Message) Add(key, value string) {
	m.pairs = append(m.pairs, Pair{Key: key, Value: value})
}

// Pairs returns the ordered pairs backing this Message. The returned slice
// is a copy; mutating it does not affect the Message.
func (m *Message) Pairs() []Pair {
	return append([]Pair(nil), m.pairs...)
}

// ActionID returns the Message's ActionID field, or "" if absent.
func (m *Message) ActionID() string { return m.Get(actionIDKey) }

// Equal reports whether m and other carry the same ordered sequence of
// pairs. Used by round-trip codec tests.
func (m *Message) Equal(other *Message) bool {
	if other == nil || len(m.pairs) != len(other.pairs) {
		return false
	}
	for i, p := range m.pairs {
		if p != other.pairs[i] {
			return false
		}
	}
	return true
}

// Encode serializes the Message deterministically, in field order, as CRLF
// header lines terminated by a blank line (CRLFCRLF).
func (m *Message) Encode() []byte {
	var b strings.Builder
	for _, p := range m.pairs {
		b.WriteString(p.Key)
		b.WriteString(sep)
		b.WriteString(p.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// DecodeMessage parses a single complete frame (the bytes between packet
// boundaries, with no trailing blank line — the framer strips that). It
// returns ErrMalformedMessage if any non-empty line lacks a colon; the
// connect banner is not recognised here (the framer discards it).
func DecodeMessage(frame []byte) (*Message, error) {
	return decodeString(string(frame))
}

// DecodeMessageString is the string form of DecodeMessage.
func DecodeMessageString(frame string) (*Message, error) {
	return decodeString(frame)
}

func decodeString(frame string) (*Message, error) {
	frame = strings.TrimRight(frame, "\r\n")
	if frame == "" {
		return newParsedMessage(nil), nil
	}
	lines := strings.Split(frame, "\n")
	pairs := make([]Pair, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, fmt.Errorf("%w: header line missing colon: %q", ErrMalformedMessage, line)
		}
		key := line[:idx]
		value := strings.TrimSpace(line[idx+1:])
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	return newParsedMessage(pairs), nil
}
