package ami

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockingBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockingBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockingBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriter_SendWritesFullEncoding(t *testing.T) {
	var buf bytes.Buffer
	wr := newWriter(&buf, nil)
	m := NewMessage(Pair{Key: "Action", Value: "Ping"}, Pair{Key: "ActionID", Value: "A"})
	require.NoError(t, wr.send(m))
	assert.Equal(t, string(m.Encode()), buf.String())
}

func TestWriter_SendPropagatesIOError(t *testing.T) {
	wr := newWriter(errWriter{}, nil)
	err := wr.send(NewMessage(Pair{Key: "Action", Value: "Ping"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
}

// TestWriter_ConcurrentSendsDoNotInterleave exercises invariant 5: under N
// concurrent sends, the wire output is a permutation of the inputs with no
// interleaving of any single message's bytes.
func TestWriter_ConcurrentSendsDoNotInterleave(t *testing.T) {
	lb := &lockingBuffer{}
	wr := newWriter(lb, nil)

	const n = 50
	msgs := make([]*Message, n)
	for i := 0; i < n; i++ {
		msgs[i] = NewMessage(Pair{Key: "Action", Value: "Ping"}, Pair{Key: "Seq", Value: string(rune('A' + i%26))})
	}

	var wg sync.WaitGroup
	for _, m := range msgs {
		m := m
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, wr.send(m))
		}()
	}
	wg.Wait()

	out := string(lb.Bytes())
	for _, m := range msgs {
		assert.Contains(t, out, string(m.Encode()))
	}
	// Every frame boundary must be exact: splitting on the terminator
	// should yield exactly n non-empty frames (n-1 internal boundaries plus
	// the final trailing split).
	frames := bytes.Split(lb.Bytes(), []byte(terminator))
	nonEmpty := 0
	for _, f := range frames {
		if len(f) > 0 {
			nonEmpty++
		}
	}
	assert.Equal(t, n, nonEmpty)
}
