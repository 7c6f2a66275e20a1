package ami

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTable_RegisterThenComplete(t *testing.T) {
	tbl := newPendingTable()
	s, err := tbl.register("A")
	require.NoError(t, err)

	reply := NewMessage(Pair{Key: "Response", Value: "Pong"})
	ok := tbl.complete("A", reply)
	assert.True(t, ok)

	r := s.wait()
	require.NoError(t, r.err)
	assert.True(t, reply.Equal(r.msg))
	assert.Equal(t, 0, tbl.size())
}

func TestPendingTable_CompleteUnknownIDReturnsFalse(t *testing.T) {
	tbl := newPendingTable()
	ok := tbl.complete("missing", NewMessage())
	assert.False(t, ok)
}

func TestPendingTable_DuplicateRegisterFails(t *testing.T) {
	tbl := newPendingTable()
	_, err := tbl.register("A")
	require.NoError(t, err)
	_, err = tbl.register("A")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateActionID)
}

func TestPendingTable_Cancel(t *testing.T) {
	tbl := newPendingTable()
	s, err := tbl.register("A")
	require.NoError(t, err)
	tbl.cancel("A")
	r := s.wait()
	assert.ErrorIs(t, r.err, ErrCancelled)
	assert.Equal(t, 0, tbl.size())
}

func TestPendingTable_LateReplyAfterCancelIsNotDelivered(t *testing.T) {
	tbl := newPendingTable()
	_, err := tbl.register("A")
	require.NoError(t, err)
	tbl.cancel("A")

	// A late-arriving reply with the same id is no longer in the table —
	// the dispatcher would treat it as an event (spec's Open Question,
	// resolved as "deliver as event").
	ok := tbl.complete("A", NewMessage())
	assert.False(t, ok)
}

func TestPendingTable_FailAllFulfillsEveryEntryOnce(t *testing.T) {
	tbl := newPendingTable()
	s1, err := tbl.register("A")
	require.NoError(t, err)
	s2, err := tbl.register("B")
	require.NoError(t, err)

	cause := ErrUnexpectedEOF
	tbl.failAll(cause)

	r1 := s1.wait()
	r2 := s2.wait()
	assert.ErrorIs(t, r1.err, ErrClientClosed)
	assert.ErrorIs(t, r2.err, ErrClientClosed)
	assert.Equal(t, 0, tbl.size())
}

func TestSlot_FulfilAtMostOnce(t *testing.T) {
	s := newSlot()
	s.fulfil(slotResult{msg: NewMessage()})
	s.fulfil(slotResult{err: ErrCancelled}) // must be a no-op
	r := s.wait()
	assert.NoError(t, r.err)
}
