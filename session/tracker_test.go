package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronwong1989/gomodbus/codec/tcp"
)

func TestTracker_OutOfOrder(t *testing.T) {
	tr := NewTracker(0)
	a, err := tr.Register(1, 0x03)
	require.NoError(t, err)
	b, err := tr.Register(1, 0x04)
	require.NoError(t, err)
	assert.NotEqual(t, a.TransactionId, b.TransactionId)
	assert.Equal(t, 2, tr.Outstanding())

	require.NoError(t, tr.Complete(tcp.Header{TransactionId: b.TransactionId, UnitId: 1}, []byte{0x04}))
	require.NoError(t, tr.Complete(tcp.Header{TransactionId: a.TransactionId, UnitId: 1}, []byte{0x03}))

	assert.Equal(t, []byte{0x03}, (<-a.Done()).Pdu)
	assert.Equal(t, []byte{0x04}, (<-b.Done()).Pdu)

	stats := tr.Stats()
	assert.Equal(t, int64(2), stats.TotalSent)
	assert.Equal(t, int64(2), stats.TotalCompleted)
	assert.Equal(t, 0, stats.Outstanding)
}

func TestTracker_Full(t *testing.T) {
	tr := NewTracker(1)
	_, err := tr.Register(1, 0x03)
	require.NoError(t, err)
	_, err = tr.Register(1, 0x03)
	assert.ErrorIs(t, err, ErrPipelineFull)
}

func TestTracker_Unknown(t *testing.T) {
	tr := NewTracker(0)
	err := tr.Complete(tcp.Header{TransactionId: 42}, nil)
	assert.ErrorIs(t, err, ErrUnknownTransaction)
}

func TestTracker_UnitMismatch(t *testing.T) {
	tr := NewTracker(0)
	p, err := tr.Register(1, 0x03)
	require.NoError(t, err)
	err = tr.Complete(tcp.Header{TransactionId: p.TransactionId, UnitId: 2}, nil)
	assert.ErrorIs(t, err, ErrUnitMismatch)
	assert.Equal(t, 1, tr.Outstanding())
}

func TestTracker_Cancel(t *testing.T) {
	tr := NewTracker(0)
	p, err := tr.Register(1, 0x03)
	require.NoError(t, err)
	tr.Cancel(p.TransactionId)
	assert.Equal(t, 0, tr.Outstanding())
	assert.Equal(t, int64(1), tr.Stats().TotalCancelled)

	err = tr.Complete(tcp.Header{TransactionId: p.TransactionId, UnitId: 1}, nil)
	assert.ErrorIs(t, err, ErrUnknownTransaction)
}

func TestTracker_SkipsInFlightIds(t *testing.T) {
	tr := NewTracker(0)
	first, err := tr.Register(1, 0x03)
	require.NoError(t, err)
	// 让序号绕回到第一个仍在途的事务号
	for i := 0; i < 0xFFFE; i++ {
		p, err := tr.Register(1, 0x03)
		require.NoError(t, err)
		tr.Cancel(p.TransactionId)
	}
	p, err := tr.Register(1, 0x03)
	require.NoError(t, err)
	assert.NotEqual(t, first.TransactionId, p.TransactionId)
}
