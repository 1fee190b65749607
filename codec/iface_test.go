package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronwong1989/gomodbus/codec"
	"github.com/aaronwong1989/gomodbus/codec/rtu"
	"github.com/aaronwong1989/gomodbus/codec/tcp"
)

func TestNext(t *testing.T) {
	data := tcp.NewAdu(7, 0x11, []byte{0x03, 0x00, 0x00, 0x00, 0x02})
	adu, err := codec.Next[tcp.Header](tcp.Framing{}, data)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), adu.Header.TransactionId)
	assert.Equal(t, uint8(0x11), adu.Header.UnitId)
	assert.Equal(t, []byte{0x03, 0x00, 0x00, 0x00, 0x02}, adu.Pdu)
	assert.Equal(t, len(data), adu.Length)

	_, err = codec.Next[tcp.Header](tcp.Framing{}, data[:len(data)-1])
	assert.True(t, codec.IsRetryable(err))
}

func TestNext_TooLong(t *testing.T) {
	data := make([]byte, 300)
	header := tcp.Header{TransactionId: 1, Length: 280, UnitId: 1}
	copy(data, header.Encode())

	_, err := codec.Next[tcp.Header](tcp.Framing{}, data)
	assert.ErrorIs(t, err, codec.ErrAduTooLong)
	assert.False(t, codec.IsRetryable(err))

	// the limit applies before the ADU has fully arrived
	_, err = codec.Next[tcp.Header](tcp.Framing{}, data[:tcp.HeadLength])
	assert.ErrorIs(t, err, codec.ErrAduTooLong)
}

func TestSplit(t *testing.T) {
	var stream []byte
	stream = append(stream, tcp.NewAdu(1, 1, []byte{0x03, 0x00, 0x00, 0x00, 0x01})...)
	stream = append(stream, tcp.NewAdu(2, 1, []byte{0x06, 0x00, 0x01, 0x00, 0x03})...)
	tail := tcp.NewAdu(3, 1, []byte{0x01, 0x00, 0x00, 0x00, 0x08})
	stream = append(stream, tail[:4]...)

	adus, rest, err := codec.Split[tcp.Header](tcp.Framing{}, stream)
	require.NoError(t, err)
	require.Len(t, adus, 2)
	assert.Equal(t, uint16(1), adus[0].Header.TransactionId)
	assert.Equal(t, uint16(2), adus[1].Header.TransactionId)
	assert.Equal(t, byte(0x06), adus[1].Pdu[0])
	assert.Equal(t, tail[:4], rest)
}

func TestSplit_Rtu(t *testing.T) {
	stream := rtu.NewAdu(1, []byte{0x03, 0x00, 0x00, 0x00, 0x0A})
	bad := rtu.NewAdu(2, []byte{0x05, 0x00, 0x01, 0xFF, 0x00})
	bad[len(bad)-2] ^= 0x01
	stream = append(stream, bad...)

	adus, rest, err := codec.Split[rtu.Header](rtu.Framing{}, stream)
	assert.ErrorIs(t, err, codec.ErrChecksumMismatch)
	require.Len(t, adus, 1)
	assert.Equal(t, uint8(1), adus[0].Header.UnitId)
	assert.Equal(t, bad, rest)
}

func TestSplit_Empty(t *testing.T) {
	adus, rest, err := codec.Split[tcp.Header](tcp.Framing{}, nil)
	assert.NoError(t, err)
	assert.Empty(t, adus)
	assert.Empty(t, rest)
}
