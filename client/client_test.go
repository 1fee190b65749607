package client

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronwong1989/gomodbus/codec"
	"github.com/aaronwong1989/gomodbus/codec/tcp"
)

// readRequests 在管道另一端读取指定数量的请求ADU
func readRequests(t *testing.T, conn net.Conn, n int) []codec.Adu[tcp.Header] {
	var adus []codec.Adu[tcp.Header]
	var buf []byte
	chunk := make([]byte, 64)
	for len(adus) < n {
		k, err := conn.Read(chunk)
		if err != nil {
			t.Errorf("read request: %v", err)
			return adus
		}
		buf = append(buf, chunk[:k]...)
		got, rest, err := codec.Split[tcp.Header](tcp.Framing{}, buf)
		if err != nil {
			t.Errorf("split request: %v", err)
			return adus
		}
		for _, adu := range got {
			adu.Pdu = append([]byte(nil), adu.Pdu...)
			adus = append(adus, adu)
		}
		buf = append([]byte(nil), rest...)
	}
	return adus
}

func TestClient_Send(t *testing.T) {
	local, remote := net.Pipe()
	c := New(local)
	defer c.Close()

	go func() {
		reqs := readRequests(t, remote, 1)
		if len(reqs) == 0 {
			return
		}
		h := reqs[0].Header
		resp := tcp.NewAdu(h.TransactionId, h.UnitId, []byte{0x03, 0x02, 0x00, 0x2A})
		// 分两次写入，验证客户端的累积读取
		_, _ = remote.Write(resp[:5])
		_, _ = remote.Write(resp[5:])
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pdu, err := c.Send(ctx, 0x11, []byte{0x03, 0x00, 0x00, 0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x02, 0x00, 0x2A}, pdu)
	assert.Equal(t, int64(1), c.Stats().TotalCompleted)
}

func TestClient_OutOfOrder(t *testing.T) {
	local, remote := net.Pipe()
	c := New(local)
	defer c.Close()

	go func() {
		reqs := readRequests(t, remote, 2)
		// 逆序应答，并合并到一次写入
		var out []byte
		for i := len(reqs) - 1; i >= 0; i-- {
			h := reqs[i].Header
			out = append(out, tcp.NewAdu(h.TransactionId, h.UnitId, reqs[i].Pdu)...)
		}
		_, _ = remote.Write(out)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results := make(chan []byte, 2)
	for _, fc := range []byte{0x03, 0x04} {
		fc := fc
		go func() {
			pdu, err := c.Send(ctx, 1, []byte{fc, 0x00, 0x00, 0x00, 0x01})
			if err != nil {
				results <- nil
				return
			}
			assert.Equal(t, fc, pdu[0])
			results <- pdu
		}()
	}
	for i := 0; i < 2; i++ {
		assert.NotNil(t, <-results)
	}
}

func TestClient_ContextCancel(t *testing.T) {
	local, remote := net.Pipe()
	c := New(local)
	defer c.Close()
	go func() {
		_, _ = io.Copy(io.Discard, remote)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Send(ctx, 1, []byte{0x03, 0x00, 0x00, 0x00, 0x01})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, c.Stats().Outstanding)
}

func TestClient_FramingError(t *testing.T) {
	local, remote := net.Pipe()
	c := New(local)
	defer c.Close()

	go func() {
		_ = readRequests(t, remote, 1)
		// 长度字段超过最大ADU
		_, _ = remote.Write([]byte{0x00, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Send(ctx, 1, []byte{0x03, 0x00, 0x00, 0x00, 0x01})
	assert.ErrorIs(t, err, codec.ErrAduTooLong)
}

func TestClient_Closed(t *testing.T) {
	local, remote := net.Pipe()
	c := New(local)
	_ = remote.Close()
	require.NoError(t, c.Close())

	_, err := c.Send(context.Background(), 1, []byte{0x03})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_PduTooLong(t *testing.T) {
	local, _ := net.Pipe()
	c := New(local)
	defer c.Close()
	_, err := c.Send(context.Background(), 1, make([]byte, 254))
	assert.ErrorIs(t, err, codec.ErrAduTooLong)
}
