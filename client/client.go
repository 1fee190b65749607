// Package client implements a Modbus/TCP client. Requests may be pipelined;
// responses are matched to requests by transaction id.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/aaronwong1989/gomodbus/codec"
	"github.com/aaronwong1989/gomodbus/codec/tcp"
	"github.com/aaronwong1989/gomodbus/comm"
	"github.com/aaronwong1989/gomodbus/comm/logging"
	"github.com/aaronwong1989/gomodbus/session"
)

var log = logging.GetDefaultLogger()

var ErrClosed = errors.New("client closed")

const readChunk = 512

type options struct {
	maxOutstanding int
}

type Option func(*options)

// WithMaxOutstanding limits the number of pipelined requests.
func WithMaxOutstanding(n int) Option {
	return func(o *options) {
		o.maxOutstanding = n
	}
}

type Client struct {
	conn    net.Conn
	framing tcp.Framing
	tracker *session.Tracker

	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
	err     error
}

// Dial connects to a Modbus/TCP server.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, opts...), nil
}

// New takes ownership of conn and starts reading responses from it.
func New(conn net.Conn, opts ...Option) *Client {
	o := options{maxOutstanding: 16}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{
		conn:    conn,
		framing: tcp.Framing{},
		tracker: session.NewTracker(o.maxOutstanding),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Send writes pdu to unitId and waits for the matching response PDU.
// Exception responses are returned as they are.
func (c *Client) Send(ctx context.Context, unitId uint8, pdu []byte) ([]byte, error) {
	if len(pdu) == 0 {
		return nil, errors.New("empty pdu")
	}
	if len(pdu)+tcp.HeadLength > tcp.AduMaxLength {
		return nil, fmt.Errorf("%w: pdu of %d bytes", codec.ErrAduTooLong, len(pdu))
	}
	select {
	case <-c.closed:
		return nil, c.closeErr()
	default:
	}
	p, err := c.tracker.Register(unitId, pdu[0])
	if err != nil {
		return nil, err
	}
	adu := tcp.NewAdu(p.TransactionId, unitId, pdu)
	comm.LogHex(logging.DebugLevel, "Request", adu)

	c.writeMu.Lock()
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)
	_, err = c.conn.Write(adu)
	c.writeMu.Unlock()
	if err != nil {
		c.tracker.Cancel(p.TransactionId)
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp := <-p.Done():
		return resp.Pdu, nil
	case <-ctx.Done():
		c.tracker.Cancel(p.TransactionId)
		return nil, ctx.Err()
	case <-c.closed:
		c.tracker.Cancel(p.TransactionId)
		return nil, c.closeErr()
	}
}

// Stats reports the request pipeline counters.
func (c *Client) Stats() session.Stats {
	return c.tracker.Stats()
}

func (c *Client) Close() error {
	err := c.conn.Close()
	c.shutdown(ErrClosed)
	return err
}

func (c *Client) shutdown(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.closed)
	})
}

func (c *Client) closeErr() error {
	<-c.closed
	return c.err
}

// readLoop accumulates bytes until a full ADU is present, then hands it to
// the tracker.
func (c *Client) readLoop() {
	buf := make([]byte, 0, 2*tcp.AduMaxLength)
	chunk := make([]byte, readChunk)
	for {
		n, err := c.conn.Read(chunk)
		buf = append(buf, chunk[:n]...)
		for {
			adu, ferr := codec.Next[tcp.Header](c.framing, buf)
			if codec.IsRetryable(ferr) {
				break
			}
			if ferr != nil {
				log.Errorf("[%-9s] framing error from %v: %v", "Client", c.conn.RemoteAddr(), ferr)
				_ = c.conn.Close()
				c.shutdown(fmt.Errorf("read response: %w", ferr))
				return
			}
			comm.LogHex(logging.DebugLevel, "Response", buf[:adu.Length])
			pdu := append([]byte(nil), adu.Pdu...)
			if cerr := c.tracker.Complete(adu.Header, pdu); cerr != nil {
				log.Warnf("[%-9s] drop response %s: %v", "Client", adu.Header, cerr)
			}
			buf = append(buf[:0], buf[adu.Length:]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				err = ErrClosed
			}
			c.shutdown(err)
			return
		}
	}
}
