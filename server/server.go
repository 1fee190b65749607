// Package server runs a Modbus gateway on the gnet event loop. Framing
// happens on the loop; request PDUs are handed to a Handler on an ants
// worker pool.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/panjf2000/gnet/v2"

	"github.com/aaronwong1989/gomodbus/codec"
	"github.com/aaronwong1989/gomodbus/codec/rtu"
	"github.com/aaronwong1989/gomodbus/codec/tcp"
	"github.com/aaronwong1989/gomodbus/comm"
	"github.com/aaronwong1989/gomodbus/comm/logging"
	"github.com/aaronwong1989/gomodbus/comm/yml_config"
)

var log = logging.GetDefaultLogger()

var errBadHeader = errors.New("bad header")

// conn is the part of gnet.Conn the traffic loop needs.
type conn interface {
	comm.Inbound
	AsyncWrite(buf []byte, callback gnet.AsyncCallback) error
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
}

type Server[H any, V Variant[H]] struct {
	gnet.BuiltinEventEngine
	engine    atomic.Pointer[gnet.Engine]
	address   string
	multicore bool
	maxCons   int
	tick      time.Duration
	variant   V
	handler   Handler
	pool      *ants.Pool
	window    chan struct{}
	received  int64
	rejected  int64
}

func newServer[H any, V Variant[H]](conf yml_config.Config, variant V, handler Handler, pool *ants.Pool) *Server[H, V] {
	return &Server[H, V]{
		address:   conf.Listen,
		multicore: conf.Multicore,
		maxCons:   conf.MaxCons,
		tick:      conf.TickDuration,
		variant:   variant,
		handler:   handler,
		pool:      pool,
		window:    make(chan struct{}, conf.ReceiveWindowSize), // 用通道控制消息接收窗口
	}
}

func newPool(size int) (*ants.Pool, error) {
	// 定义异步工作Go程池
	options := ants.Options{
		ExpiryDuration:   time.Minute, // 1 分钟内不被使用的worker会被清除
		Nonblocking:      false,       // 如果为true,worker池满了后提交任务会直接返回nil
		MaxBlockingTasks: size,        // blocking模式有效，否则worker池满了后提交任务会直接返回nil
		PreAlloc:         false,
		PanicHandler: func(e interface{}) {
			log.Errorf("[%-9s] handler panic: %v", "Pool", e)
		},
	}
	return ants.NewPool(size, ants.WithOptions(options))
}

// Run serves until ctx is done or the event loop fails.
func Run(ctx context.Context, conf yml_config.Config, handler Handler) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	pool, err := newPool(conf.MaxPoolSize)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	defer pool.Release()

	switch conf.Framing {
	case yml_config.FramingRtu:
		return serve[rtu.Header](ctx, conf, newServer[rtu.Header](conf, RtuVariant{}, handler, pool))
	default:
		variant := TcpVariant{Framing: tcp.Framing{Lookahead: conf.Lookahead}}
		return serve[tcp.Header](ctx, conf, newServer[tcp.Header](conf, variant, handler, pool))
	}
}

func serve[H any, V Variant[H]](ctx context.Context, conf yml_config.Config, s *Server[H, V]) error {
	RegisterMetrics()
	if conf.AdminListen != "" {
		adminCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go serveAdmin(adminCtx, conf.AdminListen, s)
	}
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = gnet.Stop(stopCtx, s.address)
		case <-stopped:
		}
	}()
	err := gnet.Run(s, s.address, gnet.WithMulticore(s.multicore), gnet.WithTicker(true))
	if err != nil {
		log.Errorf("server(%s) exits with error: %v", s.address, err)
	}
	return err
}

func (s *Server[H, V]) OnBoot(eng gnet.Engine) (action gnet.Action) {
	log.Infof("[%-9s] running %s server on %s with multi-core=%t", "OnBoot", s.variant.Name(), s.address, s.multicore)
	s.engine.Store(&eng)
	return
}

func (s *Server[H, V]) OnShutdown(eng gnet.Engine) {
	log.Warnf("[%-9s] shutdown server %s ...", "OnShutdown", s.address)
	for len(s.window) > 0 {
		time.Sleep(10 * time.Millisecond)
	}
	log.Warnf("[%-9s] shutdown server %s completed!", "OnShutdown", s.address)
}

func (s *Server[H, V]) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	if !s.admit(s.activeCons()) {
		log.Warnf("[%-9s] [%v<->%v] FLOW CONTROL：connections threshold reached, closing new connection...", "OnOpen", c.RemoteAddr(), c.LocalAddr())
		return nil, gnet.Close
	}
	log.Infof("[%-9s] [%v<->%v] activeCons=%d.", "OnOpen", c.RemoteAddr(), c.LocalAddr(), s.activeCons())
	connections.WithLabelValues(s.variant.Name()).Inc()
	return
}

func (s *Server[H, V]) OnClose(c gnet.Conn, e error) (action gnet.Action) {
	log.Warnf("[%-9s] [%v<->%v] activeCons=%d, reason=%v.", "OnClose", c.RemoteAddr(), c.LocalAddr(), s.activeCons(), e)
	connections.WithLabelValues(s.variant.Name()).Dec()
	return
}

func (s *Server[H, V]) OnTraffic(c gnet.Conn) (action gnet.Action) {
	return s.traffic(c)
}

func (s *Server[H, V]) OnTick() (delay time.Duration, action gnet.Action) {
	log.Infof("[%-9s] %d active connections, received=%d, rejected=%d.", "OnTick",
		s.activeCons(), atomic.LoadInt64(&s.received), atomic.LoadInt64(&s.rejected))
	return s.tick, gnet.None
}

// traffic frames every complete ADU in the inbound buffer. An incomplete
// ADU stays buffered until the next call.
func (s *Server[H, V]) traffic(c conn) gnet.Action {
	for {
		adu, err := comm.TakeAdu[H](c, s.variant)
		if codec.IsRetryable(err) {
			return gnet.None
		}
		if err == nil {
			if verr := s.variant.Validate(adu.Header); verr != nil {
				err = fmt.Errorf("%w %v: %v", errBadHeader, adu.Header, verr)
			}
		}
		if err != nil {
			log.Warnf("[%-9s] [%v<->%v] decode error: %v, close session...", "OnTraffic", c.RemoteAddr(), c.LocalAddr(), err)
			framingErrors.WithLabelValues(s.variant.Name(), errorKind(err)).Inc()
			return gnet.Close
		}
		atomic.AddInt64(&s.received, 1)
		aduTotal.WithLabelValues(s.variant.Name()).Inc()
		log.Debugf("[%-9s] <<< %v pdu=%x", "OnTraffic", adu.Header, adu.Pdu)

		if len(s.window) == cap(s.window) {
			log.Warnf("[%-9s] FLOW CONTROL：receive window threshold reached.", "OnTraffic")
			atomic.AddInt64(&s.rejected, 1)
			busyTotal.WithLabelValues(s.variant.Name()).Inc()
			s.write(c, s.variant.Reply(adu.Header, ExceptionPdu(adu.Pdu[0], ExceptionServerDeviceBusy)))
			continue
		}
		if err = s.pool.Submit(s.asyncHandler(c, adu)); err != nil {
			log.Errorf("[%-9s] submit error: %v", "OnTraffic", err)
			s.write(c, s.variant.Reply(adu.Header, ExceptionPdu(adu.Pdu[0], ExceptionServerDeviceBusy)))
		}
	}
}

func (s *Server[H, V]) asyncHandler(c conn, adu codec.Adu[H]) func() {
	return func() {
		// 采用通道控制消息收发速度,向通道发送信号
		s.window <- struct{}{}
		defer func() {
			// defer函数消费信号，确保每个消息的信号最终都会被消费
			<-s.window
		}()
		resp := s.handle(adu)
		if resp == nil {
			return
		}
		s.write(c, s.variant.Reply(adu.Header, resp))
	}
}

// handle 处理器panic时应答从站设备故障
func (s *Server[H, V]) handle(adu codec.Adu[H]) (resp []byte) {
	defer func() {
		if e := recover(); e != nil {
			log.Errorf("[%-9s] handler panic on %v: %v", "Handler", adu.Header, e)
			resp = ExceptionPdu(adu.Pdu[0], ExceptionServerDeviceFailure)
		}
	}()
	return s.handler.Handle(s.variant.UnitId(adu.Header), adu.Pdu)
}

func (s *Server[H, V]) write(c conn, frame []byte) {
	err := c.AsyncWrite(frame, func(gnet.Conn) error {
		comm.LogHex(logging.DebugLevel, "Reply", frame)
		return nil
	})
	if err != nil {
		log.Errorf("[%-9s] >>> reply to %v error: %v", "OnTraffic", c.RemoteAddr(), err)
	}
}

func (s *Server[H, V]) Stats() Stats {
	return Stats{
		Variant:     s.variant.Name(),
		Connections: s.activeCons(),
		Received:    atomic.LoadInt64(&s.received),
		Rejected:    atomic.LoadInt64(&s.rejected),
	}
}

// admit count 已包含正在打开的连接，max-cons 为包含上限
func (s *Server[H, V]) admit(count int) bool {
	return count <= s.maxCons
}

func (s *Server[H, V]) activeCons() int {
	eng := s.engine.Load()
	if eng == nil || *eng == (gnet.Engine{}) {
		return 0
	}
	return eng.CountConnections()
}
