// Package session correlates Modbus/TCP responses with outstanding
// requests by MBAP transaction id.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aaronwong1989/gomodbus/codec/tcp"
	"github.com/aaronwong1989/gomodbus/comm"
)

var (
	ErrPipelineFull       = errors.New("pipeline full")
	ErrUnknownTransaction = errors.New("unknown transaction id")
	ErrUnitMismatch       = errors.New("unit id mismatch")
)

// Response is a framed response delivered to the waiting request.
type Response struct {
	Header tcp.Header
	Pdu    []byte
}

// Pending is an in-flight request.
type Pending struct {
	TransactionId uint16
	UnitId        uint8
	Function      uint8
	SentAt        time.Time
	done          chan Response
}

// Done receives exactly one response, unless the request is cancelled.
func (p *Pending) Done() <-chan Response {
	return p.done
}

type Stats struct {
	Outstanding    int
	MaxOutstanding int
	TotalSent      int64
	TotalCompleted int64
	TotalCancelled int64
	AvgLatencyUs   float64
}

// Tracker hands out transaction ids and matches responses to them.
type Tracker struct {
	mu             sync.Mutex
	seq            *comm.CycleSequence
	pending        map[uint16]*Pending
	maxOutstanding int

	totalSent      int64
	totalCompleted int64
	totalCancelled int64
	totalLatencyUs int64
}

// NewTracker maxOutstanding 为0时不限制并发请求数
func NewTracker(maxOutstanding int) *Tracker {
	return &Tracker{
		seq:            comm.NewCycleSequence(0),
		pending:        make(map[uint16]*Pending),
		maxOutstanding: maxOutstanding,
	}
}

// Register allocates a transaction id not currently in flight.
func (t *Tracker) Register(unitId, function uint8) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxOutstanding > 0 && len(t.pending) >= t.maxOutstanding {
		return nil, fmt.Errorf("%w: %d/%d outstanding", ErrPipelineFull, len(t.pending), t.maxOutstanding)
	}
	if len(t.pending) >= 0xFFFF {
		return nil, fmt.Errorf("%w: transaction ids exhausted", ErrPipelineFull)
	}
	tid := t.seq.NextVal()
	for t.pending[tid] != nil {
		tid = t.seq.NextVal()
	}
	p := &Pending{
		TransactionId: tid,
		UnitId:        unitId,
		Function:      function,
		SentAt:        time.Now(),
		done:          make(chan Response, 1),
	}
	t.pending[tid] = p
	t.totalSent++
	return p, nil
}

// Complete delivers a response to the request with the same transaction id.
func (t *Tracker) Complete(header tcp.Header, pdu []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[header.TransactionId]
	if !ok {
		return fmt.Errorf("%w: 0x%04X", ErrUnknownTransaction, header.TransactionId)
	}
	if p.UnitId != header.UnitId {
		return fmt.Errorf("%w: got %d, want %d", ErrUnitMismatch, header.UnitId, p.UnitId)
	}
	delete(t.pending, header.TransactionId)
	t.totalCompleted++
	t.totalLatencyUs += time.Since(p.SentAt).Microseconds()
	p.done <- Response{Header: header, Pdu: pdu}
	return nil
}

// Cancel forgets a request whose caller stopped waiting.
func (t *Tracker) Cancel(tid uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[tid]; ok {
		delete(t.pending, tid)
		t.totalCancelled++
	}
}

func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	var avgUs float64
	if t.totalCompleted > 0 {
		avgUs = float64(t.totalLatencyUs) / float64(t.totalCompleted)
	}
	return Stats{
		Outstanding:    len(t.pending),
		MaxOutstanding: t.maxOutstanding,
		TotalSent:      t.totalSent,
		TotalCompleted: t.totalCompleted,
		TotalCancelled: t.totalCancelled,
		AvgLatencyUs:   avgUs,
	}
}
