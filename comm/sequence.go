package comm

import (
	"sync/atomic"
)

// CycleSequence 循环递增的16位事务号生成器，溢出后从1重新开始，0保留不用
type CycleSequence struct {
	val uint32
}

func NewCycleSequence(start uint16) *CycleSequence {
	return &CycleSequence{val: uint32(start)}
}

func (s *CycleSequence) NextVal() uint16 {
	for {
		old := atomic.LoadUint32(&s.val)
		next := old + 1
		if next > 0xFFFF {
			next = 1
		}
		if atomic.CompareAndSwapUint32(&s.val, old, next) {
			return uint16(next)
		}
	}
}
