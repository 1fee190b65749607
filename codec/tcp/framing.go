// Package tcp implements Modbus/TCP framing.
//
// The MBAP length field counts everything after itself: the unit id, which
// belongs to the 7 byte header, and the PDU. A complete ADU is therefore
// length+6 bytes long while the PDU starts at offset 7.
//
//	offset  field           counted in length
//	0-1     transaction id  no
//	2-3     protocol id     no
//	4-5     length          no
//	6       unit id         yes
//	7       function code   yes
//	8...    pdu data        yes
package tcp

import (
	"github.com/aaronwong1989/gomodbus/codec"
)

// Framing implements codec.Framing for MBAP framed ADUs. The zero value
// is ready to use.
type Framing struct {
	// Lookahead requires one byte beyond the ADU before it is reported
	// complete.
	Lookahead bool
}

var _ codec.Framing[Header] = Framing{}

func (Framing) MaxAduLength() int {
	return AduMaxLength
}

func (Framing) AduLength(data []byte) (int, error) {
	l, ok := length(data)
	if !ok {
		return 0, codec.ErrNotEnoughData
	}
	return int(l) + ExcludedLength, nil
}

func (Framing) AduHeader(data []byte) (Header, error) {
	tid, ok := transactionId(data)
	if !ok {
		return Header{}, codec.ErrNotEnoughData
	}
	pid, ok := protocolId(data)
	if !ok {
		return Header{}, codec.ErrNotEnoughData
	}
	l, ok := length(data)
	if !ok {
		return Header{}, codec.ErrNotEnoughData
	}
	uid, ok := unitId(data)
	if !ok {
		return Header{}, codec.ErrNotEnoughData
	}
	return Header{TransactionId: tid, ProtocolId: pid, Length: l, UnitId: uid}, nil
}

// AduCheck has no checksum to verify; an ADU is valid once all of it has
// arrived and its length leaves room for a function code.
func (f Framing) AduCheck(data []byte) error {
	n, err := f.AduLength(data)
	if err != nil {
		return err
	}
	complete := len(data) >= n
	if f.Lookahead {
		complete = len(data) > n
	}
	if !complete {
		return codec.ErrNotEnoughData
	}
	if n < ExcludedLength+MinLength {
		return codec.ErrInvalidLength
	}
	return nil
}

func (f Framing) PduBody(data []byte) ([]byte, error) {
	if err := f.AduCheck(data); err != nil {
		return nil, err
	}
	n, _ := f.AduLength(data)
	// n >= HeadLength+1 and len(data) >= n after AduCheck
	return data[HeadLength:n:n], nil
}
