// Package rtu implements Modbus RTU framing carried over a byte stream.
//
//	unit id(1) | function code(1) | data(N) | crc16(2, little endian)
//
// RTU has no length field: the ADU length follows from the function code
// and, for variable length requests, a byte count inside the PDU. Only the
// request direction is framed.
package rtu

import (
	"fmt"

	"github.com/aaronwong1989/gomodbus/codec"
)

const (
	HeadLength   = 1   // 单元号
	CrcLength    = 2   // CRC-16
	AduMinLength = 4   // 单元号 + 功能码 + CRC
	AduMaxLength = 256 // 1 + 253 + 2
)

// Header RTU报文头
type Header struct {
	UnitId   uint8
	Function uint8
}

func (header Header) String() string {
	return fmt.Sprintf("{ UnitId: %d, Function: 0x%02X }", header.UnitId, header.Function)
}

// NewAdu 拼接单元号、PDU与CRC
func NewAdu(unitId uint8, pdu []byte) []byte {
	frame := make([]byte, 0, HeadLength+len(pdu)+CrcLength)
	frame = append(frame, unitId)
	frame = append(frame, pdu...)
	return AppendCrc(frame)
}

// Framing implements codec.Framing for RTU requests.
type Framing struct{}

var _ codec.Framing[Header] = Framing{}

func (Framing) MaxAduLength() int {
	return AduMaxLength
}

func (Framing) AduLength(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, codec.ErrNotEnoughData
	}
	fc := data[1]
	if fc&0x80 != 0 {
		// 异常应答: 单元号 + 功能码 + 异常码 + CRC
		return 5, nil
	}
	switch fc {
	case 0x07, 0x0B, 0x0C, 0x11:
		return AduMinLength, nil
	case 0x01, 0x02, 0x03, 0x04, 0x05, 0x06:
		return 8, nil
	case 0x16:
		return 10, nil
	case 0x0F, 0x10:
		return byteCountAt(data, 6, 7)
	case 0x17:
		return byteCountAt(data, 10, 11)
	}
	return 0, codec.ErrInvalidLength
}

// byteCountAt reads the byte count at offset; the ADU is fixed bytes plus
// the counted data plus the crc.
func byteCountAt(data []byte, offset, fixed int) (int, error) {
	if len(data) <= offset {
		return 0, codec.ErrNotEnoughData
	}
	return fixed + int(data[offset]) + CrcLength, nil
}

func (Framing) AduHeader(data []byte) (Header, error) {
	if len(data) < 2 {
		return Header{}, codec.ErrNotEnoughData
	}
	return Header{UnitId: data[0], Function: data[1]}, nil
}

func (f Framing) AduCheck(data []byte) error {
	n, err := f.AduLength(data)
	if err != nil {
		return err
	}
	if len(data) < n {
		return codec.ErrNotEnoughData
	}
	got := uint16(data[n-2]) | uint16(data[n-1])<<8
	if got != Crc16(data[:n-CrcLength]) {
		return codec.ErrChecksumMismatch
	}
	return nil
}

func (f Framing) PduBody(data []byte) ([]byte, error) {
	if err := f.AduCheck(data); err != nil {
		return nil, err
	}
	n, _ := f.AduLength(data)
	return data[HeadLength : n-CrcLength : n-CrcLength], nil
}
