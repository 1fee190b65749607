package tcp

import (
	"encoding/binary"
	"fmt"
)

const (
	HeadLength     = 7   // MBAP报文头长度: 事务号(2) + 协议号(2) + 长度(2) + 单元号(1)
	ExcludedLength = 6   // 长度字段不计入的字节数，单元号在长度字段之后，因此比报文头少1
	AduMaxLength   = 260 // 最大ADU长度
	MinLength      = 2   // 长度字段最小值: 单元号 + 功能码
	ProtocolModbus = 0   // Modbus协议号
)

// Header MBAP报文头
type Header struct {
	TransactionId uint16
	ProtocolId    uint16
	Length        uint16
	UnitId        uint8
}

// NewHeader 按PDU长度构造报文头
func NewHeader(transactionId uint16, unitId uint8, pduLen int) Header {
	return Header{
		TransactionId: transactionId,
		ProtocolId:    ProtocolModbus,
		Length:        uint16(pduLen + 1),
		UnitId:        unitId,
	}
}

func (header Header) Encode() []byte {
	frame := make([]byte, HeadLength)
	binary.BigEndian.PutUint16(frame[0:2], header.TransactionId)
	binary.BigEndian.PutUint16(frame[2:4], header.ProtocolId)
	binary.BigEndian.PutUint16(frame[4:6], header.Length)
	frame[6] = header.UnitId
	return frame
}

func (header Header) String() string {
	return fmt.Sprintf("{ TransactionId: %d, ProtocolId: %d, Length: %d, UnitId: %d }",
		header.TransactionId, header.ProtocolId, header.Length, header.UnitId)
}

// NewAdu 拼接报文头与PDU
func NewAdu(transactionId uint16, unitId uint8, pdu []byte) []byte {
	header := NewHeader(transactionId, unitId, len(pdu))
	return append(header.Encode(), pdu...)
}

func transactionId(data []byte) (uint16, bool) {
	return uint16At(data, 0)
}

func protocolId(data []byte) (uint16, bool) {
	return uint16At(data, 2)
}

func length(data []byte) (uint16, bool) {
	return uint16At(data, 4)
}

func unitId(data []byte) (uint8, bool) {
	if len(data) <= 6 {
		return 0, false
	}
	return data[6], true
}

func uint16At(data []byte, offset int) (uint16, bool) {
	if len(data) < offset+2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(data[offset : offset+2]), true
}
