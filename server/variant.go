package server

import (
	"fmt"

	"github.com/aaronwong1989/gomodbus/codec"
	"github.com/aaronwong1989/gomodbus/codec/rtu"
	"github.com/aaronwong1989/gomodbus/codec/tcp"
)

// Variant is a framing plus what the server needs to answer in it.
type Variant[H any] interface {
	codec.Framing[H]
	Name() string
	UnitId(header H) uint8
	// Validate rejects headers the session cannot serve.
	Validate(header H) error
	// Reply frames a response pdu for the request header.
	Reply(request H, pdu []byte) []byte
}

type TcpVariant struct {
	tcp.Framing
}

func (TcpVariant) Name() string {
	return "tcp"
}

func (TcpVariant) UnitId(header tcp.Header) uint8 {
	return header.UnitId
}

func (TcpVariant) Validate(header tcp.Header) error {
	if header.ProtocolId != tcp.ProtocolModbus {
		return fmt.Errorf("bad protocol id %d", header.ProtocolId)
	}
	return nil
}

func (TcpVariant) Reply(request tcp.Header, pdu []byte) []byte {
	return tcp.NewAdu(request.TransactionId, request.UnitId, pdu)
}

type RtuVariant struct {
	rtu.Framing
}

func (RtuVariant) Name() string {
	return "rtu"
}

func (RtuVariant) UnitId(header rtu.Header) uint8 {
	return header.UnitId
}

func (RtuVariant) Validate(rtu.Header) error {
	return nil
}

func (RtuVariant) Reply(request rtu.Header, pdu []byte) []byte {
	return rtu.NewAdu(request.UnitId, pdu)
}
