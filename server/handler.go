package server

// Exception codes carried in exception responses.
const (
	ExceptionIllegalFunction     = 0x01
	ExceptionIllegalDataAddress  = 0x02
	ExceptionServerDeviceFailure = 0x04
	ExceptionServerDeviceBusy    = 0x06
)

// Handler interprets a request PDU and returns the response PDU, or nil to
// send nothing. It runs on the worker pool, never on the event loop.
type Handler interface {
	Handle(unitId uint8, pdu []byte) []byte
}

type HandlerFunc func(unitId uint8, pdu []byte) []byte

func (f HandlerFunc) Handle(unitId uint8, pdu []byte) []byte {
	return f(unitId, pdu)
}

// ExceptionPdu 异常应答: 功能码最高位置1 + 异常码
func ExceptionPdu(function, code uint8) []byte {
	return []byte{function | 0x80, code}
}

// Unsupported answers every request with an illegal function exception.
var Unsupported = HandlerFunc(func(_ uint8, pdu []byte) []byte {
	return ExceptionPdu(pdu[0], ExceptionIllegalFunction)
})
