package codec

import (
	"errors"
)

var (
	// ErrNotEnoughData 数据不足，继续读取后重试
	ErrNotEnoughData = errors.New("not enough data")
	// ErrChecksumMismatch 校验失败，不可重试
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrInvalidLength 长度字段无法容纳PDU，不可重试
	ErrInvalidLength = errors.New("invalid adu length")
	// ErrAduTooLong 长度字段超过协议最大ADU长度
	ErrAduTooLong = errors.New("adu too long")
)

// Framing is implemented by every transport variant. All methods are pure
// functions of data; data is borrowed and never retained.
type Framing[H any] interface {
	// MaxAduLength returns the largest legal ADU for the variant.
	MaxAduLength() int
	// AduLength reports the total length of the ADU at the start of data.
	// Only the bytes needed to read the length are required.
	AduLength(data []byte) (int, error)
	// AduHeader parses the variant header. It does not need the full ADU.
	AduHeader(data []byte) (H, error)
	// AduCheck reports whether data starts with one complete, valid ADU.
	AduCheck(data []byte) error
	// PduBody returns the PDU (function code onward) of the first ADU.
	// The result aliases data and is valid until data is modified.
	PduBody(data []byte) ([]byte, error)
}

// IsRetryable reports whether err only means more bytes are needed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotEnoughData)
}

// Adu is one framed message found at the start of a buffer.
type Adu[H any] struct {
	Header H
	Pdu    []byte // aliases the scanned buffer
	Length int    // bytes consumed
}

// Next frames the first ADU of data. Errors from the variant are returned
// unchanged.
func Next[H any, F Framing[H]](f F, data []byte) (Adu[H], error) {
	var adu Adu[H]
	length, err := f.AduLength(data)
	if err != nil {
		return adu, err
	}
	if length > f.MaxAduLength() {
		return adu, ErrAduTooLong
	}
	pdu, err := f.PduBody(data)
	if err != nil {
		return adu, err
	}
	header, err := f.AduHeader(data)
	if err != nil {
		return adu, err
	}
	adu.Header = header
	adu.Pdu = pdu
	adu.Length = length
	return adu, nil
}

// Split frames every complete ADU in data and returns the unconsumed tail.
// An incomplete trailing ADU is not an error.
func Split[H any, F Framing[H]](f F, data []byte) (adus []Adu[H], rest []byte, err error) {
	rest = data
	for len(rest) > 0 {
		adu, err := Next[H](f, rest)
		if IsRetryable(err) {
			return adus, rest, nil
		}
		if err != nil {
			return adus, rest, err
		}
		adus = append(adus, adu)
		rest = rest[adu.Length:]
	}
	return adus, rest, nil
}
