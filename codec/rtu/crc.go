package rtu

// Crc16 Modbus CRC-16, 多项式0xA001(0x8005的反射形式)，初值0xFFFF
func Crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// AppendCrc 追加小端序CRC
func AppendCrc(frame []byte) []byte {
	crc := Crc16(frame)
	return append(frame, byte(crc), byte(crc>>8))
}
