package wire

// CRC16 computes CRC16-CCITT (polynomial 0x1021, initial value 0xFFFF,
// no final XOR) over data, MSB first. This is the shared integrity
// check for the version..seq span of every frame.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
