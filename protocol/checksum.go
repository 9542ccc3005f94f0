package protocol

// Checksum algorithm constants.
const (
	// CRC16Polynomial is the CRC-16-CCITT polynomial (0x1021)
	CRC16Polynomial = 0x1021

	// CRC16InitialValue is the CRC-16 initial value
	CRC16InitialValue = 0xFFFF

	// CRC16HighBitMask is the high bit mask for CRC-16 calculations
	CRC16HighBitMask = 0x8000

	// CRC32Polynomial is the polynomial shared with the flash controller CRC engine
	CRC32Polynomial = 0x04C11DB7

	// BitsPerByte is the number of bits per byte
	BitsPerByte = 8
)

var crc32Table = makeCRC32Table()

func makeCRC32Table() [256]uint32 {
	var table [256]uint32
	for i := range table {
		c := uint32(i) << 24
		for j := 0; j < BitsPerByte; j++ {
			if c&0x80000000 != 0 {
				c = (c << 1) ^ CRC32Polynomial
			} else {
				c <<= 1
			}
		}
		table[i] = c
	}
	return table
}

// CalculateCRC16 computes the CRC-16-CCITT checksum used on CRC-framed
// transfers.
//
// CRC-16-CCITT parameters:
//   - Polynomial: CRC16Polynomial
//   - Initial value: CRC16InitialValue
//   - No final XOR
func CalculateCRC16(data []byte) uint16 {
	crc := uint16(CRC16InitialValue)

	for _, b := range data {
		crc ^= uint16(b) << BitsPerByte
		for i := 0; i < BitsPerByte; i++ {
			if crc&CRC16HighBitMask != 0 {
				crc = (crc << 1) ^ CRC16Polynomial
			} else {
				crc = crc << 1
			}
		}
	}

	return crc
}

// CalculateCRC32 computes the MSB-first CRC32 of data with a zero initial
// value and no final XOR. The flash controller produces the same value for
// the same bytes, so the result can be compared with SRAM and flash CRCs
// computed on the chip.
func CalculateCRC32(data []byte) uint32 {
	return UpdateCRC32(0, data)
}

// UpdateCRC32 continues a CalculateCRC32 computation.
func UpdateCRC32(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = (crc << 8) ^ crc32Table[byte(crc>>24)^b]
	}
	return crc
}
