package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodeAddress builds the big-endian address header for a memory access.
// Only widths of 2 (normal mode) and 3 (program mode) are valid.
func EncodeAddress(addr uint32, width int) ([]byte, error) {
	switch width {
	case NormalAddrWidth:
		if addr > 0xFFFF {
			return nil, fmt.Errorf("address 0x%X does not fit %d bytes: %w", addr, width, ErrInvalidArgument)
		}
		return []byte{byte(addr >> 8), byte(addr)}, nil
	case ProgramAddrWidth:
		if addr > 0xFFFFFF {
			return nil, fmt.Errorf("address 0x%X does not fit %d bytes: %w", addr, width, ErrInvalidArgument)
		}
		return []byte{byte(addr >> 16), byte(addr >> 8), byte(addr)}, nil
	default:
		return nil, fmt.Errorf("address width %d: %w", width, ErrInvalidArgument)
	}
}

// BuildWriteFrame constructs a memory write frame.
//
// Frame structure:
//
//	[ADDR(width, big-endian)][DATA...]           plain
//	[ADDR(width, big-endian)][DATA...][CRC16]    with CRC framing
//
// The CRC covers address and data and is appended big-endian.
func BuildWriteFrame(addr uint32, width int, data []byte, withCRC bool) ([]byte, error) {
	header, err := EncodeAddress(addr, width)
	if err != nil {
		return nil, err
	}

	size := len(header) + len(data)
	if withCRC {
		size += CRC16Size
	}

	frame := make([]byte, 0, size)
	frame = append(frame, header...)
	frame = append(frame, data...)
	if withCRC {
		frame = AppendCRC16(frame)
	}

	return frame, nil
}

// AppendCRC16 appends the big-endian CRC16 of frame to frame.
func AppendCRC16(frame []byte) []byte {
	return binary.BigEndian.AppendUint16(frame, CalculateCRC16(frame))
}

// BuildDebugWriteFrame constructs the payload written to RegDebugIntf to
// store one byte in SRAM while the firmware is running.
//
// Payload structure:
//
//	[ADDR(4, little-endian)][DATA(1)]
func BuildDebugWriteFrame(addr uint32, b byte) []byte {
	frame := make([]byte, 5)
	binary.LittleEndian.PutUint32(frame, addr)
	frame[4] = b
	return frame
}

// BuildDebugAddressFrame constructs the payload written to RegDebugIntf to
// select the SRAM byte subsequently read from RegDebugIntfData.
func BuildDebugAddressFrame(addr uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, addr)
}
