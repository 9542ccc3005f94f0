package protocol

import (
	"encoding/binary"
	"fmt"
)

// CRCMismatchError indicates that a CRC-framed response failed its check.
type CRCMismatchError struct {
	Expected uint16
	Actual   uint16
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("crc mismatch: got 0x%04X, expected 0x%04X", e.Actual, e.Expected)
}

// Unwrap classifies a CRC mismatch as an i/o error.
func (e *CRCMismatchError) Unwrap() error {
	return ErrIO
}

// ParseCRCResponse validates a CRC-framed read response and returns its
// payload.
//
// Response structure:
//
//	[DATA...][CRC16(big-endian)]
//
// The CRC covers the payload only.
func ParseCRCResponse(frame []byte) ([]byte, error) {
	if len(frame) < CRC16Size {
		return nil, fmt.Errorf("frame too short: got %d bytes, minimum is %d: %w", len(frame), CRC16Size, ErrIO)
	}

	payload := frame[:len(frame)-CRC16Size]
	expected := binary.BigEndian.Uint16(frame[len(frame)-CRC16Size:])
	actual := CalculateCRC16(payload)
	if expected != actual {
		return nil, &CRCMismatchError{Expected: expected, Actual: actual}
	}

	return payload, nil
}

// ParseWriteFrame splits a memory write frame into address and payload.
// It is the inverse of BuildWriteFrame and is used by chip emulators.
func ParseWriteFrame(frame []byte, width int, withCRC bool) (uint32, []byte, error) {
	if width != NormalAddrWidth && width != ProgramAddrWidth {
		return 0, nil, fmt.Errorf("address width %d: %w", width, ErrInvalidArgument)
	}

	minLen := width
	if withCRC {
		minLen += CRC16Size
	}
	if len(frame) < minLen {
		return 0, nil, fmt.Errorf("frame too short: got %d bytes, minimum is %d: %w", len(frame), minLen, ErrIO)
	}

	if withCRC {
		body := frame[:len(frame)-CRC16Size]
		expected := binary.BigEndian.Uint16(frame[len(frame)-CRC16Size:])
		if actual := CalculateCRC16(body); actual != expected {
			return 0, nil, &CRCMismatchError{Expected: expected, Actual: actual}
		}
		frame = body
	}

	var addr uint32
	for _, b := range frame[:width] {
		addr = addr<<8 | uint32(b)
	}

	return addr, frame[width:], nil
}
