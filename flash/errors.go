package flash

import (
	"fmt"

	"github.com/moffa90/go-cts/protocol"
)

// TimeoutError indicates that the controller stayed busy for every poll.
type TimeoutError struct {
	Operation string
	Polls     int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("flash %s: still busy after %d polls", e.Operation, e.Polls)
}

func (e *TimeoutError) Unwrap() error {
	return protocol.ErrTimeout
}

// RangeError indicates an access outside the flash array.
type RangeError struct {
	Addr  uint32
	Total uint32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("flash address 0x%06X is out of range: size is 0x%06X", e.Addr, e.Total)
}

func (e *RangeError) Unwrap() error {
	return protocol.ErrInvalidArgument
}

// CRCMismatchError indicates that data copied into SRAM does not match the
// flash it was copied from.
type CRCMismatchError struct {
	Addr     uint32
	Size     uint32
	Expected uint32
	Actual   uint32
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("crc mismatch for 0x%06X+%d: expected 0x%08X, got 0x%08X",
		e.Addr, e.Size, e.Expected, e.Actual)
}

func (e *CRCMismatchError) Unwrap() error {
	return protocol.ErrIO
}
