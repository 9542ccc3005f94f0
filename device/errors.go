package device

import (
	"fmt"

	"github.com/moffa90/go-cts/protocol"
)

// ModeError indicates an operation that is only valid in another mode.
type ModeError struct {
	Operation string
	Mode      protocol.Mode
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("%s is not available in %s mode", e.Operation, e.Mode)
}

func (e *ModeError) Unwrap() error {
	return protocol.ErrDeviceAbsent
}

// IDMismatchError indicates that neither the firmware id nor the hardware
// id read from the chip matches a known controller.
type IDMismatchError struct {
	FWID uint16
	HWID uint16
}

func (e *IDMismatchError) Error() string {
	return fmt.Sprintf("unknown controller: firmware id 0x%04X, hardware id 0x%04X", e.FWID, e.HWID)
}

func (e *IDMismatchError) Unwrap() error {
	return protocol.ErrDeviceAbsent
}

// BootStatusError indicates that the boot ROM never reported readiness for
// program mode traffic.
type BootStatusError struct {
	Status   byte
	Attempts int
}

func (e *BootStatusError) Error() string {
	return fmt.Sprintf("boot status 0x%02X after %d attempts, expected 0x%02X",
		e.Status, e.Attempts, protocol.BootStatusProgramReady)
}

func (e *BootStatusError) Unwrap() error {
	return protocol.ErrInvalidArgument
}

// PollError indicates that a firmware flag did not reach its expected value
// within the bounded number of polls.
type PollError struct {
	Flag  string
	Polls int
	Err   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("%s not set after %d polls", e.Flag, e.Polls)
}

func (e *PollError) Unwrap() error {
	return e.Err
}
