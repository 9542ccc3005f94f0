package protocol

import "fmt"

// Mode is the operating mode of the controller.
type Mode int

const (
	// ModeNormal means the firmware is running and answers on NormalSlaveAddr
	ModeNormal Mode = iota

	// ModeProgram means the boot ROM answers on ProgramSlaveAddr
	ModeProgram
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeProgram:
		return "program"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// SlaveAddr returns the bus address used in this mode.
func (m Mode) SlaveAddr() uint16 {
	if m == ModeProgram {
		return ProgramSlaveAddr
	}
	return NormalSlaveAddr
}

// AddrWidth returns the address header width used in this mode.
func (m Mode) AddrWidth() int {
	if m == ModeProgram {
		return ProgramAddrWidth
	}
	return NormalAddrWidth
}

// Space selects the address space of a memory access.
type Space int

const (
	// SpaceSRAM covers SRAM and hardware registers
	SpaceSRAM Space = iota

	// SpaceFWRegister covers the registers exposed by running firmware
	SpaceFWRegister
)

func (s Space) String() string {
	switch s {
	case SpaceSRAM:
		return "sram"
	case SpaceFWRegister:
		return "fw-register"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}
