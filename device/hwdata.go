package device

import (
	"github.com/moffa90/go-cts/flash"
	"github.com/moffa90/go-cts/protocol"
)

// HardwareDescriptor describes one supported controller. Descriptors are
// immutable once selected by Probe.
type HardwareDescriptor struct {
	Name string
	HWID uint16
	FWID uint16

	// Rows and Cols are the largest grid the controller supports
	Rows int
	Cols int

	SRAMSize         uint32
	ProgramAddrWidth int

	// Flash locates the embedded flash controller
	Flash flash.Layout

	// DisplayOffForOpenShort requests the display to sleep while open and
	// short measurements run
	DisplayOffForOpenShort bool
}

var hardwareDescriptors = []HardwareDescriptor{
	{
		Name:             "ICNT8918",
		HWID:             protocol.HWIDICNT8918,
		FWID:             protocol.FWIDICNT8918,
		Rows:             8,
		Cols:             8,
		SRAMSize:         48 * 1024,
		ProgramAddrWidth: protocol.ProgramAddrWidth,
		Flash: flash.Layout{
			RegBase:      0x040600,
			XchgSRAMBase: (48 - 1) * 1024,
			XchgSRAMSize: 256,
		},
	},
}

// Descriptors returns the table of supported controllers.
func Descriptors() []HardwareDescriptor {
	return append([]HardwareDescriptor(nil), hardwareDescriptors...)
}

// LookupHWID returns the descriptor with the given hardware id.
func LookupHWID(hwid uint16) (*HardwareDescriptor, bool) {
	for i := range hardwareDescriptors {
		if hardwareDescriptors[i].HWID == hwid {
			return &hardwareDescriptors[i], true
		}
	}
	return nil, false
}

// LookupFWID returns the descriptor with the given firmware id.
func LookupFWID(fwid uint16) (*HardwareDescriptor, bool) {
	for i := range hardwareDescriptors {
		if hardwareDescriptors[i].FWID == fwid {
			return &hardwareDescriptors[i], true
		}
	}
	return nil, false
}
