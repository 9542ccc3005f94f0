// Package chipsim emulates an ICNT8918 touch controller behind an I2C bus.
//
// The emulator models both bus personalities (boot ROM on 0x30, firmware on
// 0x42), SRAM and hardware registers, the embedded flash controller, the
// firmware register file with its command side effects, raw data streaming
// and the reset / interrupt pins. Fault injection fields let tests corrupt
// transfers, CRC results and flash contents.
package chipsim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/moffa90/go-cts/flash"
	"github.com/moffa90/go-cts/protocol"
)

// Chip geometry and layout.
const (
	SRAMSize     = 48 * 1024
	FlashSize    = 0xCA00
	EFCtrlBase   = 0x040600
	XchgSRAMBase = (48 - 1) * 1024
	XchgSRAMSize = 256

	fwRegSize = 0x10000
)

// Defaults reported by a freshly created chip.
const (
	DefaultFWVersion   = 0x0A10
	DefaultProjectID   = "CTS8918TST"
	DefaultMaxTransfer = 48
)

// ErrNACK is returned for transfers nobody acknowledges.
var ErrNACK = errors.New("chipsim: no acknowledge")

// Frame is one raw data frame streamed by the firmware.
type Frame struct {
	Mutual []uint16
	Self   []uint16
}

// Chip is an emulated controller. It implements device.Transport and
// device.Pins. Exported fields configure fault injection and must be set
// before the chip is shared with a device.
type Chip struct {
	mu sync.Mutex

	// CRC enables CRC16 framing on addressed transfers
	CRC bool

	// MaxTransfer is the largest transfer the bus accepts
	MaxTransfer int

	// BootToProgram keeps the chip in the boot ROM after reset
	BootToProgram bool

	// CorruptReads flips one payload byte in this many upcoming reads
	CorruptReads int

	// FlashCRCFaults returns a wrong flash CRC this many times; -1 means always
	FlashCRCFaults int

	// SRAMCRCFaults returns a wrong SRAM CRC this many times; -1 means always
	SRAMCRCFaults int

	// BusyPolls makes SF_BUSY read busy this many times per command; -1 means forever
	BusyPolls int

	// ProgramHook may rewrite data before it is programmed into flash
	ProgramHook func(addr uint32, data []byte)

	// ResetStuck ignores the reset pin
	ResetStuck bool

	// IntStuck pins the interrupt line to a level when non-nil
	IntStuck *bool

	// IgnoreStartFlag leaves the short/open start flag clear
	IgnoreStartFlag bool

	// WorkModeStuck ignores work mode requests
	WorkModeStuck bool

	sram   []byte
	hwRegs map[uint32]byte
	flash  []byte
	fwRegs []byte

	mode      protocol.Mode
	resetLow  bool
	suspended bool
	debugAddr uint32
	intHigh   bool
	busyLeft  int

	rows, cols int
	frames     []Frame
	frameIdx   int
	streaming  bool
	compCap    []byte
	shortData  []uint32
	openData   []uint16

	commands     []byte
	workModes    []byte
	sectorErases int
	resets       int
	transfers    int
	frameReads   int
}

// New returns a chip running firmware with an 8x8 grid.
func New() *Chip {
	c := &Chip{
		MaxTransfer: DefaultMaxTransfer,
		sram:        make([]byte, SRAMSize),
		hwRegs:      make(map[uint32]byte),
		flash:       make([]byte, FlashSize),
		fwRegs:      make([]byte, fwRegSize),
		intHigh:     true,
		rows:        8,
		cols:        8,
	}

	for i := range c.flash {
		c.flash[i] = 0xFF
	}
	copy(c.flash[protocol.ProjectIDFlashAddr+protocol.ProjectIDFlashOffset:], DefaultProjectID)

	c.storeHW(protocol.HWRegHardwareID, binary.LittleEndian.AppendUint16(nil, protocol.HWIDICNT8918))
	c.bootFirmware()

	return c
}

func (c *Chip) storeHW(addr uint32, b []byte) {
	for i, v := range b {
		c.hwRegs[addr+uint32(i)] = v
	}
}

// bootFirmware restores the register file reported by running firmware.
func (c *Chip) bootFirmware() {
	for i := range c.fwRegs {
		c.fwRegs[i] = 0
	}
	binary.BigEndian.PutUint16(c.fwRegs[protocol.RegChipType:], protocol.FWIDICNT8918)
	binary.BigEndian.PutUint16(c.fwRegs[protocol.RegFWVersion:], DefaultFWVersion)
	binary.LittleEndian.PutUint16(c.fwRegs[protocol.RegPanelID:], 0x0001)
	binary.LittleEndian.PutUint16(c.fwRegs[protocol.RegXResolution:], 720)
	binary.LittleEndian.PutUint16(c.fwRegs[protocol.RegYResolution:], 1440)
	c.fwRegs[protocol.RegNumTX] = byte(c.rows)
	c.fwRegs[protocol.RegNumRX] = byte(c.cols)
	c.fwRegs[protocol.RegIntMode] = 1
	binary.LittleEndian.PutUint16(c.fwRegs[protocol.RegIntKeepTime:], 0x0010)
	copy(c.fwRegs[protocol.RegProjectID:], DefaultProjectID)
	c.fwRegs[protocol.RegGetWorkMode] = protocol.WorkModeNormal
	c.fwRegs[protocol.RegESDProtection] = 1
	c.fwRegs[protocol.RegAutoCompensateEn] = 1
	c.fwRegs[protocol.RegFlagBits] = protocol.FlagBitMonitor
	c.fwRegs[protocol.RegLowPowerEn] = 1

	c.mode = protocol.ModeNormal
	c.suspended = false
	c.streaming = false
	c.intHigh = true
}

// MaxTransferSize implements device.Transport.
func (c *Chip) MaxTransferSize() int {
	return c.MaxTransfer
}

// Tx implements device.Transport.
func (c *Chip) Tx(addr uint16, w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transfers++
	if c.resetLow {
		return ErrNACK
	}

	switch addr {
	case protocol.ProgramSlaveAddr:
		if len(r) == 0 && len(w) == len(protocol.BootMagic) && [4]byte(w) == protocol.BootMagic {
			c.mode = protocol.ModeProgram
			c.suspended = false
			c.streaming = false
			c.hwRegs[protocol.HWRegBootStatus] = protocol.BootStatusProgramReady
			return nil
		}
		if c.mode != protocol.ModeProgram {
			return ErrNACK
		}
		return c.programTx(w, r)
	case protocol.NormalSlaveAddr:
		if c.mode != protocol.ModeNormal || c.suspended {
			return ErrNACK
		}
		return c.normalTx(w, r)
	default:
		return ErrNACK
	}
}

func (c *Chip) programTx(w, r []byte) error {
	if len(r) == 0 {
		addr, data, err := protocol.ParseWriteFrame(w, protocol.ProgramAddrWidth, c.CRC)
		if err != nil {
			return err
		}
		c.memWrite(addr, data)
		return nil
	}

	if len(w) != protocol.ProgramAddrWidth {
		return fmt.Errorf("chipsim: read header of %d bytes", len(w))
	}
	addr := uint32(w[0])<<16 | uint32(w[1])<<8 | uint32(w[2])
	return c.respond(r, func(p []byte) error {
		for i := range p {
			p[i] = c.memReadByte(addr + uint32(i))
		}
		return nil
	})
}

func (c *Chip) normalTx(w, r []byte) error {
	if len(r) == 0 {
		addr, data, err := protocol.ParseWriteFrame(w, protocol.NormalAddrWidth, c.CRC)
		if err != nil {
			return err
		}
		return c.fwWrite(addr, data)
	}

	if len(w) != protocol.NormalAddrWidth {
		return fmt.Errorf("chipsim: read header of %d bytes", len(w))
	}
	addr := uint32(w[0])<<8 | uint32(w[1])
	return c.respond(r, func(p []byte) error {
		return c.fwRead(addr, p)
	})
}

// respond fills r with payload produced by fill, adding the CRC trailer and
// injected corruption.
func (c *Chip) respond(r []byte, fill func([]byte) error) error {
	n := len(r)
	if c.CRC {
		n -= protocol.CRC16Size
		if n < 0 {
			return fmt.Errorf("chipsim: read of %d bytes too short for crc", len(r))
		}
	}

	payload := make([]byte, n)
	if err := fill(payload); err != nil {
		return err
	}

	frame := payload
	if c.CRC {
		frame = protocol.AppendCRC16(append([]byte(nil), payload...))
	}
	if c.CorruptReads > 0 && n > 0 {
		c.CorruptReads--
		frame[0] ^= 0x5A
	}

	copy(r, frame)
	return nil
}

// SetReset implements device.Pins.
func (c *Chip) SetReset(high bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ResetStuck {
		return nil
	}

	if !high {
		c.resetLow = true
		return nil
	}

	if c.resetLow {
		c.resetLow = false
		c.resets++
		c.bootFirmware()
		if c.BootToProgram {
			c.mode = protocol.ModeProgram
		}
	}
	return nil
}

// IntPin implements device.Pins.
func (c *Chip) IntPin() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.IntStuck != nil {
		return *c.IntStuck, nil
	}
	return c.intHigh, nil
}

// Layout returns the flash controller layout of the emulated chip.
func Layout() flash.Layout {
	return flash.Layout{
		RegBase:      EFCtrlBase,
		XchgSRAMBase: XchgSRAMBase,
		XchgSRAMSize: XchgSRAMSize,
	}
}
