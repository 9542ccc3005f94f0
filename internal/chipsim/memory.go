package chipsim

import (
	"encoding/binary"

	"github.com/moffa90/go-cts/flash"
	"github.com/moffa90/go-cts/protocol"
)

const (
	efctrlSize     = 0x40
	crcFaultMask   = 0xDEADBEEF
	flashCRCCalcOp = "flash"
	sramCRCCalcOp  = "sram"
)

// memReadByte reads one byte of the program mode address space.
func (c *Chip) memReadByte(addr uint32) byte {
	if addr < SRAMSize {
		return c.sram[addr]
	}

	if addr == EFCtrlBase+flash.RegSFBusy {
		if c.busyLeft == 0 {
			return 0
		}
		if c.busyLeft > 0 {
			c.busyLeft--
		}
		return 1
	}

	return c.hwRegs[addr]
}

// memWrite writes the program mode address space and runs register side effects.
func (c *Chip) memWrite(addr uint32, data []byte) {
	for i, b := range data {
		a := addr + uint32(i)
		if a < SRAMSize {
			c.sram[a] = b
		} else {
			c.hwRegs[a] = b
		}
	}

	if addr >= EFCtrlBase && addr < EFCtrlBase+efctrlSize && len(data) > 0 {
		c.efctrlWrite(addr-EFCtrlBase, data[0])
	}

	if addr == protocol.HWRegBootMode && len(data) > 0 && data[0] == protocol.BootModeSRAM {
		c.bootFirmware()
	}
}

func (c *Chip) efctrlReg32(off uint32) uint32 {
	var b [4]byte
	for i := range b {
		b[i] = c.hwRegs[EFCtrlBase+off+uint32(i)]
	}
	return binary.LittleEndian.Uint32(b[:])
}

func (c *Chip) efctrlWrite(off uint32, v byte) {
	switch {
	case off == flash.RegStartDexc && v == 1:
		c.execute()
	case off == flash.RegSRAMCRCStart && v == 1:
		c.calcCRC(sramCRCCalcOp)
	case off == flash.RegFlashCRCStart && v == 1:
		c.calcCRC(flashCRCCalcOp)
	default:
		return
	}
	c.busyLeft = c.BusyPolls
}

// span clips [addr, addr+size) to a buffer of length n.
func span(addr, size uint32, n int) (uint32, uint32) {
	if addr >= uint32(n) {
		return uint32(n), uint32(n)
	}
	end := addr + size
	if end > uint32(n) || end < addr {
		end = uint32(n)
	}
	return addr, end
}

func (c *Chip) execute() {
	cmd := c.hwRegs[EFCtrlBase+flash.RegCmdSel]
	faddr := c.efctrlReg32(flash.RegFlashAddr)
	saddr := c.efctrlReg32(flash.RegSRAMAddr)
	size := c.efctrlReg32(flash.RegDataLength)

	switch cmd {
	case flash.CmdFastRead:
		if saddr >= SRAMSize {
			return
		}
		fs, fe := span(faddr, size, len(c.flash))
		copy(c.sram[saddr:], c.flash[fs:fe])
	case flash.CmdSectorErase:
		start := faddr &^ 511
		fs, fe := span(start, 512, len(c.flash))
		fill(c.flash[fs:fe], 0xFF)
		c.sectorErases++
	case flash.CmdChipErase:
		fill(c.flash, 0xFF)
	case flash.CmdPageProgram, flash.CmdAutoPageProgram:
		ss, se := span(saddr, size, len(c.sram))
		data := append([]byte(nil), c.sram[ss:se]...)
		if c.ProgramHook != nil {
			c.ProgramHook(faddr, data)
		}
		fs, fe := span(faddr, uint32(len(data)), len(c.flash))
		for i := fs; i < fe; i++ {
			c.flash[i] &= data[i-fs]
		}
	}
}

func (c *Chip) calcCRC(op string) {
	size := c.efctrlReg32(flash.RegDataLength)

	var crc uint32
	switch op {
	case sramCRCCalcOp:
		s, e := span(c.efctrlReg32(flash.RegSRAMAddr), size, len(c.sram))
		crc = protocol.CalculateCRC32(c.sram[s:e])
		if c.SRAMCRCFaults != 0 {
			crc ^= crcFaultMask
			if c.SRAMCRCFaults > 0 {
				c.SRAMCRCFaults--
			}
		}
	case flashCRCCalcOp:
		s, e := span(c.efctrlReg32(flash.RegFlashAddr), size, len(c.flash))
		crc = protocol.CalculateCRC32(c.flash[s:e])
		if c.FlashCRCFaults != 0 {
			crc ^= crcFaultMask
			if c.FlashCRCFaults > 0 {
				c.FlashCRCFaults--
			}
		}
	}

	c.storeHW(EFCtrlBase+flash.RegCRCResult, binary.LittleEndian.AppendUint32(nil, crc))
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// Memory is direct access to the program mode address space, bypassing the
// bus. It implements flash.Memory.
type Memory struct {
	c *Chip
}

// Memory returns direct access to the chip's program mode address space.
func (c *Chip) Memory() *Memory {
	return &Memory{c: c}
}

// ReadSRAM implements flash.Memory.
func (m *Memory) ReadSRAM(addr uint32, p []byte) error {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	for i := range p {
		p[i] = m.c.memReadByte(addr + uint32(i))
	}
	return nil
}

// WriteSRAM implements flash.Memory.
func (m *Memory) WriteSRAM(addr uint32, p []byte) error {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	m.c.memWrite(addr, p)
	return nil
}
