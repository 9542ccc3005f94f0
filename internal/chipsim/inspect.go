package chipsim

import (
	"github.com/moffa90/go-cts/protocol"
)

// SetGrid changes the reported sensor grid. It takes effect immediately and
// survives resets.
func (c *Chip) SetGrid(rows, cols int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rows, c.cols = rows, cols
	c.fwRegs[protocol.RegNumTX] = byte(rows)
	c.fwRegs[protocol.RegNumRX] = byte(cols)
}

// SetFrames sets the raw data frames streamed while raw data is enabled.
// Frames repeat once exhausted.
func (c *Chip) SetFrames(frames ...Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frames = frames
	c.frameIdx = 0
	c.loadFrame()
}

// UniformFrame returns a frame of the current grid with every mutual node
// at mutual and every self node at self.
func (c *Chip) UniformFrame(mutual, self uint16) Frame {
	c.mu.Lock()
	rows, cols := c.rows, c.cols
	c.mu.Unlock()

	f := Frame{
		Mutual: make([]uint16, rows*cols),
		Self:   make([]uint16, rows+cols),
	}
	for i := range f.Mutual {
		f.Mutual[i] = mutual
	}
	for i := range f.Self {
		f.Self[i] = self
	}
	return f
}

// SetShortData sets the short test results published by the next short /
// open measurement.
func (c *Chip) SetShortData(values []uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shortData = append([]uint32(nil), values...)
}

// SetOpenData sets the open test results published by the next short /
// open measurement.
func (c *Chip) SetOpenData(values []uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.openData = append([]uint16(nil), values...)
}

// SetCompensateCap makes the firmware report one compensation capacitor
// value per node.
func (c *Chip) SetCompensateCap(values []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.compCap = append([]byte(nil), values...)
}

// SetFWReg writes the firmware register file without side effects.
func (c *Chip) SetFWReg(addr uint16, data ...byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.fwRegs[addr:], data)
}

// FWReg returns n bytes of the firmware register file.
func (c *Chip) FWReg(addr uint16, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.fwRegs[int(addr):int(addr)+n]...)
}

// HWReg returns a hardware register byte.
func (c *Chip) HWReg(addr uint32) byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hwRegs[addr]
}

// SRAM returns n bytes of SRAM at addr.
func (c *Chip) SRAM(addr uint32, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.sram[addr:addr+uint32(n)]...)
}

// Flash returns n bytes of flash at addr.
func (c *Chip) Flash(addr uint32, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.flash[addr:addr+uint32(n)]...)
}

// SetFlash overwrites flash without going through the controller.
func (c *Chip) SetFlash(addr uint32, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.flash[addr:], data)
}

// Mode returns the bus personality the chip currently answers with.
func (c *Chip) Mode() protocol.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mode
}

// Suspended reports whether the firmware is suspended.
func (c *Chip) Suspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.suspended
}

// Streaming reports whether raw data streaming is enabled.
func (c *Chip) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.streaming
}

// Commands returns every firmware command received so far.
func (c *Chip) Commands() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.commands...)
}

// SectorErases returns the number of sector erase commands executed.
func (c *Chip) SectorErases() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sectorErases
}

// Resets returns the number of completed reset pulses.
func (c *Chip) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resets
}

// Transfers returns the number of bus transfers seen.
func (c *Chip) Transfers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transfers
}

// FrameReads returns the number of raw data window reads.
func (c *Chip) FrameReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.frameReads
}

// WorkModes returns every work mode requested so far.
func (c *Chip) WorkModes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.workModes...)
}
