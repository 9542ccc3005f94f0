package chipsim

import (
	"encoding/binary"
	"fmt"

	"github.com/moffa90/go-cts/protocol"
)

// fwRead reads the firmware register file.
func (c *Chip) fwRead(addr uint32, p []byte) error {
	if addr == protocol.RegDebugIntfData && len(p) == 1 {
		p[0] = c.memReadByte(c.debugAddr)
		return nil
	}

	if addr == protocol.RegCompensateCapReady && c.compCap != nil {
		copy(c.fwRegs[protocol.RegRawData:], c.compCap)
		c.fwRegs[protocol.RegCompensateCapReady] = 1
	}

	if int(addr)+len(p) > fwRegSize {
		return fmt.Errorf("chipsim: register read 0x%04X+%d: %w", addr, len(p), ErrNACK)
	}
	copy(p, c.fwRegs[addr:])

	if addr == protocol.RegRawData {
		c.frameReads++
	}
	return nil
}

// fwWrite writes the firmware register file and runs command side effects.
func (c *Chip) fwWrite(addr uint32, data []byte) error {
	if addr == protocol.RegDebugIntf {
		switch len(data) {
		case 5:
			c.debugAddr = binary.LittleEndian.Uint32(data)
			c.memWrite(c.debugAddr, data[4:])
			return nil
		case 4:
			c.debugAddr = binary.LittleEndian.Uint32(data)
			return nil
		}
	}

	if int(addr)+len(data) > fwRegSize {
		return fmt.Errorf("chipsim: register write 0x%04X+%d: %w", addr, len(data), ErrNACK)
	}
	copy(c.fwRegs[addr:], data)

	end := addr + uint32(len(data))
	if addr == protocol.RegWorkMode && len(data) > 0 {
		c.requestWorkMode(data[0])
	}
	if addr <= protocol.RegCmd && protocol.RegCmd < end {
		c.command(c.fwRegs[protocol.RegCmd])
	}
	if addr <= protocol.RegDataReady && protocol.RegDataReady < end && c.fwRegs[protocol.RegDataReady] == 0 {
		if c.streaming {
			c.frameIdx++
			c.loadFrame()
		}
	}
	return nil
}

func (c *Chip) command(cmd byte) {
	c.commands = append(c.commands, cmd)

	switch cmd {
	case protocol.CmdSuspend:
		c.suspended = true
	case protocol.CmdSuspendWithGesture:
		c.suspended = true
		c.fwRegs[protocol.RegPowerMode] = protocol.PowerModeGesture
	case protocol.CmdQuitGestureMonitor:
		c.fwRegs[protocol.RegPowerMode] = 0
	case protocol.CmdWriteIntHigh, protocol.CmdReleaseIntTest:
		c.intHigh = true
	case protocol.CmdWriteIntLow:
		c.intHigh = false
	case protocol.CmdEnableReadRawdata:
		c.streaming = true
		c.fwRegs[protocol.RegGetRawCfg] = 1
		c.loadFrame()
	case protocol.CmdDisableReadRawdata:
		c.streaming = false
		c.fwRegs[protocol.RegGetRawCfg] = 0
		c.fwRegs[protocol.RegDataReady] = 0
	case protocol.CmdShortOpenTest:
		if !c.IgnoreStartFlag {
			c.fwRegs[protocol.RegShortOpenStartFlag] = 1
			c.publishShortOpen()
			c.fwRegs[protocol.RegShortTestStatus] = protocol.ShortTestStatusDone
		}
	case protocol.CmdLowPowerOff:
		c.fwRegs[protocol.RegLowPowerEn] = 0
	case protocol.CmdLowPowerOn:
		c.fwRegs[protocol.RegLowPowerEn] = 1
	}
}

// requestWorkMode records a work mode request and switches to it.
func (c *Chip) requestWorkMode(mode byte) {
	c.workModes = append(c.workModes, mode)
	if !c.WorkModeStuck {
		c.fwRegs[protocol.RegGetWorkMode] = mode
	}
}

// publishShortOpen stores the configured measurement results.
func (c *Chip) publishShortOpen() {
	for i, v := range c.shortData {
		binary.LittleEndian.PutUint32(c.fwRegs[protocol.RegShortData+4*i:], v)
	}
	for i, v := range c.openData {
		binary.LittleEndian.PutUint16(c.fwRegs[protocol.RegOpenData+2*i:], v)
	}
}

// loadFrame publishes the current frame and raises DATA_READY.
func (c *Chip) loadFrame() {
	if !c.streaming || len(c.frames) == 0 {
		return
	}

	f := c.frames[c.frameIdx%len(c.frames)]
	for i, v := range f.Mutual {
		binary.LittleEndian.PutUint16(c.fwRegs[protocol.RegRawData+2*i:], v)
	}
	for i, v := range f.Self {
		binary.LittleEndian.PutUint16(c.fwRegs[protocol.RegRawDataSelfCap+2*i:], v)
	}
	c.fwRegs[protocol.RegDataReady] = 1
}
