package device

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/moffa90/go-cts/protocol"
)

const (
	commandRetries = 3

	flagPolls        = 5
	flagPollInterval = time.Millisecond

	lowPowerPolls        = 10
	lowPowerPollInterval = 5 * time.Millisecond
	lowPowerAttempts     = 3

	displayDelay = 100 * time.Millisecond

	workModePolls        = 1000
	workModePollInterval = 10 * time.Millisecond
	quitGestureDelay     = 50 * time.Millisecond
)

// SendCommand writes cmd to the firmware command register. Commands only
// exist in normal mode.
func (d *Device) SendCommand(cmd byte) error {
	if d.state.Mode != protocol.ModeNormal {
		return &ModeError{Operation: fmt.Sprintf("command 0x%02X", cmd), Mode: d.state.Mode}
	}

	d.logDebug("send command", "cmd", fmt.Sprintf("0x%02X", cmd))

	err := d.retry(commandRetries, 0, func() error {
		return d.WriteFWRegByte(protocol.RegCmd, cmd)
	})
	if err != nil {
		return fmt.Errorf("send command 0x%02X: %w", cmd, err)
	}
	return nil
}

// pollFWReg reads a firmware register byte until done accepts it, sleeping
// interval before every read.
func (d *Device) pollFWReg(reg uint16, name string, polls int, interval time.Duration,
	kind error, done func(byte) bool) error {
	for i := 0; i < polls; i++ {
		d.config.Sleep(interval)

		v, err := d.ReadFWRegByte(reg)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if done(v) {
			return nil
		}
	}
	return &PollError{Flag: name, Polls: polls, Err: kind}
}

func nonZero(v byte) bool { return v != 0 }

// EnableRawdata starts raw data streaming and waits for the firmware to
// acknowledge it.
func (d *Device) EnableRawdata() error {
	if err := d.SendCommand(protocol.CmdEnableReadRawdata); err != nil {
		return err
	}
	return d.pollFWReg(protocol.RegGetRawCfg, "get raw config", flagPolls, flagPollInterval,
		protocol.ErrIO, nonZero)
}

// DisableRawdata stops raw data streaming.
func (d *Device) DisableRawdata() error {
	if err := d.SendCommand(protocol.CmdDisableReadRawdata); err != nil {
		return err
	}
	if err := d.ClearDataReady(); err != nil {
		return err
	}
	return d.pollFWReg(protocol.RegDataReady, "data ready clear", flagPolls, flagPollInterval,
		protocol.ErrIO, func(v byte) bool { return v == 0 })
}

// WaitDataReady polls the data ready flag every interval, at most polls times.
func (d *Device) WaitDataReady(polls int, interval time.Duration) error {
	return d.pollFWReg(protocol.RegDataReady, "data ready", polls, interval,
		protocol.ErrTimeout, nonZero)
}

// ClearDataReady acknowledges the current frame.
func (d *Device) ClearDataReady() error {
	return d.WriteFWRegByte(protocol.RegDataReady, 0)
}

// ReadRawFrame waits for a frame and reads it into mutual (rows*cols
// samples) and, when non-nil, self (rows+cols samples). The data ready
// flag is cleared after a successful read.
func (d *Device) ReadRawFrame(mutual, self []uint16) error {
	if err := d.WaitDataReady(1000, time.Millisecond); err != nil {
		return err
	}

	if err := d.readWords(protocol.RegRawData, mutual); err != nil {
		return fmt.Errorf("read mutual data: %w", err)
	}
	if self != nil {
		if err := d.readWords(protocol.RegRawDataSelfCap, self); err != nil {
			return fmt.Errorf("read self data: %w", err)
		}
	}

	return d.ClearDataReady()
}

func (d *Device) readWords(reg uint16, v []uint16) error {
	b := make([]byte, 2*len(v))
	if err := d.ReadFWReg(reg, b); err != nil {
		return err
	}
	for i := range v {
		v[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return nil
}

// StartShortOpenTest selects the short / open measurement sub-mode and
// waits for the firmware to acknowledge it.
func (d *Device) StartShortOpenTest() error {
	if err := d.SendCommand(protocol.CmdShortOpenTest); err != nil {
		return err
	}
	return d.pollFWReg(protocol.RegShortOpenStartFlag, "short open start flag",
		flagPolls, flagPollInterval, protocol.ErrIO, nonZero)
}

// WaitShortTestStatus polls until a short or open measurement is stored.
func (d *Device) WaitShortTestStatus(polls int, interval time.Duration) error {
	return d.pollFWReg(protocol.RegShortTestStatus, "short test status", polls, interval,
		protocol.ErrTimeout, func(v byte) bool { return v == protocol.ShortTestStatusDone })
}

// ClearShortTestStatus acknowledges a stored measurement.
func (d *Device) ClearShortTestStatus() error {
	return d.WriteFWRegByte(protocol.RegShortTestStatus, 0)
}

// ReadShortData reads len(v) 32-bit short test magnitudes.
func (d *Device) ReadShortData(v []uint32) error {
	b := make([]byte, 4*len(v))
	if err := d.ReadFWReg(protocol.RegShortData, b); err != nil {
		return fmt.Errorf("read short data: %w", err)
	}
	for i := range v {
		v[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return nil
}

// ReadOpenData reads len(v) open test samples.
func (d *Device) ReadOpenData(v []uint16) error {
	if err := d.readWords(protocol.RegOpenData, v); err != nil {
		return fmt.Errorf("read open data: %w", err)
	}
	return nil
}

// ReadCompensateCap waits for the compensation capacitors and reads one
// byte per node into p.
func (d *Device) ReadCompensateCap(p []byte) error {
	if err := d.pollFWReg(protocol.RegCompensateCapReady, "compensate cap ready",
		1000, time.Millisecond, protocol.ErrTimeout, nonZero); err != nil {
		return err
	}
	if err := d.ReadFWReg(protocol.RegRawData, p); err != nil {
		return fmt.Errorf("read compensate cap: %w", err)
	}
	return d.WriteFWRegByte(protocol.RegCompensateCapReady, 0)
}

// SetWorkMode requests a firmware work mode and waits until the firmware
// is idle and reports it. A gesture monitoring firmware is taken out of
// gesture mode first.
func (d *Device) SetWorkMode(mode byte) error {
	d.logInfo("set work mode", "mode", mode)

	if err := d.WriteFWRegByte(protocol.RegWorkMode, mode); err != nil {
		return fmt.Errorf("write work mode: %w", err)
	}

	power, err := d.ReadFWRegByte(protocol.RegPowerMode)
	if err != nil {
		return fmt.Errorf("read power mode: %w", err)
	}
	if power == protocol.PowerModeGesture {
		if err := d.SendCommand(protocol.CmdQuitGestureMonitor); err != nil {
			return err
		}
		d.config.Sleep(quitGestureDelay)
	}

	if err := d.waitWorkMode(mode, workModePolls); err != nil {
		return fmt.Errorf("set work mode %d: %w", mode, err)
	}
	return nil
}

// WorkMode reads the work mode the firmware currently runs in.
func (d *Device) WorkMode() (byte, error) {
	return d.ReadFWRegByte(protocol.RegGetWorkMode)
}

// WaitNormalWorkMode polls until the firmware is idle and reports the
// normal work mode.
func (d *Device) WaitNormalWorkMode(polls int, interval time.Duration) error {
	for i := 0; i < polls; i++ {
		if d.inWorkMode(protocol.WorkModeNormal) {
			return nil
		}
		d.config.Sleep(interval)
	}
	return &PollError{Flag: "normal work mode", Polls: polls, Err: protocol.ErrTimeout}
}

func (d *Device) waitWorkMode(mode byte, polls int) error {
	for i := 0; i < polls; i++ {
		d.config.Sleep(workModePollInterval)
		if d.inWorkMode(mode) {
			return nil
		}
	}
	return &PollError{Flag: "work mode", Polls: polls, Err: protocol.ErrTimeout}
}

// inWorkMode reports whether the firmware is idle in mode. Read errors
// count as not yet.
func (d *Device) inWorkMode(mode byte) bool {
	busy, err := d.ReadFWRegByte(protocol.RegSysBusy)
	if err != nil || busy != 0 {
		return false
	}
	cur, err := d.WorkMode()
	return err == nil && cur == mode
}

// SetESDProtection turns the firmware ESD recovery on or off.
func (d *Device) SetESDProtection(enabled bool) error {
	if err := d.WriteFWRegByte(protocol.RegESDProtection, boolByte(enabled)); err != nil {
		return fmt.Errorf("set esd protection: %w", err)
	}
	return nil
}

// SetAutoCompensate turns automatic compensation cap calibration on or off.
func (d *Device) SetAutoCompensate(enabled bool) error {
	if err := d.WriteFWRegByte(protocol.RegAutoCompensateEn, boolByte(enabled)); err != nil {
		return fmt.Errorf("set auto compensate: %w", err)
	}
	return nil
}

// DisableMonitorMode clears the monitor flag. The register is only written
// when the flag is set.
func (d *Device) DisableMonitorMode() error {
	flags, err := d.ReadFWRegByte(protocol.RegFlagBits)
	if err != nil {
		return fmt.Errorf("read flag bits: %w", err)
	}
	if flags&protocol.FlagBitMonitor == 0 {
		return nil
	}
	if err := d.WriteFWRegByte(protocol.RegFlagBits, flags&^protocol.FlagBitMonitor); err != nil {
		return fmt.Errorf("clear monitor flag: %w", err)
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// DisableLowPower turns low power scanning off and waits for the firmware
// to confirm.
func (d *Device) DisableLowPower() error {
	var err error
	for attempt := 1; attempt <= lowPowerAttempts; attempt++ {
		if err = d.SendCommand(protocol.CmdLowPowerOff); err != nil {
			continue
		}
		err = d.pollFWReg(protocol.RegLowPowerEn, "low power disabled", lowPowerPolls,
			lowPowerPollInterval, protocol.ErrInvalidArgument, func(v byte) bool { return v == 0 })
		if err == nil {
			return nil
		}
		d.logError("disable low power failed", "attempt", attempt, "error", err)
	}
	return err
}

// SetDisplayState wakes the display or puts it to sleep through the
// display controller command registers.
func (d *Device) SetDisplayState(active bool) error {
	d.logInfo("set display state", "active", active)

	flag, err := d.ReadHWRegByte(protocol.HWRegDisplayAccess)
	if err != nil {
		return fmt.Errorf("read display access flag: %w", err)
	}
	if err := d.WriteHWRegByte(protocol.HWRegDisplayAccess, flag|0x01); err != nil {
		return fmt.Errorf("write display access flag: %w", err)
	}

	regs := []uint32{protocol.HWRegDisplayOff, protocol.HWRegDisplaySleepIn}
	if active {
		regs = []uint32{protocol.HWRegDisplaySleepOut, protocol.HWRegDisplayOn}
	}
	for _, reg := range regs {
		if err := d.WriteHWRegByte(reg, 0x55); err != nil {
			return fmt.Errorf("write display command 0x%05X: %w", reg, err)
		}
		d.config.Sleep(displayDelay)
	}

	if err := d.WriteHWRegByte(protocol.HWRegDisplayAccess, flag); err != nil {
		return fmt.Errorf("restore display access flag: %w", err)
	}
	return nil
}
