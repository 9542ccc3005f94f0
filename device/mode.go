package device

import (
	"fmt"
	"time"

	"github.com/moffa90/go-cts/protocol"
)

const (
	enterProgramAttempts = 2
	magicRetries         = 5
	magicRetryDelay      = 10 * time.Millisecond
	bootSettleDelay      = 60 * time.Millisecond
	bootModeRetries      = 5
	bootModeRetryDelay   = 5 * time.Millisecond
	normalSettleDelay    = 30 * time.Millisecond
	bootStatusRetries    = 5
	bootStatusRetryDelay = 10 * time.Millisecond
)

// Reset pulses the reset line: low for ResetLowTime, then high and waits
// ResetSettleTime for the chip to boot.
func (d *Device) Reset() error {
	if d.pins == nil {
		return fmt.Errorf("reset pin: %w", protocol.ErrNotSupported)
	}

	d.logDebug("reset device")

	if err := d.pins.SetReset(false); err != nil {
		return fmt.Errorf("drive reset low: %w", err)
	}
	d.config.Sleep(d.config.ResetLowTime)

	if err := d.pins.SetReset(true); err != nil {
		return fmt.Errorf("drive reset high: %w", err)
	}
	d.config.Sleep(d.config.ResetSettleTime)

	return nil
}

// EnterProgramMode resets the chip and catches the boot ROM with the magic
// sequence. It is a no-op in program mode.
//
// Sequence per attempt:
//  1. reset
//  2. disable low power and monitor mode (best effort)
//  3. write the magic sequence to the program mode slave
//  4. read BOOT_STATUS, expecting BootStatusProgramReady
func (d *Device) EnterProgramMode() error {
	if d.state.Mode == protocol.ModeProgram {
		d.logDebug("enter program mode while already in")
		return nil
	}

	d.logInfo("enter program mode")

	var status byte
	for attempt := 1; attempt <= enterProgramAttempts; attempt++ {
		if err := d.Reset(); err != nil {
			d.logError("reset device failed", "error", err)
		}

		if err := d.SendCommand(protocol.CmdLowPowerOff); err != nil {
			d.logError("send low power off failed", "error", err)
		}
		if err := d.SendCommand(protocol.CmdMonitorOff); err != nil {
			d.logError("send monitor off failed", "error", err)
		}

		d.config.Sleep(bootSettleDelay)

		magic := protocol.BootMagic
		if err := d.txRetryN(protocol.ProgramSlaveAddr, magic[:], nil, magicRetries, magicRetryDelay); err != nil {
			d.logError("write magic failed", "attempt", attempt, "error", err)
			continue
		}
		d.config.Sleep(time.Millisecond)

		var err error
		if status, err = d.bootStatus(); err != nil {
			d.logError("read boot status failed", "attempt", attempt, "error", err)
			continue
		}
		if status == protocol.BootStatusProgramReady {
			d.setMode(protocol.ModeProgram)
			d.logDebug("boot status", "status", fmt.Sprintf("0x%02X", status))
			return nil
		}
	}

	return fmt.Errorf("enter program mode: %w", &BootStatusError{Status: status, Attempts: enterProgramAttempts})
}

// bootStatus reads BOOT_STATUS with program mode addressing before the
// runtime state has switched.
func (d *Device) bootStatus() (byte, error) {
	prev := d.state.Mode
	d.setMode(protocol.ModeProgram)
	defer d.setMode(prev)

	var b [1]byte
	err := d.retry(bootStatusRetries, bootStatusRetryDelay, func() error {
		return d.readAddressed(protocol.SpaceSRAM, protocol.HWRegBootStatus, b[:])
	})
	return b[0], err
}

// EnterNormalMode asks the boot ROM to run the image in SRAM. It is a
// no-op in normal mode.
func (d *Device) EnterNormalMode() error {
	if d.state.Mode == protocol.ModeNormal {
		d.logDebug("enter normal mode while already in")
		return nil
	}

	d.logInfo("enter normal mode")

	err := d.retry(bootModeRetries, bootModeRetryDelay, func() error {
		return d.WriteHWRegByte(protocol.HWRegBootMode, protocol.BootModeSRAM)
	})
	if err != nil {
		return fmt.Errorf("write boot mode: %w", err)
	}

	d.config.Sleep(normalSettleDelay)
	d.setMode(protocol.ModeNormal)

	return nil
}
