package device

import (
	"fmt"

	"github.com/moffa90/go-cts/protocol"
)

// Start marks the device enabled. It is a no-op when already started.
func (d *Device) Start() error {
	if d.state.Enabled {
		d.logDebug("start device while already started")
		return nil
	}

	d.state.Enabled = true
	d.logInfo("device started")
	return nil
}

// Stop marks the device disabled. It fails with protocol.ErrBusy while a
// firmware update is in progress.
func (d *Device) Stop() error {
	if !d.state.Enabled {
		d.logDebug("stop device while halted")
		return nil
	}

	if d.state.Updating {
		return fmt.Errorf("stop device while firmware updating: %w", protocol.ErrBusy)
	}

	d.state.Enabled = false
	d.logInfo("device stopped")
	return nil
}

// Suspend puts the firmware to sleep, keeping gesture monitoring alive
// when gesture wakeup is configured. A device in program mode first
// starts its firmware.
func (d *Device) Suspend() error {
	if d.state.Suspended {
		d.logDebug("suspend device while already suspended")
		return nil
	}

	if d.state.Mode == protocol.ModeProgram {
		if err := d.EnterNormalMode(); err != nil {
			return fmt.Errorf("exit program mode before suspend: %w", err)
		}
	}

	cmd := byte(protocol.CmdSuspend)
	if d.config.GestureWakeup {
		cmd = protocol.CmdSuspendWithGesture
	}
	if err := d.SendCommand(cmd); err != nil {
		return fmt.Errorf("suspend: %w", err)
	}

	d.state.Suspended = true
	d.logInfo("device suspended", "gesture", d.config.GestureWakeup)
	return nil
}

// Resume resets the chip and checks that the firmware answers. When it
// does not, the device is left in program mode and protocol.ErrIO is
// returned so that the caller can load firmware.
func (d *Device) Resume() error {
	d.logInfo("resume device")

	if err := d.Reset(); err != nil {
		d.logError("reset device failed", "error", err)
	}
	d.setMode(protocol.ModeNormal)

	if !d.IsOnline(protocol.NormalSlaveAddr) {
		d.setMode(protocol.ModeProgram)
		return fmt.Errorf("firmware not running after reset: %w", protocol.ErrIO)
	}

	d.state.Suspended = false
	return nil
}
