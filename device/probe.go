package device

import (
	"bytes"
	"fmt"
	"time"

	"github.com/moffa90/go-cts/flash"
	"github.com/moffa90/go-cts/protocol"
)

const (
	probeAttempts    = 3
	idRetries        = 5
	fwidRetryDelay   = time.Millisecond
	hwidRetryDelay   = 10 * time.Millisecond
	projectIDReadLen = (protocol.ProjectIDLen + protocol.ProjectIDFlashOffset + 3) &^ 3
)

// Probe identifies the controller. Each attempt first asks the running
// firmware for its id, then falls back to the boot ROM's hardware id, and
// resets the chip when both fail.
//
// A firmware id match reads the version and project id from firmware
// registers. A hardware id match reads the project id from flash and
// starts the firmware in SRAM.
func (d *Device) Probe() error {
	d.logInfo("probe device")

	var (
		fwid = uint16(protocol.IDInvalid)
		hwid = uint16(protocol.IDInvalid)
		hw   *HardwareDescriptor
	)

	for attempt := 1; attempt <= probeAttempts && hw == nil; attempt++ {
		var err error
		if fwid, err = d.readFWID(); err == nil {
			if hw, _ = LookupFWID(fwid); hw != nil {
				break
			}
		}
		d.logError("get firmware id failed", "fwid", fmt.Sprintf("0x%04X", fwid),
			"attempt", attempt, "error", err)

		if hwid, err = d.readHWID(); err == nil {
			if hw, _ = LookupHWID(hwid); hw != nil {
				break
			}
		}
		d.logError("get hardware id failed", "hwid", fmt.Sprintf("0x%04X", hwid),
			"attempt", attempt, "error", err)

		if err := d.Reset(); err != nil {
			d.logError("reset device failed", "error", err)
		}
	}

	if hw == nil {
		return fmt.Errorf("probe: %w", &IDMismatchError{FWID: fwid, HWID: hwid})
	}
	d.hw = hw

	d.logInfo("device matched", "name", hw.Name,
		"fwid", fmt.Sprintf("0x%04X", fwid), "hwid", fmt.Sprintf("0x%04X", hwid))

	if fwid != hw.FWID {
		if err := d.readFlashProjectID(); err != nil {
			d.logError("get project id from flash failed", "error", err)
		}
		if err := d.EnterNormalMode(); err != nil {
			return fmt.Errorf("start firmware: %w", err)
		}
		return nil
	}

	version, err := d.ReadFWRegWordBE(protocol.RegFWVersion)
	if err != nil {
		return fmt.Errorf("read firmware version: %w", err)
	}
	d.fw.Version = version

	if err := d.readFWProjectID(); err != nil {
		return err
	}

	if version < protocol.FWVersionFlashIDThreshold {
		if err := d.readFlashProjectID(); err != nil {
			d.logError("get project id from flash failed", "error", err)
		}
		if err := d.EnterNormalMode(); err != nil {
			d.logError("enter normal mode failed", "error", err)
		}
	}

	return nil
}

// readFWID reads the firmware id through the firmware registers.
func (d *Device) readFWID() (uint16, error) {
	if d.state.Mode != protocol.ModeNormal {
		return protocol.IDInvalid, &ModeError{Operation: "read firmware id", Mode: d.state.Mode}
	}

	var id uint16
	err := d.retry(idRetries, fwidRetryDelay, func() error {
		var err error
		id, err = d.ReadFWRegWordBE(protocol.RegChipType)
		return err
	})
	if err != nil {
		return protocol.IDInvalid, err
	}
	return id, nil
}

// readHWID enters program mode and reads the hardware id.
func (d *Device) readHWID() (uint16, error) {
	if err := d.EnterProgramMode(); err != nil {
		return protocol.IDInvalid, err
	}

	var id uint16
	err := d.retry(idRetries, hwidRetryDelay, func() error {
		var err error
		id, err = d.ReadHWRegWord(protocol.HWRegHardwareID)
		return err
	})
	if err != nil {
		return protocol.IDInvalid, err
	}
	return id, nil
}

func (d *Device) readFWProjectID() error {
	b := make([]byte, protocol.ProjectIDLen)
	if err := d.ReadFWReg(protocol.RegProjectID, b); err != nil {
		return fmt.Errorf("read project id: %w", err)
	}
	d.projectID = cString(b)
	d.logDebug("firmware project id", "project_id", d.projectID)
	return nil
}

func (d *Device) readFlashProjectID() error {
	f, err := d.PrepareFlash()
	if err != nil {
		return err
	}

	b := make([]byte, projectIDReadLen)
	if _, err := f.Read(protocol.ProjectIDFlashAddr, b); err != nil {
		return fmt.Errorf("read project id: %w", err)
	}
	d.projectID = cString(b[protocol.ProjectIDFlashOffset : protocol.ProjectIDFlashOffset+protocol.ProjectIDLen])
	d.logDebug("flash project id", "project_id", d.projectID)
	return nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// InitFirmwareData reads the configuration of the running firmware. It
// fails with protocol.ErrInvalidArgument in program mode and when the
// firmware reports a grid larger than the controller supports.
func (d *Device) InitFirmwareData() error {
	if d.state.Mode != protocol.ModeNormal {
		return fmt.Errorf("init firmware data in %s mode: %w", d.state.Mode, protocol.ErrInvalidArgument)
	}
	if d.hw == nil {
		return fmt.Errorf("init firmware data before probe: %w", protocol.ErrNotSupported)
	}

	var (
		fw  FirmwareData
		err error
	)

	if fw.Version, err = d.ReadFWRegWordBE(protocol.RegFWVersion); err != nil {
		return fmt.Errorf("read firmware version: %w", err)
	}
	if fw.PanelID, err = d.ReadFWRegWord(protocol.RegPanelID); err != nil {
		return fmt.Errorf("read panel id: %w", err)
	}
	if fw.XResolution, err = d.ReadFWRegWord(protocol.RegXResolution); err != nil {
		return fmt.Errorf("read x resolution: %w", err)
	}
	if fw.YResolution, err = d.ReadFWRegWord(protocol.RegYResolution); err != nil {
		return fmt.Errorf("read y resolution: %w", err)
	}

	rows, err := d.ReadFWRegByte(protocol.RegNumTX)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	if int(rows) > d.hw.Rows {
		return fmt.Errorf("firmware reports %d rows, %s supports %d: %w",
			rows, d.hw.Name, d.hw.Rows, protocol.ErrInvalidArgument)
	}
	fw.Rows = int(rows)

	cols, err := d.ReadFWRegByte(protocol.RegNumRX)
	if err != nil {
		return fmt.Errorf("read cols: %w", err)
	}
	if int(cols) > d.hw.Cols {
		return fmt.Errorf("firmware reports %d cols, %s supports %d: %w",
			cols, d.hw.Name, d.hw.Cols, protocol.ErrInvalidArgument)
	}
	fw.Cols = int(cols)

	swap, err := d.ReadFWRegByte(protocol.RegXYSwap)
	if err != nil {
		return fmt.Errorf("read swap axes: %w", err)
	}
	fw.SwapAxes = swap != 0

	if fw.IntMode, err = d.ReadFWRegByte(protocol.RegIntMode); err != nil {
		return fmt.Errorf("read int mode: %w", err)
	}
	if fw.IntKeepTime, err = d.ReadFWRegWord(protocol.RegIntKeepTime); err != nil {
		return fmt.Errorf("read int keep time: %w", err)
	}

	if err := d.readFWProjectID(); err != nil {
		return err
	}

	d.fw = fw
	d.logInfo("firmware data",
		"version", fmt.Sprintf("%04x", fw.Version),
		"panel_id", fmt.Sprintf("%x", fw.PanelID),
		"resolution", fmt.Sprintf("%dx%d", fw.XResolution, fw.YResolution),
		"rows", fw.Rows, "cols", fw.Cols,
		"swap_axes", fw.SwapAxes, "int_mode", fw.IntMode,
		"int_keep_time", fw.IntKeepTime,
	)

	return nil
}

// PrepareFlash stops the device, enters program mode and probes the flash
// array on first use.
func (d *Device) PrepareFlash() (*flash.Flash, error) {
	if d.hw == nil {
		return nil, fmt.Errorf("prepare flash before probe: %w", protocol.ErrNotSupported)
	}

	if d.state.Enabled {
		if err := d.Stop(); err != nil {
			return nil, fmt.Errorf("stop device: %w", err)
		}
	}

	if err := d.EnterProgramMode(); err != nil {
		return nil, err
	}

	if d.flash == nil {
		ctrl := flash.NewController(d, d.hw.Flash,
			flash.WithLogger(d.config.Logger),
			flash.WithSleep(d.config.Sleep),
		)
		f, err := flash.Probe(ctrl)
		if err != nil {
			return nil, fmt.Errorf("probe flash: %w", err)
		}
		d.flash = f
	}

	return d.flash, nil
}

// Flash returns the probed flash array, or nil before PrepareFlash.
func (d *Device) Flash() *flash.Flash {
	return d.flash
}
