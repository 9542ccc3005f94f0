// Package device is the handle of one Chipone ICNT8918 touch controller.
//
// # Overview
//
// A Device owns the runtime state of the chip and everything that talks
// to it:
//   - addressed memory access to SRAM and firmware registers, chunked to
//     the transport's transfer limit and optionally CRC framed
//   - the program / normal mode state machine and the reset pulse
//   - probing of the controller and its embedded flash
//   - firmware commands, raw data streaming and power state
//
// # Basic Usage
//
//	conn, err := hostio.Open(hostio.Options{
//	    Bus:      "/dev/i2c-1",
//	    ResetPin: "GPIO17",
//	    IntPin:   "GPIO27",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	dev := device.New(conn.Bus, conn.Pins, device.WithLogger(slog.Default()))
//
//	dev.Lock()
//	err = dev.Probe()
//	if err == nil {
//	    err = dev.InitFirmwareData()
//	}
//	dev.Unlock()
//
// # Modes
//
// In normal mode the firmware answers on slave 0x42 with 2 byte register
// addresses. In program mode the boot ROM answers on slave 0x30 with 3
// byte memory addresses. Firmware registers do not exist in program mode:
// accessing them fails with protocol.ErrDeviceAbsent. SRAM is reachable in
// both modes; in normal mode it is reached one byte at a time through the
// firmware's debug interface.
//
// # Locking
//
// Device methods do not lock. Callers bracket each logical operation with
// Lock and Unlock, typically with defer:
//
//	dev.Lock()
//	defer dev.Unlock()
//
// # Configuration Options
//
//	dev := device.New(bus, pins,
//	    device.WithLogger(logger),
//	    device.WithRetries(5),
//	    device.WithCRC(true),
//	    device.WithMaxTransferSize(32),
//	    device.WithGestureWakeup(true),
//	)
package device
