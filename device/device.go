package device

import (
	"sync"
	"time"

	"github.com/moffa90/go-cts/flash"
	"github.com/moffa90/go-cts/protocol"
)

// RuntimeState is the mutable state of a device. Mode, SlaveAddr and
// AddrWidth always change together.
type RuntimeState struct {
	Mode      protocol.Mode
	SlaveAddr uint16
	AddrWidth int

	Enabled   bool
	Suspended bool
	Updating  bool
	Testing   bool
}

// FirmwareData is the configuration reported by the running firmware.
type FirmwareData struct {
	Version     uint16
	PanelID     uint16
	XResolution uint16
	YResolution uint16
	Rows        int
	Cols        int
	SwapAxes    bool
	IntMode     byte
	IntKeepTime uint16
}

// Device is the handle of one physical controller.
//
// Methods do not lock. A caller brackets each logical operation with
// Lock and Unlock; the firmware and factory packages do so internally.
type Device struct {
	mu sync.Mutex

	tr     Transport
	pins   Pins
	config Config

	state     RuntimeState
	hw        *HardwareDescriptor
	fw        FirmwareData
	projectID string
	flash     *flash.Flash
}

// New creates a device handle talking through tr. pins may be nil when the
// reset and interrupt lines are not wired; reset based operations then fail
// with protocol.ErrNotSupported.
//
// Example:
//
//	conn, _ := hostio.Open(hostio.Options{Bus: "/dev/i2c-1", ResetPin: "GPIO17", IntPin: "GPIO27"})
//	dev := device.New(conn.Bus, conn.Pins, device.WithLogger(logger))
//	if err := dev.Probe(); err != nil {
//	    return err
//	}
func New(tr Transport, pins Pins, opts ...Option) *Device {
	if tr == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Device{
		tr:     tr,
		pins:   pins,
		config: cfg,
	}
	d.setMode(protocol.ModeNormal)

	return d
}

// Lock acquires the device lock.
func (d *Device) Lock() {
	d.mu.Lock()
}

// Unlock releases the device lock.
func (d *Device) Unlock() {
	d.mu.Unlock()
}

// State returns a copy of the runtime state.
func (d *Device) State() RuntimeState {
	return d.state
}

// setMode switches mode, slave address and address width together.
func (d *Device) setMode(mode protocol.Mode) {
	d.state.Mode = mode
	d.state.SlaveAddr = mode.SlaveAddr()
	d.state.AddrWidth = mode.AddrWidth()
}

// Mode returns the current operating mode.
func (d *Device) Mode() protocol.Mode {
	return d.state.Mode
}

// Descriptor returns the descriptor matched by Probe, or nil.
func (d *Device) Descriptor() *HardwareDescriptor {
	return d.hw
}

// FirmwareData returns the data read by InitFirmwareData.
func (d *Device) FirmwareData() FirmwareData {
	return d.fw
}

// ProjectID returns the project id read during probe.
func (d *Device) ProjectID() string {
	return d.projectID
}

// Logger returns the configured logger, or nil.
func (d *Device) Logger() Logger {
	return d.config.Logger
}

// Pins returns the pin collaborator, or nil.
func (d *Device) Pins() Pins {
	return d.pins
}

// Sleep waits for dur using the configured sleep function.
func (d *Device) Sleep(dur time.Duration) {
	d.config.Sleep(dur)
}

// SetUpdating marks a firmware update in progress.
func (d *Device) SetUpdating(updating bool) {
	d.state.Updating = updating
}

// SetTesting marks a factory test in progress.
func (d *Device) SetTesting(testing bool) {
	d.state.Testing = testing
}

func (d *Device) maxTransfer() int {
	max := d.tr.MaxTransferSize()
	if d.config.MaxTransferSize > 0 && (max <= 0 || d.config.MaxTransferSize < max) {
		max = d.config.MaxTransferSize
	}
	return max
}

// logDebug logs a debug message if a logger is configured.
func (d *Device) logDebug(msg string, keysAndValues ...interface{}) {
	if d.config.Logger != nil {
		d.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (d *Device) logInfo(msg string, keysAndValues ...interface{}) {
	if d.config.Logger != nil {
		d.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (d *Device) logError(msg string, keysAndValues ...interface{}) {
	if d.config.Logger != nil {
		d.config.Logger.Error(msg, keysAndValues...)
	}
}
