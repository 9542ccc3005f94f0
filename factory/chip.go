package factory

import (
	"fmt"
	"time"

	"github.com/moffa90/go-cts/device"
	"github.com/moffa90/go-cts/protocol"
)

// Chip is the variant specific part of the test engine. It is selected
// once from the probed hardware descriptor.
type Chip interface {
	// Name is the controller name used in reports
	Name() string

	// Prepare puts the firmware into a state where measurements are stable
	Prepare(dev *device.Device) error

	// Cleanup returns the firmware to normal operation. It runs after every
	// prepared test, including failed ones.
	Cleanup(dev *device.Device) error

	// Items lists the supported tests in report order
	Items() []Item

	// DefaultParams returns the flags and frame counts used on the
	// production line; thresholds are left to the caller
	DefaultParams(item Item) Params
}

const (
	normalWorkPolls    = 100
	normalWorkInterval = 10 * time.Millisecond
)

// icnt8918 measures in the config work mode with every firmware feature
// that alters raw data switched off.
type icnt8918 struct {
	name string
}

func (c *icnt8918) Name() string {
	return c.name
}

// Prepare sequence:
//  1. reset
//  2. ESD protection, monitor mode and auto compensation off
//  3. gesture monitoring and low power scanning off
//  4. config work mode
func (c *icnt8918) Prepare(dev *device.Device) error {
	if err := dev.Reset(); err != nil {
		return fmt.Errorf("reset device: %w", err)
	}

	if err := dev.SetESDProtection(false); err != nil {
		return err
	}
	if err := dev.DisableMonitorMode(); err != nil {
		return err
	}
	if err := dev.SetAutoCompensate(false); err != nil {
		return err
	}

	if err := dev.SendCommand(protocol.CmdQuitGestureMonitor); err != nil {
		return err
	}
	if err := dev.DisableLowPower(); err != nil {
		return fmt.Errorf("disable low power: %w", err)
	}

	return dev.SetWorkMode(protocol.WorkModeConfig)
}

// Cleanup resets the chip, which restores the firmware features, and
// brings it back to the normal work mode.
func (c *icnt8918) Cleanup(dev *device.Device) error {
	if err := dev.Reset(); err != nil {
		return fmt.Errorf("reset device: %w", err)
	}
	if err := dev.SetWorkMode(protocol.WorkModeNormal); err != nil {
		return err
	}
	return dev.WaitNormalWorkMode(normalWorkPolls, normalWorkInterval)
}

func (c *icnt8918) Items() []Item {
	return []Item{
		ItemResetPin,
		ItemIntPin,
		ItemRawdata,
		ItemDeviation,
		ItemNoise,
		ItemOpen,
		ItemShort,
		ItemCompensateCap,
	}
}

func (c *icnt8918) DefaultParams(item Item) Params {
	p := Params{Item: item}

	validate := Flags{
		ValidateData:    true,
		ValidatePerNode: true,
		StopOnFail:      true,
	}

	switch item {
	case ItemRawdata:
		p.Flags = validate
		p.Flags.ValidateMin = true
		p.Flags.ValidateMax = true
		p.Frames = 1
	case ItemDeviation:
		p.Flags = validate
		p.Flags.ValidateMax = true
		p.Frames = 1
	case ItemNoise:
		p.Flags = validate
		p.Flags.ValidateMax = true
		p.Frames = 16
	case ItemOpen, ItemCompensateCap:
		p.Flags = validate
		p.Flags.ValidateMin = true
		p.Flags.ValidateMax = true
	case ItemShort:
		p.Flags = validate
		p.Flags.ValidateMin = true
	}
	return p
}

// chipFor selects the variant of a probed controller.
func chipFor(hw *device.HardwareDescriptor) (Chip, error) {
	if hw == nil {
		return nil, fmt.Errorf("factory test before probe: %w", protocol.ErrNotSupported)
	}

	switch hw.HWID {
	case protocol.HWIDICNT8918:
		return &icnt8918{name: hw.Name}, nil
	default:
		return nil, fmt.Errorf("factory test on %s: %w", hw.Name, protocol.ErrNotSupported)
	}
}
