// Package hostio connects a device to real hardware through periph.io: an
// I2C bus for register traffic and two GPIO lines for reset and interrupt.
//
// Bus satisfies device.Transport and Pins satisfies device.Pins.
//
// Example:
//
//	conn, err := hostio.Open(hostio.Options{
//	    Bus:      "/dev/i2c-1",
//	    Speed:    400 * physic.KiloHertz,
//	    ResetPin: "GPIO17",
//	    IntPin:   "GPIO27",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	dev := device.New(conn.Bus, conn.Pins)
package hostio

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/moffa90/go-cts/protocol"
)

// DefaultMaxTransfer is the largest transfer used when the bus reports no
// limit of its own.
const DefaultMaxTransfer = 48

// Bus adapts an I2C bus to the device transport.
type Bus struct {
	bus i2c.Bus
	max int
}

// NewBus wraps b. A maxTransfer of 0 selects DefaultMaxTransfer; the bus's
// own limit applies when it is smaller.
func NewBus(b i2c.Bus, maxTransfer int) *Bus {
	if maxTransfer <= 0 {
		maxTransfer = DefaultMaxTransfer
	}
	if lim, ok := b.(conn.Limits); ok {
		if n := lim.MaxTxSize(); n > 0 && n < maxTransfer {
			maxTransfer = n
		}
	}
	return &Bus{bus: b, max: maxTransfer}
}

// Tx writes w to the slave at addr and then reads len(r) bytes into r.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if len(r) == 0 {
		r = nil
	}
	if err := b.bus.Tx(addr, w, r); err != nil {
		return fmt.Errorf("i2c 0x%02X: %w", addr, err)
	}
	return nil
}

// MaxTransferSize returns the largest single write or read.
func (b *Bus) MaxTransferSize() int {
	return b.max
}

func (b *Bus) String() string {
	return b.bus.String()
}

// Pins drives the reset line and samples the interrupt line. Either line
// may be nil; using it then fails with protocol.ErrNotSupported.
type Pins struct {
	reset gpio.PinOut
	irq   gpio.PinIn
}

// NewPins returns the pin pair.
func NewPins(reset gpio.PinOut, irq gpio.PinIn) *Pins {
	return &Pins{reset: reset, irq: irq}
}

// SetReset drives the reset line; false holds the chip in reset.
func (p *Pins) SetReset(high bool) error {
	if p.reset == nil {
		return fmt.Errorf("reset line: %w", protocol.ErrNotSupported)
	}

	l := gpio.Low
	if high {
		l = gpio.High
	}
	if err := p.reset.Out(l); err != nil {
		return fmt.Errorf("drive %s %s: %w", p.reset, l, err)
	}
	return nil
}

// IntPin returns the interrupt line level.
func (p *Pins) IntPin() (bool, error) {
	if p.irq == nil {
		return false, fmt.Errorf("interrupt line: %w", protocol.ErrNotSupported)
	}
	return p.irq.Read() == gpio.High, nil
}

// Options selects the host resources of one controller.
type Options struct {
	// Bus is the I2C bus name or number; empty selects the first bus
	Bus string

	// Speed sets the bus clock when non-zero
	Speed physic.Frequency

	// ResetPin and IntPin are GPIO names; empty leaves the line unwired
	ResetPin string
	IntPin   string

	// MaxTransfer overrides DefaultMaxTransfer
	MaxTransfer int
}

// Conn is an open set of host resources.
type Conn struct {
	Bus  *Bus
	Pins *Pins

	closer i2c.BusCloser
}

// Open initializes the host drivers and opens the bus and pins named in
// opts. The reset line is driven high and the interrupt line configured as
// an input.
func Open(opts Options) (*Conn, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hostio: %w", err)
	}

	bc, err := i2creg.Open(opts.Bus)
	if err != nil {
		return nil, fmt.Errorf("hostio: %w", err)
	}

	return attach(bc, opts)
}

// attach opens the pins and sets the clock of an open bus. bc is closed
// when either step fails.
func attach(bc i2c.BusCloser, opts Options) (*Conn, error) {
	pins, err := openPins(opts)
	if err != nil {
		return nil, errors.Join(err, closeBus(bc))
	}

	if opts.Speed > 0 {
		if err := bc.SetSpeed(opts.Speed); err != nil {
			err = fmt.Errorf("hostio: set %s speed: %w", bc, err)
			return nil, errors.Join(err, closeBus(bc))
		}
	}

	return &Conn{
		Bus:    NewBus(bc, opts.MaxTransfer),
		Pins:   pins,
		closer: bc,
	}, nil
}

func closeBus(bc i2c.BusCloser) error {
	if err := bc.Close(); err != nil {
		return fmt.Errorf("hostio: close %s: %w", bc, err)
	}
	return nil
}

func openPins(opts Options) (*Pins, error) {
	pins := &Pins{}

	if opts.ResetPin != "" {
		p := gpioreg.ByName(opts.ResetPin)
		if p == nil {
			return nil, fmt.Errorf("hostio: no reset pin %q", opts.ResetPin)
		}
		if err := p.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("hostio: reset pin: %w", err)
		}
		pins.reset = p
	}

	if opts.IntPin != "" {
		p := gpioreg.ByName(opts.IntPin)
		if p == nil {
			return nil, fmt.Errorf("hostio: no interrupt pin %q", opts.IntPin)
		}
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("hostio: interrupt pin: %w", err)
		}
		pins.irq = p
	}

	return pins, nil
}

// Close releases the bus.
func (c *Conn) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}
