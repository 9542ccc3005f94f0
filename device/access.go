package device

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/moffa90/go-cts/protocol"
)

// Read reads len(p) bytes of space at addr.
//
// Firmware registers only exist in normal mode; reading them in program
// mode fails with protocol.ErrDeviceAbsent. SRAM is read directly in
// program mode and byte by byte through the debug interface in normal mode.
func (d *Device) Read(space protocol.Space, addr uint32, p []byte) error {
	switch space {
	case protocol.SpaceFWRegister:
		if d.state.Mode != protocol.ModeNormal {
			return &protocol.AccessError{Operation: "read", Space: space, Addr: addr,
				Err: &ModeError{Operation: "firmware register read", Mode: d.state.Mode}}
		}
		return d.readAddressed(space, addr, p)
	case protocol.SpaceSRAM:
		if d.state.Mode == protocol.ModeProgram {
			return d.readAddressed(space, addr, p)
		}
		return d.readDebug(addr, p)
	default:
		return fmt.Errorf("address space %s: %w", space, protocol.ErrInvalidArgument)
	}
}

// Write writes p to space at addr. Mode rules are the same as for Read.
func (d *Device) Write(space protocol.Space, addr uint32, p []byte) error {
	switch space {
	case protocol.SpaceFWRegister:
		if d.state.Mode != protocol.ModeNormal {
			return &protocol.AccessError{Operation: "write", Space: space, Addr: addr,
				Err: &ModeError{Operation: "firmware register write", Mode: d.state.Mode}}
		}
		return d.writeAddressed(space, addr, p)
	case protocol.SpaceSRAM:
		if d.state.Mode == protocol.ModeProgram {
			return d.writeAddressed(space, addr, p)
		}
		return d.writeDebug(addr, p)
	default:
		return fmt.Errorf("address space %s: %w", space, protocol.ErrInvalidArgument)
	}
}

// ReadSRAM reads SRAM or hardware registers at addr. It implements flash.Memory.
func (d *Device) ReadSRAM(addr uint32, p []byte) error {
	return d.Read(protocol.SpaceSRAM, addr, p)
}

// WriteSRAM writes SRAM or hardware registers at addr. It implements flash.Memory.
func (d *Device) WriteSRAM(addr uint32, p []byte) error {
	return d.Write(protocol.SpaceSRAM, addr, p)
}

// writeAddressed writes p in chunks, each carrying its own address header.
func (d *Device) writeAddressed(space protocol.Space, addr uint32, p []byte) error {
	overhead := d.state.AddrWidth
	if d.config.CRC {
		overhead += protocol.CRC16Size
	}
	chunk := d.maxTransfer() - overhead
	if chunk <= 0 {
		return fmt.Errorf("max transfer size %d leaves no room for data: %w",
			d.maxTransfer(), protocol.ErrInvalidArgument)
	}

	for len(p) > 0 {
		l := len(p)
		if l > chunk {
			l = chunk
		}

		frame, err := protocol.BuildWriteFrame(addr, d.state.AddrWidth, p[:l], d.config.CRC)
		if err != nil {
			return &protocol.AccessError{Operation: "write", Space: space, Addr: addr, Err: err}
		}

		if err := d.txRetry(frame, nil); err != nil {
			return &protocol.AccessError{Operation: "write", Space: space, Addr: addr, Err: err}
		}

		p = p[l:]
		addr += uint32(l)
	}

	return nil
}

// readAddressed reads p in chunks. With CRC framing a chunk whose checksum
// does not match is read again in full.
func (d *Device) readAddressed(space protocol.Space, addr uint32, p []byte) error {
	chunk := d.maxTransfer()
	if d.config.CRC {
		chunk -= protocol.CRC16Size
	}
	if chunk <= 0 {
		return fmt.Errorf("max transfer size %d leaves no room for data: %w",
			d.maxTransfer(), protocol.ErrInvalidArgument)
	}

	for len(p) > 0 {
		l := len(p)
		if l > chunk {
			l = chunk
		}

		header, err := protocol.EncodeAddress(addr, d.state.AddrWidth)
		if err != nil {
			return &protocol.AccessError{Operation: "read", Space: space, Addr: addr, Err: err}
		}

		if err := d.readChunk(header, p[:l]); err != nil {
			return &protocol.AccessError{Operation: "read", Space: space, Addr: addr, Err: err}
		}

		p = p[l:]
		addr += uint32(l)
	}

	return nil
}

func (d *Device) readChunk(header, p []byte) error {
	size := len(p)
	if d.config.CRC {
		size += protocol.CRC16Size
	}
	rx := make([]byte, size)

	var last error
	for attempt := 1; attempt <= d.config.Retries; attempt++ {
		if attempt > 1 {
			d.config.Sleep(d.config.RetryDelay)
		}

		if last = d.tr.Tx(d.state.SlaveAddr, header, rx); last != nil {
			continue
		}

		payload := rx
		if d.config.CRC {
			if payload, last = protocol.ParseCRCResponse(rx); last != nil {
				d.logDebug("read crc mismatch", "attempt", attempt, "error", last)
				continue
			}
		}

		copy(p, payload)
		return nil
	}

	return fmt.Errorf("%w after %d attempts: %w", protocol.ErrIO, d.config.Retries, last)
}

// txRetry runs one transfer with the configured retries.
func (d *Device) txRetry(w, r []byte) error {
	return d.txRetryN(d.state.SlaveAddr, w, r, d.config.Retries, d.config.RetryDelay)
}

func (d *Device) txRetryN(addr uint16, w, r []byte, retries int, delay time.Duration) error {
	var last error
	for attempt := 1; attempt <= retries; attempt++ {
		if attempt > 1 {
			d.config.Sleep(delay)
		}
		if last = d.tr.Tx(addr, w, r); last == nil {
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", protocol.ErrIO, retries, last)
}

// writeDebug stores p one byte at a time through the debug interface.
func (d *Device) writeDebug(addr uint32, p []byte) error {
	for i, b := range p {
		a := addr + uint32(i)
		if err := d.writeAddressed(protocol.SpaceFWRegister, protocol.RegDebugIntf,
			protocol.BuildDebugWriteFrame(a, b)); err != nil {
			return fmt.Errorf("debug write 0x%06X: %w", a, err)
		}
	}
	return nil
}

// readDebug loads p one byte at a time through the debug interface.
func (d *Device) readDebug(addr uint32, p []byte) error {
	for i := range p {
		a := addr + uint32(i)
		if err := d.writeAddressed(protocol.SpaceFWRegister, protocol.RegDebugIntf,
			protocol.BuildDebugAddressFrame(a)); err != nil {
			return fmt.Errorf("debug select 0x%06X: %w", a, err)
		}
		if err := d.readAddressed(protocol.SpaceFWRegister, protocol.RegDebugIntfData, p[i:i+1]); err != nil {
			return fmt.Errorf("debug read 0x%06X: %w", a, err)
		}
	}
	return nil
}

// IsOnline reports whether a slave acknowledges a one byte read at addr.
// It does not retry.
func (d *Device) IsOnline(addr uint16) bool {
	header := make([]byte, protocol.NormalAddrWidth)
	if addr == protocol.ProgramSlaveAddr {
		header = make([]byte, protocol.ProgramAddrWidth)
	}
	size := 1
	if d.config.CRC {
		size += protocol.CRC16Size
	}
	return d.tr.Tx(addr, header, make([]byte, size)) == nil
}

// Firmware register helpers. Multi-byte registers are little-endian unless
// noted otherwise.

// ReadFWRegByte reads one firmware register byte.
func (d *Device) ReadFWRegByte(addr uint16) (byte, error) {
	var b [1]byte
	err := d.Read(protocol.SpaceFWRegister, uint32(addr), b[:])
	return b[0], err
}

// ReadFWRegWord reads a little-endian firmware register word.
func (d *Device) ReadFWRegWord(addr uint16) (uint16, error) {
	var b [2]byte
	if err := d.Read(protocol.SpaceFWRegister, uint32(addr), b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// ReadFWRegWordBE reads a big-endian firmware register word such as
// RegChipType or RegFWVersion.
func (d *Device) ReadFWRegWordBE(addr uint16) (uint16, error) {
	var b [2]byte
	if err := d.Read(protocol.SpaceFWRegister, uint32(addr), b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

// ReadFWRegLong reads a little-endian firmware register long word.
func (d *Device) ReadFWRegLong(addr uint16) (uint32, error) {
	var b [4]byte
	if err := d.Read(protocol.SpaceFWRegister, uint32(addr), b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadFWReg reads len(p) bytes of firmware registers.
func (d *Device) ReadFWReg(addr uint16, p []byte) error {
	return d.Read(protocol.SpaceFWRegister, uint32(addr), p)
}

// WriteFWRegByte writes one firmware register byte.
func (d *Device) WriteFWRegByte(addr uint16, v byte) error {
	return d.Write(protocol.SpaceFWRegister, uint32(addr), []byte{v})
}

// WriteFWRegWord writes a little-endian firmware register word.
func (d *Device) WriteFWRegWord(addr uint16, v uint16) error {
	return d.Write(protocol.SpaceFWRegister, uint32(addr), binary.LittleEndian.AppendUint16(nil, v))
}

// WriteFWRegLong writes a little-endian firmware register long word.
func (d *Device) WriteFWRegLong(addr uint16, v uint32) error {
	return d.Write(protocol.SpaceFWRegister, uint32(addr), binary.LittleEndian.AppendUint32(nil, v))
}

// ReadHWRegByte reads one hardware register byte.
func (d *Device) ReadHWRegByte(addr uint32) (byte, error) {
	var b [1]byte
	err := d.ReadSRAM(addr, b[:])
	return b[0], err
}

// ReadHWRegWord reads a little-endian hardware register word.
func (d *Device) ReadHWRegWord(addr uint32) (uint16, error) {
	var b [2]byte
	if err := d.ReadSRAM(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// ReadHWRegLong reads a little-endian hardware register long word.
func (d *Device) ReadHWRegLong(addr uint32) (uint32, error) {
	var b [4]byte
	if err := d.ReadSRAM(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// WriteHWRegByte writes one hardware register byte.
func (d *Device) WriteHWRegByte(addr uint32, v byte) error {
	return d.WriteSRAM(addr, []byte{v})
}

// WriteHWRegLong writes a little-endian hardware register long word.
func (d *Device) WriteHWRegLong(addr uint32, v uint32) error {
	return d.WriteSRAM(addr, binary.LittleEndian.AppendUint32(nil, v))
}

// retry runs op up to n times with delay between attempts.
func (d *Device) retry(n int, delay time.Duration, op func() error) error {
	var err error
	for attempt := 1; attempt <= n; attempt++ {
		if attempt > 1 {
			d.config.Sleep(delay)
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}
