package flash

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-cts/protocol"
)

// Info describes the geometry of a flash array.
type Info struct {
	// Name identifies the flash part
	Name string

	// ID is the value returned by Controller.ReadID
	ID uint32

	// PageSize is the largest unit a single program command may write
	PageSize uint32

	// SectorSize is the smallest erasable unit
	SectorSize uint32

	// BlockSize is the block erase unit, 0 when block erase is unavailable
	BlockSize uint32

	// NVRSize is the size of the NVR region at the top of the array
	NVRSize uint32

	// TotalSize is the size of the array including the NVR region
	TotalSize uint32
}

var knownFlashes = []Info{
	{
		Name:       "Icnt8918_embflash",
		ID:         EmbeddedFlashID,
		PageSize:   128,
		SectorSize: 512,
		BlockSize:  0,
		NVRSize:    0xA00,
		TotalSize:  0xCA00,
	},
}

// Lookup returns the geometry registered for a flash id.
func Lookup(id uint32) (Info, bool) {
	for _, info := range knownFlashes {
		if info.ID == id {
			return info, true
		}
	}
	return Info{}, false
}

// Flash is a probed flash array behind a Controller.
type Flash struct {
	ctrl *Controller
	info Info
}

// Probe reads the flash id through ctrl and matches it against the known parts.
func Probe(ctrl *Controller) (*Flash, error) {
	id, err := ctrl.ReadID()
	if err != nil {
		return nil, fmt.Errorf("read flash id: %w", err)
	}

	info, ok := Lookup(id)
	if !ok {
		return nil, fmt.Errorf("unknown flash id 0x%06X: %w", id, protocol.ErrNotSupported)
	}

	ctrl.logDebug("flash probed", "name", info.Name, "id", fmt.Sprintf("0x%06X", id),
		"size", info.TotalSize)

	return New(ctrl, info), nil
}

// New returns a flash array of the given geometry behind ctrl without
// probing it.
func New(ctrl *Controller, info Info) *Flash {
	return &Flash{ctrl: ctrl, info: info}
}

// Info returns the flash geometry.
func (f *Flash) Info() Info {
	return f.info
}

// Controller returns the controller the flash is attached to.
func (f *Flash) Controller() *Controller {
	return f.ctrl
}

// clamp limits size so that addr+size stays inside the array.
func (f *Flash) clamp(addr, size uint32) uint32 {
	if remain := f.info.TotalSize - addr; size > remain {
		return remain
	}
	return size
}

// Read reads flash at addr into p and returns the number of bytes read.
// Reads past the end of the array are truncated. Reads starting in the NVR
// region switch the controller to NVR addressing for their duration.
func (f *Flash) Read(addr uint32, p []byte) (n int, err error) {
	if addr > f.info.TotalSize {
		return 0, &RangeError{Addr: addr, Total: f.info.TotalSize}
	}

	if addr > f.info.TotalSize-f.info.NVRSize {
		if err := f.ctrl.EnableNVR(true); err != nil {
			return 0, fmt.Errorf("enable nvr: %w", err)
		}
		defer func() {
			if derr := f.ctrl.EnableNVR(false); derr != nil {
				if err == nil {
					err = fmt.Errorf("disable nvr: %w", derr)
				} else {
					f.ctrl.logError("disable nvr failed", "error", derr)
				}
			}
		}()
	}

	size := f.clamp(addr, uint32(len(p)))
	chunk := f.ctrl.layout.XchgSRAMSize
	var done uint32
	for done < size {
		l := size - done
		if l > chunk {
			l = chunk
		}
		if err := f.ctrl.Read(addr+done, p[done:done+l]); err != nil {
			return int(done), fmt.Errorf("read 0x%06X size %d: %w", addr+done, l, err)
		}
		done += l
	}
	return int(done), nil
}

// ReadToSRAM copies flash to SRAM on the chip, retrying failed copies.
func (f *Flash) ReadToSRAM(flashAddr, sramAddr, size uint32) error {
	if flashAddr > f.info.TotalSize {
		return &RangeError{Addr: flashAddr, Total: f.info.TotalSize}
	}
	size = f.clamp(flashAddr, size)

	var err error
	for attempt := 1; attempt <= f.ctrl.config.ReadRetries; attempt++ {
		if err = f.ctrl.ReadToSRAM(flashAddr, sramAddr, size); err == nil {
			return nil
		}
		f.ctrl.logError("read flash to sram failed",
			"flash_addr", fmt.Sprintf("0x%06X", flashAddr),
			"sram_addr", fmt.Sprintf("0x%06X", sramAddr),
			"size", size, "attempt", attempt, "error", err)
	}
	return err
}

// ReadToSRAMCheckCRC copies flash to SRAM and checks the SRAM copy against
// crc with the hardware CRC engine, retrying the whole copy on mismatch.
func (f *Flash) ReadToSRAMCheckCRC(flashAddr, sramAddr, size, crc uint32) error {
	if flashAddr > f.info.TotalSize {
		return &RangeError{Addr: flashAddr, Total: f.info.TotalSize}
	}
	size = f.clamp(flashAddr, size)

	var err error
	for attempt := 1; attempt <= f.ctrl.config.ReadRetries; attempt++ {
		if err = f.ctrl.ReadToSRAM(flashAddr, sramAddr, size); err != nil {
			continue
		}

		var actual uint32
		if actual, err = f.ctrl.SRAMCRC(sramAddr, size); err != nil {
			continue
		}
		if actual == crc {
			return nil
		}

		err = &CRCMismatchError{Addr: sramAddr, Size: size, Expected: crc, Actual: actual}
		f.ctrl.logError("sram copy crc mismatch", "attempt", attempt, "error", err)
	}
	return err
}

// Program writes data at addr one page at a time. No write crosses a page
// boundary.
func (f *Flash) Program(addr uint32, data []byte) error {
	if addr >= f.info.TotalSize {
		return &RangeError{Addr: addr, Total: f.info.TotalSize}
	}
	data = data[:f.clamp(addr, uint32(len(data)))]

	page := f.info.PageSize
	for len(data) > 0 {
		l := page
		if uint32(len(data)) < l {
			l = uint32(len(data))
		}
		if offset := addr & (page - 1); offset != 0 && page-offset < l {
			l = page - offset
		}

		if err := f.ctrl.PageProgram(addr, data[:l]); err != nil {
			return fmt.Errorf("program 0x%06X size %d: %w", addr, l, err)
		}

		data = data[l:]
		addr += l
	}

	return nil
}

// ProgramFromSRAM programs size bytes stored at sramAddr into flash in a
// single auto page program command.
func (f *Flash) ProgramFromSRAM(flashAddr, sramAddr, size uint32) error {
	if flashAddr >= f.info.TotalSize {
		return &RangeError{Addr: flashAddr, Total: f.info.TotalSize}
	}
	size = f.clamp(flashAddr, size)

	if err := f.ctrl.ProgramFromSRAM(flashAddr, sramAddr, size); err != nil {
		return fmt.Errorf("program 0x%06X from sram 0x%06X size %d: %w", flashAddr, sramAddr, size, err)
	}
	return nil
}

// Erase erases every sector touched by [addr, addr+size). Block erase is
// used for block aligned stretches when the part supports it.
func (f *Flash) Erase(addr, size uint32) error {
	sector := f.info.SectorSize
	end := addr + size
	addr = addr / sector * sector
	size = (end - addr + sector - 1) / sector * sector

	if addr > f.info.TotalSize {
		return &RangeError{Addr: addr, Total: f.info.TotalSize}
	}
	size = f.clamp(addr, size)

	f.ctrl.logDebug("erase", "addr", fmt.Sprintf("0x%06X", addr), "size", size)

	for _, step := range f.eraseSteps(addr, size) {
		erase := f.ctrl.SectorErase
		if step.unit == unitBlock {
			erase = f.ctrl.BlockErase
		}
		if err := f.eraseUnit(erase, step.unit, step.addr); err != nil {
			return err
		}
	}
	return nil
}

const (
	unitSector = "sector"
	unitBlock  = "block"
)

type eraseStep struct {
	unit string
	addr uint32
}

// eraseSteps splits a sector aligned range into sectors up to the first
// block boundary, whole blocks, then the remaining sectors.
func (f *Flash) eraseSteps(addr, size uint32) []eraseStep {
	sector, block := f.info.SectorSize, f.info.BlockSize

	var steps []eraseStep
	if block != 0 {
		for addr%block != 0 && size >= sector {
			steps = append(steps, eraseStep{unitSector, addr})
			addr += sector
			size -= sector
		}
		for size >= block {
			steps = append(steps, eraseStep{unitBlock, addr})
			addr += block
			size -= block
		}
	}
	for size >= sector {
		steps = append(steps, eraseStep{unitSector, addr})
		addr += sector
		size -= sector
	}
	return steps
}

// EraseChip erases the whole main array.
func (f *Flash) EraseChip() error {
	return f.retryErase("chip", 0, func() error { return f.ctrl.ChipErase() })
}

func (f *Flash) eraseUnit(erase func(uint32) error, unit string, addr uint32) error {
	return f.retryErase(unit, addr, func() error { return erase(addr) })
}

func (f *Flash) retryErase(unit string, addr uint32, erase func() error) error {
	var err error
	for attempt := 1; attempt <= f.ctrl.config.EraseRetries; attempt++ {
		if err = erase(); err == nil {
			return nil
		}
		if errors.Is(err, protocol.ErrNotSupported) {
			break
		}
		f.ctrl.logError("erase failed", "unit", unit,
			"addr", fmt.Sprintf("0x%06X", addr), "attempt", attempt, "error", err)
	}
	return fmt.Errorf("erase %s 0x%06X: %w", unit, addr, err)
}

// SRAMCRC returns the hardware CRC32 of an SRAM range.
func (f *Flash) SRAMCRC(addr, size uint32) (uint32, error) {
	return f.ctrl.SRAMCRC(addr, size)
}

// FlashCRC returns the hardware CRC32 of a flash range.
func (f *Flash) FlashCRC(addr, size uint32) (uint32, error) {
	return f.ctrl.FlashCRC(addr, size)
}
