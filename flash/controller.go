package flash

import (
	"encoding/binary"
	"fmt"

	"github.com/moffa90/go-cts/protocol"
)

// Memory is the SRAM / hardware register space the controller lives in.
// *device.Device implements it.
type Memory interface {
	ReadSRAM(addr uint32, p []byte) error
	WriteSRAM(addr uint32, p []byte) error
}

// Layout locates an embedded flash controller in the chip address space.
type Layout struct {
	// RegBase is the address of the controller register block
	RegBase uint32

	// XchgSRAMBase is the SRAM window used to move data to and from flash
	XchgSRAMBase uint32

	// XchgSRAMSize is the size of the exchange window in bytes
	XchgSRAMSize uint32
}

// Controller register offsets from Layout.RegBase.
const (
	RegCmdSel        = 0x00
	RegCmdNVR        = 0x02
	RegFlashAddr     = 0x04
	RegSRAMAddr      = 0x08
	RegDataLength    = 0x0C
	RegStartDexc     = 0x10
	RegReleaseFlash  = 0x14
	RegHWState       = 0x18
	RegCRCResult     = 0x1C
	RegSRAMCRCStart  = 0x20
	RegFlashCRCStart = 0x22
	RegSFBusy        = 0x24
	RegETOpCnt       = 0x3C
)

// Controller commands written to RegCmdSel.
const (
	CmdFastRead        = 0x01
	CmdSectorErase     = 0x04
	CmdChipErase       = 0x05
	CmdPageProgram     = 0x06
	CmdAutoPageProgram = 0x07
)

type opFlags uint8

const (
	opRead opFlags = 1 << iota
	opSetFlashAddr
	opSRAMDataXchg
	opSetDataLength
	opChipErase
	opSectorErase
)

var cmdFlags = map[byte]opFlags{
	CmdFastRead:        opRead | opSetFlashAddr | opSRAMDataXchg | opSetDataLength,
	CmdSectorErase:     opSetFlashAddr | opSectorErase,
	CmdChipErase:       opChipErase,
	CmdPageProgram:     opSetFlashAddr | opSRAMDataXchg | opSetDataLength,
	CmdAutoPageProgram: opSetFlashAddr | opSRAMDataXchg | opSetDataLength,
}

// EmbeddedFlashID is the id reported for the flash array built into the
// controller. The embedded array has no JEDEC RDID command.
const EmbeddedFlashID = 0x00891800

// Controller drives the embedded flash controller through its register
// block. It performs no locking; callers hold the device lock.
type Controller struct {
	mem    Memory
	layout Layout
	config Config
}

// NewController creates a controller for the register block described by layout.
//
// Example:
//
//	ctrl := flash.NewController(dev, hw.Flash, flash.WithLogger(logger))
func NewController(mem Memory, layout Layout, opts ...Option) *Controller {
	if mem == nil {
		panic("memory cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Controller{
		mem:    mem,
		layout: layout,
		config: cfg,
	}
}

// Layout returns the register layout of the controller.
func (c *Controller) Layout() Layout {
	return c.layout
}

// ReadID returns the flash id. The embedded array always reports EmbeddedFlashID.
func (c *Controller) ReadID() (uint32, error) {
	return EmbeddedFlashID, nil
}

// SectorErase erases the sector containing addr.
func (c *Controller) SectorErase(addr uint32) error {
	return c.transfer(CmdSectorErase, addr, 0, nil, 0)
}

// BlockErase is not available on the embedded array.
func (c *Controller) BlockErase(addr uint32) error {
	c.logError("block erase not supported", "addr", fmt.Sprintf("0x%06X", addr))
	return fmt.Errorf("block erase 0x%06X: %w", addr, protocol.ErrNotSupported)
}

// ChipErase erases the whole main array.
func (c *Controller) ChipErase() error {
	return c.transfer(CmdChipErase, 0, 0, nil, 0)
}

// PageProgram writes data at flashAddr through the exchange window. data must
// not cross a page boundary.
func (c *Controller) PageProgram(flashAddr uint32, data []byte) error {
	return c.transfer(CmdPageProgram, flashAddr, c.layout.XchgSRAMBase, data, uint32(len(data)))
}

// ProgramFromSRAM programs size bytes already stored at sramAddr into flash.
func (c *Controller) ProgramFromSRAM(flashAddr, sramAddr, size uint32) error {
	return c.transfer(CmdAutoPageProgram, flashAddr, sramAddr, nil, size)
}

// Read reads len(p) bytes of flash through the exchange window.
func (c *Controller) Read(flashAddr uint32, p []byte) error {
	return c.transfer(CmdFastRead, flashAddr, c.layout.XchgSRAMBase, p, uint32(len(p)))
}

// ReadToSRAM copies size bytes of flash to sramAddr without moving them over the bus.
func (c *Controller) ReadToSRAM(flashAddr, sramAddr, size uint32) error {
	return c.transfer(CmdFastRead, flashAddr, sramAddr, nil, size)
}

// EnableNVR switches flash addressing to the NVR region.
func (c *Controller) EnableNVR(enable bool) error {
	var v byte
	if enable {
		v = 1
	}
	return c.writeb(RegCmdNVR, v)
}

// SRAMCRC returns the hardware CRC32 of size bytes of SRAM at addr.
func (c *Controller) SRAMCRC(addr, size uint32) (uint32, error) {
	return c.calcCRC(RegSRAMAddr, RegSRAMCRCStart, addr, size)
}

// FlashCRC returns the hardware CRC32 of size bytes of flash at addr.
func (c *Controller) FlashCRC(addr, size uint32) (uint32, error) {
	return c.calcCRC(RegFlashAddr, RegFlashCRCStart, addr, size)
}

func (c *Controller) calcCRC(addrReg, startReg, addr, size uint32) (uint32, error) {
	if err := c.writel(addrReg, addr); err != nil {
		return 0, err
	}
	if err := c.writel(RegDataLength, size); err != nil {
		return 0, err
	}
	if err := c.writeb(startReg, 1); err != nil {
		return 0, err
	}
	if err := c.waitIdle("crc"); err != nil {
		return 0, err
	}
	return c.readl(RegCRCResult)
}

// transfer runs one controller command.
//
// Sequence:
//  1. select the command
//  2. place data in SRAM (writes) and latch the SRAM address
//  3. latch flash address and data length
//  4. start, then wait for SF_BUSY to clear
//  5. fetch data from SRAM (reads)
func (c *Controller) transfer(cmd byte, flashAddr, sramAddr uint32, data []byte, size uint32) error {
	flags, ok := cmdFlags[cmd]
	if !ok {
		return fmt.Errorf("flash command 0x%02X: %w", cmd, protocol.ErrInvalidArgument)
	}

	c.logDebug("flash transfer",
		"cmd", fmt.Sprintf("0x%02X", cmd),
		"flash_addr", fmt.Sprintf("0x%06X", flashAddr),
		"sram_addr", fmt.Sprintf("0x%06X", sramAddr),
		"size", size,
	)

	if err := c.writeb(RegCmdSel, cmd); err != nil {
		return fmt.Errorf("select command: %w", err)
	}

	if flags&opSRAMDataXchg != 0 {
		if err := c.writel(RegSRAMAddr, sramAddr); err != nil {
			return fmt.Errorf("set sram address: %w", err)
		}
		if flags&opRead == 0 && len(data) > 0 {
			if err := c.mem.WriteSRAM(sramAddr, data); err != nil {
				return fmt.Errorf("stage data: %w", err)
			}
		}
	}

	if flags&opSetFlashAddr != 0 {
		if err := c.writel(RegFlashAddr, flashAddr); err != nil {
			return fmt.Errorf("set flash address: %w", err)
		}
	}

	if flags&opSetDataLength != 0 {
		if err := c.writel(RegDataLength, size); err != nil {
			return fmt.Errorf("set data length: %w", err)
		}
	}

	if err := c.writeb(RegStartDexc, 1); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if err := c.waitIdle(cmdName(cmd)); err != nil {
		return err
	}

	if flags&opRead != 0 && len(data) > 0 {
		if err := c.mem.ReadSRAM(sramAddr, data); err != nil {
			return fmt.Errorf("fetch data: %w", err)
		}
	}

	return nil
}

// waitIdle polls SF_BUSY and releases the flash whether or not the command
// completed.
func (c *Controller) waitIdle(op string) error {
	for i := 0; i < c.config.BusyPolls; i++ {
		busy, err := c.readb(RegSFBusy)
		if err != nil {
			c.release()
			return fmt.Errorf("read busy flag: %w", err)
		}
		if busy == 0 {
			return c.release()
		}
		c.config.Sleep(c.config.BusyPollInterval)
	}

	if err := c.release(); err != nil {
		c.logError("release flash failed", "error", err)
	}
	return &TimeoutError{Operation: op, Polls: c.config.BusyPolls}
}

func (c *Controller) release() error {
	if err := c.writeb(RegReleaseFlash, 1); err != nil {
		return fmt.Errorf("release flash: %w", err)
	}
	return nil
}

func (c *Controller) readb(reg uint32) (byte, error) {
	var b [1]byte
	if err := c.mem.ReadSRAM(c.layout.RegBase+reg, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Controller) readl(reg uint32) (uint32, error) {
	var b [4]byte
	if err := c.mem.ReadSRAM(c.layout.RegBase+reg, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (c *Controller) writeb(reg uint32, v byte) error {
	return c.mem.WriteSRAM(c.layout.RegBase+reg, []byte{v})
}

func (c *Controller) writel(reg, v uint32) error {
	return c.mem.WriteSRAM(c.layout.RegBase+reg, binary.LittleEndian.AppendUint32(nil, v))
}

func cmdName(cmd byte) string {
	switch cmd {
	case CmdFastRead:
		return "fast read"
	case CmdSectorErase:
		return "sector erase"
	case CmdChipErase:
		return "chip erase"
	case CmdPageProgram:
		return "page program"
	case CmdAutoPageProgram:
		return "auto page program"
	default:
		return fmt.Sprintf("command 0x%02X", cmd)
	}
}

func (c *Controller) logDebug(msg string, kv ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, kv...)
	}
}

func (c *Controller) logError(msg string, kv ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Error(msg, kv...)
	}
}
