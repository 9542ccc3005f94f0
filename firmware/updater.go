package firmware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moffa90/go-cts/device"
	"github.com/moffa90/go-cts/flash"
)

// Updater downloads firmware images into a device and its flash.
//
// Every update holds the device lock for its whole duration.
type Updater struct {
	dev    *device.Device
	config Config
}

// NewUpdater creates an Updater for a probed device.
//
// Example:
//
//	up := firmware.NewUpdater(dev,
//	    firmware.WithProgressCallback(progressFunc),
//	    firmware.WithLogger(logger),
//	)
func NewUpdater(dev *device.Device, opts ...Option) *Updater {
	if dev == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Updater{
		dev:    dev,
		config: cfg,
	}
}

// Update performs the complete update sequence:
//  1. CRC32 the image in software
//  2. Enter program mode, probe flash and mark the device updating
//  3. Download the image into SRAM and check it with the hardware CRC
//  4. Stop here when toFlash is false; the image runs from SRAM
//  5. Erase, program from SRAM and verify the flash CRC, retrying the cycle
//  6. Write the trailer and read it back byte for byte
//  7. Clear updating and start the firmware when it fits below the
//     exchange window, then reload the firmware data
//
// On failure the device is left in program mode.
//
// The operation can be cancelled via context between steps.
//
// Example:
//
//	img, _ := firmware.Load("CTS8918TST.bin")
//	err := up.Update(context.Background(), img, true)
func (u *Updater) Update(ctx context.Context, img *Image, toFlash bool) error {
	if img == nil {
		return &InvalidImageError{Reason: "nil image"}
	}
	if err := img.Validate(); err != nil {
		return err
	}

	u.dev.Lock()
	defer u.dev.Unlock()

	return u.update(ctx, img, toFlash)
}

func (u *Updater) update(ctx context.Context, img *Image, toFlash bool) error {
	start := time.Now()
	size := img.Size()
	crc := img.CRC()

	u.logInfo("update firmware",
		"image", img.Name,
		"target", target(toFlash),
		"version", fmt.Sprintf("%04x", img.Version()),
		"size", size,
		"crc", fmt.Sprintf("0x%08X", crc),
	)

	u.reportProgress(Progress{Phase: PhasePreparing, TotalBytes: size})

	if err := u.dev.EnterProgramMode(); err != nil {
		return &UpdateError{Stage: StagePrepare, Attempts: 1, Err: err}
	}
	f, err := u.dev.PrepareFlash()
	if err != nil {
		return &UpdateError{Stage: StagePrepare, Attempts: 1, Err: err}
	}

	u.dev.SetUpdating(true)
	err = u.download(ctx, f, img, crc, toFlash, start)
	u.dev.SetUpdating(false)
	if err != nil {
		u.logError("update firmware failed", "error", err)
		return err
	}

	if uint32(size) <= f.Controller().Layout().XchgSRAMBase {
		if err := u.dev.EnterNormalMode(); err != nil {
			return &UpdateError{Stage: StageStart, Attempts: 1, Err: err}
		}
		if err := u.dev.InitFirmwareData(); err != nil {
			return &UpdateError{Stage: StageStart, Attempts: 1, Err: err}
		}
	}

	u.reportProgress(Progress{
		Phase:        PhaseComplete,
		BytesWritten: size,
		TotalBytes:   size,
		Percentage:   100,
		ElapsedTime:  time.Since(start),
	})

	u.logInfo("update firmware complete",
		"target", target(toFlash),
		"elapsed", time.Since(start).String(),
	)

	return nil
}

func (u *Updater) download(ctx context.Context, f *flash.Flash, img *Image, crc uint32,
	toFlash bool, start time.Time) error {
	if err := u.writeSRAM(ctx, f, img, crc, start); err != nil {
		return err
	}

	if !toFlash {
		return nil
	}

	var (
		stage Stage
		err   error
	)
	attempt := 1
	for ; attempt <= u.config.FlashAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		if stage, err = u.flashCycle(f, img, crc, attempt, start); err == nil {
			return nil
		}
		u.logError("flash cycle failed", "stage", stage, "attempt", attempt, "error", err)
	}

	return &UpdateError{Stage: stage, Attempts: attempt - 1, Err: err}
}

// writeSRAM downloads the image at SRAM address 0 and checks it with the
// hardware CRC engine, retrying the whole download on mismatch.
func (u *Updater) writeSRAM(ctx context.Context, f *flash.Flash, img *Image, crc uint32, start time.Time) error {
	size := img.Size()

	var err error
	attempt := 1
	for ; attempt <= u.config.SRAMRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		if err = u.writeChunks(img, start); err != nil {
			u.logError("write firmware to sram failed", "attempt", attempt, "error", err)
			continue
		}

		var actual uint32
		if actual, err = f.SRAMCRC(0, uint32(size)); err != nil {
			u.logError("calc sram crc failed", "attempt", attempt, "error", err)
			continue
		}
		if actual == crc {
			u.logDebug("sram crc matches", "crc", fmt.Sprintf("0x%08X", crc))
			return nil
		}

		err = &flash.CRCMismatchError{Addr: 0, Size: uint32(size), Expected: crc, Actual: actual}
		u.logError("sram crc mismatch", "attempt", attempt, "error", err)
	}

	return &UpdateError{Stage: StageSRAM, Attempts: attempt - 1, Err: err}
}

func (u *Updater) writeChunks(img *Image, start time.Time) error {
	size := img.Size()
	for off := 0; off < size; off += u.config.ChunkSize {
		end := off + u.config.ChunkSize
		if end > size {
			end = size
		}

		if err := u.dev.WriteSRAM(uint32(off), img.Data[off:end]); err != nil {
			return err
		}

		// SRAM download covers 0% to 40%
		u.reportProgress(Progress{
			Phase:        PhaseWritingSRAM,
			BytesWritten: end,
			TotalBytes:   size,
			Percentage:   float64(end) / float64(size) * 40,
			ElapsedTime:  time.Since(start),
		})
	}
	return nil
}

// flashCycle erases, programs and verifies the image, then writes the
// trailer. It returns the stage that failed.
func (u *Updater) flashCycle(f *flash.Flash, img *Image, crc uint32, attempt int, start time.Time) (Stage, error) {
	size := uint32(img.Size())
	progress := func(phase string, pct float64) {
		u.reportProgress(Progress{
			Phase:        phase,
			Attempt:      attempt,
			BytesWritten: int(size),
			TotalBytes:   int(size),
			Percentage:   pct,
			ElapsedTime:  time.Since(start),
		})
	}

	progress(PhaseErasing, 45)
	if err := f.Erase(0, size); err != nil {
		return StageErase, err
	}

	progress(PhaseProgramming, 60)
	if err := f.ProgramFromSRAM(0, 0, size); err != nil {
		return StageProgram, err
	}

	progress(PhaseVerifying, 80)
	actual, err := f.FlashCRC(0, size)
	if err != nil {
		return StageVerify, err
	}
	if actual != crc {
		return StageVerify, &flash.CRCMismatchError{Addr: 0, Size: size, Expected: crc, Actual: actual}
	}

	progress(PhaseWritingTrailer, 90)
	if err := u.writeTrailer(f, Trailer{CRC: crc, Length: size}); err != nil {
		return StageTrailer, err
	}

	return "", nil
}

// writeTrailer stages the trailer in SRAM right after the image, programs
// it and reads it back through SRAM.
func (u *Updater) writeTrailer(f *flash.Flash, t Trailer) error {
	want, err := t.MarshalBinary()
	if err != nil {
		return err
	}

	// An image reaching into the trailer sector already erased it.
	sector := f.Info().SectorSize
	if t.Length <= TrailerOffset/sector*sector {
		if err := f.Erase(TrailerOffset, TrailerSize); err != nil {
			return fmt.Errorf("erase trailer: %w", err)
		}
	}

	if err := u.dev.WriteSRAM(t.Length, want); err != nil {
		return fmt.Errorf("stage trailer: %w", err)
	}
	if err := f.ProgramFromSRAM(TrailerOffset, t.Length, TrailerSize); err != nil {
		return fmt.Errorf("program trailer: %w", err)
	}

	if err := f.ReadToSRAM(TrailerOffset, t.Length, TrailerSize); err != nil {
		return fmt.Errorf("read back trailer: %w", err)
	}
	got := make([]byte, TrailerSize)
	if err := u.dev.ReadSRAM(t.Length, got); err != nil {
		return fmt.Errorf("read back trailer: %w", err)
	}

	if !bytes.Equal(got, want) {
		return &TrailerMismatchError{Written: want, Read: got}
	}

	u.logDebug("trailer verified", "crc", fmt.Sprintf("0x%08X", t.CRC), "length", t.Length)
	return nil
}

// UpdateFromFile loads name through loader and updates the device with it.
func (u *Updater) UpdateFromFile(ctx context.Context, loader Loader, name string, toFlash bool) error {
	u.logInfo("update from file", "name", name, "target", target(toFlash))

	img, err := loader.Load(name)
	if err != nil {
		return err
	}
	return u.Update(ctx, img, toFlash)
}

// UpdateIfNewer flashes the image called name unless the device already
// runs the same version, in which case ErrUpToDate is returned. A device
// reporting version 0 is always updated.
func (u *Updater) UpdateIfNewer(ctx context.Context, loader Loader, name string) error {
	img, err := loader.Load(name)
	if err != nil {
		return err
	}
	if err := img.Validate(); err != nil {
		return err
	}

	u.dev.Lock()
	defer u.dev.Unlock()

	current := u.dev.FirmwareData().Version
	u.logInfo("check firmware version",
		"current", fmt.Sprintf("%04x", current),
		"image", fmt.Sprintf("%04x", img.Version()),
	)
	if current > 0 && current == img.Version() {
		return fmt.Errorf("version %04x: %w", current, ErrUpToDate)
	}

	return u.update(ctx, img, true)
}

// IsUpToDate reports whether err means that no update was needed.
func IsUpToDate(err error) bool {
	return errors.Is(err, ErrUpToDate)
}

func target(toFlash bool) string {
	if toFlash {
		return "flash"
	}
	return "sram"
}

// reportProgress calls the progress callback if configured.
func (u *Updater) reportProgress(progress Progress) {
	if u.config.ProgressCallback != nil {
		u.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (u *Updater) logDebug(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (u *Updater) logInfo(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (u *Updater) logError(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Error(msg, keysAndValues...)
	}
}
