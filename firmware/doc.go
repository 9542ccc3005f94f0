// Package firmware loads ICNT8918 firmware images and downloads them into
// the controller's SRAM and embedded flash.
//
// # Image Format
//
// An image is a raw binary flashed from offset 0. It must be non-empty, a
// multiple of 4 bytes and no larger than MaxImageSize (0xBFF0). The firmware
// version is the little-endian word at offset 0x100.
//
// After a flash update a 16 byte trailer record is written at 0xBFF0:
//
//	[CRC(4)][Length(4)][0x0000C35A(4)][Length(4)]
//
// CRC is the software CRC32 (polynomial 0x04C11DB7, MSB first, zero
// initial value) of the image. The same image is also checked with the
// flash controller's hardware CRC after every SRAM download and flash
// program, so every update is guarded by two independent checks.
//
// # Basic Usage
//
//	img, err := firmware.Load("/vendor/firmware/ts/CTS8918TST.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	up := firmware.NewUpdater(dev)
//	if err := up.Update(context.Background(), img, true); err != nil {
//	    log.Fatal(err)
//	}
//
// # Boot Updates
//
// UpdateIfNewer skips images carrying the version the device already runs:
//
//	loader := firmware.DirLoader{Dir: "/vendor/firmware"}
//	name := firmware.BootImageName(product, dev.ProjectID(), false)
//	err := up.UpdateIfNewer(ctx, loader, name)
//	if firmware.IsUpToDate(err) {
//	    err = nil
//	}
//
// # Error Handling
//
// A failed update returns an *UpdateError whose Stage tells where the
// sequence stopped: prepare, sram, erase, program, verify, trailer or start.
// Verification failures unwrap to protocol.ErrIO, and a trailer that does
// not read back identically carries a *TrailerMismatchError. The device is
// left in program mode after a failure.
package firmware
