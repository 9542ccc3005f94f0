// Package flash drives the embedded flash controller of the ICNT8918.
//
// The controller is a register block in the program mode address space.
// Data moves between SRAM and flash on the chip; only the command registers
// and, for small transfers, the exchange window cross the bus.
//
// # Basic Usage
//
//	ctrl := flash.NewController(dev, hw.Flash)
//	f, err := flash.Probe(ctrl)
//	if err != nil {
//	    return err
//	}
//
//	if err := f.Erase(0, uint32(len(image))); err != nil {
//	    return err
//	}
//	if err := f.ProgramFromSRAM(0, 0, uint32(len(image))); err != nil {
//	    return err
//	}
//	crc, err := f.FlashCRC(0, uint32(len(image)))
//
// Every controller command polls the busy flag at a fixed interval for a
// bounded number of polls and fails with a TimeoutError (protocol.ErrTimeout)
// when the flag never clears.
package flash
