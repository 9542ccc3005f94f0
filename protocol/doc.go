// Package protocol implements the wire conventions of the Chipone ICNT8918
// touch controller.
//
// This package provides address framing, checksums, register maps and the
// error taxonomy shared by the device, flash, firmware and factory packages.
//
// # Protocol Overview
//
// The controller answers on two I2C addresses depending on its mode:
//
//	Normal mode:  slave 0x42, [ADDR_H][ADDR_L][DATA...]
//	Program mode: slave 0x30, [ADDR_U][ADDR_H][ADDR_L][DATA...]
//
// Addresses are big-endian; register values are little-endian unless noted.
// Every chunk of a long transfer re-sends its own address header.
//
// # CRC Framing
//
// When CRC framing is enabled, writes carry a trailing CRC16 over address and
// data, and reads return the payload followed by a CRC16 over the payload:
//
//	frame, err := protocol.BuildWriteFrame(0x1000, protocol.ProgramAddrWidth, data, true)
//	payload, err := protocol.ParseCRCResponse(resp)
//
// # Debug Interface
//
// While the firmware runs, SRAM and hardware registers are only reachable one
// byte at a time through RegDebugIntf:
//
//	write: RegDebugIntf <- [ADDR(4, LE)][DATA]
//	read:  RegDebugIntf <- [ADDR(4, LE)], then read RegDebugIntfData
//
// # Error Handling
//
// Failures are classified by the Err* kinds and can be tested with errors.Is:
//
//	if errors.Is(err, protocol.ErrDeviceAbsent) {
//	    // firmware register access attempted in program mode
//	}
//
// ErrorCode converts an error into the negative code reported by factory
// test results.
package protocol
