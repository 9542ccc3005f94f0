package protocol

// Bus addressing per operating mode.
const (
	// NormalSlaveAddr is the I2C address the running firmware answers on
	NormalSlaveAddr = 0x42

	// ProgramSlaveAddr is the I2C address of the boot ROM in program mode
	ProgramSlaveAddr = 0x30

	// NormalAddrWidth is the register address header size in normal mode
	NormalAddrWidth = 2

	// ProgramAddrWidth is the memory address header size in program mode
	ProgramAddrWidth = 3
)

// Firmware registers, valid only while the firmware is running (normal mode).
const (
	RegWorkMode           = 0x0000
	RegSysBusy            = 0x0001
	RegDataReady          = 0x0002
	RegCmd                = 0x0004
	RegPowerMode          = 0x0005
	RegChipType           = 0x000A
	RegFWVersion          = 0x000C
	RegGetRawCfg          = 0x0012
	RegGetWorkMode        = 0x003F
	RegPanelID            = 0x0043
	RegShortTestStatus    = 0x0046
	RegShortOpenStartFlag = 0x0047
	RegCompensateCapReady = 0x004E
	RegProjectID          = 0x005A
	RegRawData            = 0x2000
	RegRawDataSelfCap     = 0x2080
	RegXResolution        = 0x8000
	RegYResolution        = 0x8002
	RegNumTX              = 0x8004
	RegNumRX              = 0x8005
	RegXYSwap             = 0x8083
	RegIntMode            = 0x8084
	RegIntKeepTime        = 0x8085
	RegAutoCompensateEn   = 0x8114
	RegFlagBits           = 0x8145
	RegESDProtection      = 0x8156
	RegLowPowerEn         = 0x8168
	RegShortData          = 0xB000
	RegOpenData           = 0xB040

	// RegDebugIntf is the window through which SRAM and hardware registers
	// are reached while the firmware is running.
	RegDebugIntf = 0xF000

	// RegDebugIntfData is the data byte of the debug window.
	RegDebugIntfData = RegDebugIntf + 4
)

// Hardware registers in the program mode address space.
const (
	HWRegHardwareID = 0x40000
	HWRegBootMode   = 0x40010
	HWRegBootStatus = 0x40011

	// Display controller registers touched by SetDisplayState
	HWRegDisplayAccess   = 0x3002C
	HWRegDisplaySleepIn  = 0x3C040
	HWRegDisplaySleepOut = 0x3C044
	HWRegDisplayOff      = 0x3C0A0
	HWRegDisplayOn       = 0x3C0A4
)

// Boot mode selectors written to HWRegBootMode.
const (
	BootModeFlash      = 1
	BootModeI2CProgram = 2
	BootModeSRAM       = 3
)

// BootStatusProgramReady is reported by HWRegBootStatus once the boot ROM
// accepts program mode traffic.
const BootStatusProgramReady = BootModeI2CProgram

// Firmware command codes written to RegCmd.
const (
	CmdReset               = 0x01
	CmdSuspend             = 0x02
	CmdWriteIntHigh        = 0x05
	CmdWriteIntLow         = 0x06
	CmdReleaseIntTest      = 0x07
	CmdEnableReadRawdata   = 0x20
	CmdDisableReadRawdata  = 0x21
	CmdSuspendWithGesture  = 0x40
	CmdQuitGestureMonitor  = 0x41
	CmdMonitorOff          = 0xA4
	CmdShortOpenTest       = 0xA6
	CmdMonitorOn           = 0xA7
	CmdLowPowerOff         = 0xA9
	CmdLowPowerOn          = 0xAA
)

// Firmware work modes. A mode is requested through RegWorkMode and the
// firmware reports the one it runs in RegGetWorkMode.
const (
	WorkModeNormal  = 0x00
	WorkModeFactory = 0x01
	WorkModeConfig  = 0x02
	WorkModeTest    = 0x03
)

// PowerModeGesture is reported by RegPowerMode while the firmware monitors
// gestures.
const PowerModeGesture = 1

// FlagBitMonitor in RegFlagBits enables monitor (low rate scan) mode.
const FlagBitMonitor = 0x01

// ShortTestStatusDone is reported by RegShortTestStatus when a short or
// open measurement has been stored.
const ShortTestStatusDone = 3

// BootMagic switches the boot ROM into program mode.
var BootMagic = [4]byte{0xCC, 0x33, 0x55, 0x5A}

// Project information stored in flash.
const (
	// ProjectIDFlashAddr is the flash offset of the project information block
	ProjectIDFlashAddr = 0xC60C

	// ProjectIDLen is the length of the project id string
	ProjectIDLen = 10

	// ProjectIDFlashOffset is where the id starts inside the block
	ProjectIDFlashOffset = 2
)

// Chip identifiers.
const (
	HWIDICNT8918 = 0x8918
	FWIDICNT8918 = 0x8918
	IDInvalid    = 0xFFFF
)

// FWVersionFlashIDThreshold is the first firmware version that reports its
// project id through RegProjectID instead of flash.
const FWVersionFlashIDThreshold = 0x0A00

// CRC16Size is the size of the trailing checksum in CRC-framed transfers.
const CRC16Size = 2
