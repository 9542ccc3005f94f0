package device

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/moffa90/go-cts/internal/chipsim"
	"github.com/moffa90/go-cts/protocol"
)

func TestSendCommand(t *testing.T) {
	chip := chipsim.New()
	dev := newTestDevice(chip)

	if err := dev.SendCommand(protocol.CmdMonitorOff); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if cmds := chip.Commands(); len(cmds) != 1 || cmds[0] != protocol.CmdMonitorOff {
		t.Errorf("commands = % X", cmds)
	}

	if err := dev.EnterProgramMode(); err != nil {
		t.Fatalf("EnterProgramMode() error = %v", err)
	}
	err := dev.SendCommand(protocol.CmdMonitorOff)
	var modeErr *ModeError
	if !errors.As(err, &modeErr) || modeErr.Mode != protocol.ModeProgram {
		t.Errorf("SendCommand() in program mode error = %v, want ModeError", err)
	}
}

func TestRawdataStreaming(t *testing.T) {
	chip := chipsim.New()
	chip.SetFrames(chip.UniformFrame(1000, 200), chip.UniformFrame(1010, 210))
	dev := newTestDevice(chip)

	if err := dev.EnableRawdata(); err != nil {
		t.Fatalf("EnableRawdata() error = %v", err)
	}
	if !chip.Streaming() {
		t.Fatal("chip should be streaming")
	}

	for i, want := range []uint16{1000, 1010, 1000} {
		mutual := make([]uint16, 64)
		self := make([]uint16, 16)
		if err := dev.ReadRawFrame(mutual, self); err != nil {
			t.Fatalf("frame %d: ReadRawFrame() error = %v", i, err)
		}
		if mutual[0] != want || mutual[63] != want {
			t.Errorf("frame %d mutual = %d..%d, want %d", i, mutual[0], mutual[63], want)
		}
		if self[0] != want-800 || self[15] != want-800 {
			t.Errorf("frame %d self = %d..%d, want %d", i, self[0], self[15], want-800)
		}
	}

	if err := dev.DisableRawdata(); err != nil {
		t.Fatalf("DisableRawdata() error = %v", err)
	}
	if chip.Streaming() {
		t.Error("chip should stop streaming")
	}
}

func TestWaitDataReadyTimeout(t *testing.T) {
	dev := newTestDevice(chipsim.New())

	err := dev.WaitDataReady(3, time.Millisecond)
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Fatalf("WaitDataReady() error = %v, want ErrTimeout", err)
	}

	var pollErr *PollError
	if !errors.As(err, &pollErr) || pollErr.Polls != 3 {
		t.Errorf("error should be a PollError with 3 polls: %v", err)
	}
}

func TestShortOpenTest(t *testing.T) {
	chip := chipsim.New()
	chip.SetShortData([]uint32{1, 0x12345678, 3000})
	chip.SetOpenData([]uint16{100, 200, 65535})
	dev := newTestDevice(chip)

	if err := dev.StartShortOpenTest(); err != nil {
		t.Fatalf("StartShortOpenTest() error = %v", err)
	}
	if err := dev.WaitShortTestStatus(10, time.Millisecond); err != nil {
		t.Fatalf("WaitShortTestStatus() error = %v", err)
	}

	short := make([]uint32, 3)
	if err := dev.ReadShortData(short); err != nil {
		t.Fatalf("ReadShortData() error = %v", err)
	}
	if short[0] != 1 || short[1] != 0x12345678 || short[2] != 3000 {
		t.Errorf("short data = %v", short)
	}

	open := make([]uint16, 3)
	if err := dev.ReadOpenData(open); err != nil {
		t.Fatalf("ReadOpenData() error = %v", err)
	}
	if open[0] != 100 || open[1] != 200 || open[2] != 65535 {
		t.Errorf("open data = %v", open)
	}

	if err := dev.ClearShortTestStatus(); err != nil {
		t.Fatalf("ClearShortTestStatus() error = %v", err)
	}
	if err := dev.WaitShortTestStatus(2, time.Millisecond); !errors.Is(err, protocol.ErrTimeout) {
		t.Errorf("WaitShortTestStatus() after clear error = %v, want ErrTimeout", err)
	}
}

func TestStartShortOpenTestNotAcknowledged(t *testing.T) {
	chip := chipsim.New()
	chip.IgnoreStartFlag = true
	dev := newTestDevice(chip)

	if err := dev.StartShortOpenTest(); !errors.Is(err, protocol.ErrIO) {
		t.Errorf("StartShortOpenTest() error = %v, want ErrIO", err)
	}
}

func TestReadCompensateCap(t *testing.T) {
	chip := chipsim.New()
	caps := make([]byte, 64)
	for i := range caps {
		caps[i] = byte(i + 10)
	}
	chip.SetCompensateCap(caps)
	dev := newTestDevice(chip)

	got := make([]byte, len(caps))
	if err := dev.ReadCompensateCap(got); err != nil {
		t.Fatalf("ReadCompensateCap() error = %v", err)
	}
	for i := range caps {
		if got[i] != caps[i] {
			t.Fatalf("cap[%d] = %d, want %d", i, got[i], caps[i])
		}
	}
}

func TestSetWorkMode(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(c *chipsim.Chip)
		wantErr  bool
		wantQuit bool
	}{
		{"config", func(c *chipsim.Chip) {}, false, false},
		{"gesture monitor", func(c *chipsim.Chip) {
			c.SetFWReg(protocol.RegPowerMode, protocol.PowerModeGesture)
		}, false, true},
		{"ignored", func(c *chipsim.Chip) { c.WorkModeStuck = true }, true, false},
		{"busy", func(c *chipsim.Chip) { c.SetFWReg(protocol.RegSysBusy, 1) }, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chip := chipsim.New()
			tt.setup(chip)
			dev := newTestDevice(chip)

			err := dev.SetWorkMode(protocol.WorkModeConfig)
			if tt.wantErr {
				if !errors.Is(err, protocol.ErrTimeout) {
					t.Fatalf("SetWorkMode() error = %v, want ErrTimeout", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetWorkMode() error = %v", err)
			}

			if mode, err := dev.WorkMode(); err != nil || mode != protocol.WorkModeConfig {
				t.Errorf("WorkMode() = %d, %v; want %d", mode, err, protocol.WorkModeConfig)
			}
			if got := chip.WorkModes(); len(got) != 1 || got[0] != protocol.WorkModeConfig {
				t.Errorf("requested work modes = %v", got)
			}
			if quit := bytes.IndexByte(chip.Commands(), protocol.CmdQuitGestureMonitor) >= 0; quit != tt.wantQuit {
				t.Errorf("quit gesture monitor sent = %v, want %v", quit, tt.wantQuit)
			}
		})
	}
}

func TestWaitNormalWorkMode(t *testing.T) {
	chip := chipsim.New()
	dev := newTestDevice(chip)

	if err := dev.WaitNormalWorkMode(5, time.Millisecond); err != nil {
		t.Fatalf("WaitNormalWorkMode() after boot error = %v", err)
	}

	if err := dev.SetWorkMode(protocol.WorkModeConfig); err != nil {
		t.Fatal(err)
	}
	if err := dev.WaitNormalWorkMode(5, time.Millisecond); !errors.Is(err, protocol.ErrTimeout) {
		t.Errorf("WaitNormalWorkMode() in config mode error = %v, want ErrTimeout", err)
	}

	if err := dev.SetWorkMode(protocol.WorkModeNormal); err != nil {
		t.Fatal(err)
	}
	if err := dev.WaitNormalWorkMode(5, time.Millisecond); err != nil {
		t.Errorf("WaitNormalWorkMode() error = %v", err)
	}
}

func TestFirmwareFeatureFlags(t *testing.T) {
	chip := chipsim.New()
	chip.SetFWReg(protocol.RegFlagBits, protocol.FlagBitMonitor|0x04)
	dev := newTestDevice(chip)

	if err := dev.SetESDProtection(false); err != nil {
		t.Fatalf("SetESDProtection() error = %v", err)
	}
	if err := dev.SetAutoCompensate(false); err != nil {
		t.Fatalf("SetAutoCompensate() error = %v", err)
	}
	if err := dev.DisableMonitorMode(); err != nil {
		t.Fatalf("DisableMonitorMode() error = %v", err)
	}

	tests := []struct {
		name string
		reg  uint16
		want byte
	}{
		{"esd protection", protocol.RegESDProtection, 0},
		{"auto compensate", protocol.RegAutoCompensateEn, 0},
		{"flag bits", protocol.RegFlagBits, 0x04},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chip.FWReg(tt.reg, 1)[0]; got != tt.want {
				t.Errorf("register 0x%04X = 0x%02X, want 0x%02X", tt.reg, got, tt.want)
			}
		})
	}

	before := chip.Transfers()
	if err := dev.DisableMonitorMode(); err != nil {
		t.Fatal(err)
	}
	if got := chip.Transfers() - before; got != 1 {
		t.Errorf("DisableMonitorMode() with the flag clear made %d transfers, want 1 read", got)
	}
}

func TestDisableLowPower(t *testing.T) {
	chip := chipsim.New()
	dev := newTestDevice(chip)

	if got := chip.FWReg(protocol.RegLowPowerEn, 1)[0]; got != 1 {
		t.Fatalf("low power = %d before disable, want 1", got)
	}
	if err := dev.DisableLowPower(); err != nil {
		t.Fatalf("DisableLowPower() error = %v", err)
	}
	if got := chip.FWReg(protocol.RegLowPowerEn, 1)[0]; got != 0 {
		t.Errorf("low power = %d after disable, want 0", got)
	}
}

func TestSetDisplayState(t *testing.T) {
	tests := []struct {
		name   string
		active bool
		regs   []uint32
	}{
		{"sleep", false, []uint32{protocol.HWRegDisplayOff, protocol.HWRegDisplaySleepIn}},
		{"wake", true, []uint32{protocol.HWRegDisplaySleepOut, protocol.HWRegDisplayOn}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chip := chipsim.New()
			var slept time.Duration
			dev := New(chip, chip, WithSleep(func(d time.Duration) { slept += d }))

			if err := dev.SetDisplayState(tt.active); err != nil {
				t.Fatalf("SetDisplayState() error = %v", err)
			}

			for _, reg := range tt.regs {
				if got := chip.HWReg(reg); got != 0x55 {
					t.Errorf("register 0x%05X = 0x%02X, want 0x55", reg, got)
				}
			}
			if got := chip.HWReg(protocol.HWRegDisplayAccess); got != 0 {
				t.Errorf("access flag = 0x%02X, want restored to 0", got)
			}
			if slept < 200*time.Millisecond {
				t.Errorf("slept %v, want at least 200ms", slept)
			}
		})
	}
}
