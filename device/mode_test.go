package device

import (
	"errors"
	"testing"

	"github.com/moffa90/go-cts/internal/chipsim"
	"github.com/moffa90/go-cts/protocol"
)

func TestFWRegisterRequiresNormalMode(t *testing.T) {
	chip := chipsim.New()
	dev := newTestDevice(chip)

	if err := dev.EnterProgramMode(); err != nil {
		t.Fatalf("EnterProgramMode() error = %v", err)
	}

	state := dev.State()
	if state.Mode != protocol.ModeProgram || state.SlaveAddr != protocol.ProgramSlaveAddr ||
		state.AddrWidth != protocol.ProgramAddrWidth {
		t.Fatalf("state after EnterProgramMode = %+v", state)
	}

	before := chip.Transfers()
	_, err := dev.ReadFWRegByte(protocol.RegWorkMode)
	if !errors.Is(err, protocol.ErrDeviceAbsent) {
		t.Fatalf("ReadFWRegByte() in program mode error = %v, want ErrDeviceAbsent", err)
	}
	if err := dev.WriteFWRegByte(protocol.RegWorkMode, 1); !errors.Is(err, protocol.ErrDeviceAbsent) {
		t.Fatalf("WriteFWRegByte() in program mode error = %v, want ErrDeviceAbsent", err)
	}
	if chip.Transfers() != before {
		t.Error("firmware register access in program mode reached the bus")
	}
	var modeErr *ModeError
	if !errors.As(err, &modeErr) {
		t.Errorf("error should wrap a ModeError: %v", err)
	}

	if err := dev.EnterNormalMode(); err != nil {
		t.Fatalf("EnterNormalMode() error = %v", err)
	}

	state = dev.State()
	if state.Mode != protocol.ModeNormal || state.SlaveAddr != protocol.NormalSlaveAddr ||
		state.AddrWidth != protocol.NormalAddrWidth {
		t.Fatalf("state after EnterNormalMode = %+v", state)
	}

	mode, err := dev.WorkMode()
	if err != nil {
		t.Fatalf("WorkMode() in normal mode error = %v", err)
	}
	if mode != protocol.WorkModeNormal {
		t.Errorf("work mode = %d, want %d", mode, protocol.WorkModeNormal)
	}
	if chip.Mode() != protocol.ModeNormal {
		t.Errorf("chip mode = %v, want normal", chip.Mode())
	}
}

func TestModeTransitionIdempotence(t *testing.T) {
	tests := []struct {
		name  string
		mode  protocol.Mode
		enter func(*Device) error
	}{
		{"normal to normal", protocol.ModeNormal, (*Device).EnterNormalMode},
		{"program to program", protocol.ModeProgram, (*Device).EnterProgramMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chip := chipsim.New()
			dev := newTestDevice(chip)
			if tt.mode == protocol.ModeProgram {
				if err := dev.EnterProgramMode(); err != nil {
					t.Fatalf("EnterProgramMode() error = %v", err)
				}
			}

			before := dev.State()
			transfers := chip.Transfers()
			resets := chip.Resets()

			if err := tt.enter(dev); err != nil {
				t.Fatalf("transition error = %v", err)
			}

			if after := dev.State(); after != before {
				t.Errorf("state changed from %+v to %+v", before, after)
			}
			if chip.Transfers() != transfers {
				t.Error("no-op transition reached the bus")
			}
			if chip.Resets() != resets {
				t.Error("no-op transition reset the chip")
			}
		})
	}
}

func TestEnterProgramModeFailure(t *testing.T) {
	tr := &MockTransport{
		max: 48,
		read: func(addr uint16, w, r []byte) error {
			r[0] = 0x01
			return nil
		},
	}
	dev := New(tr, &MockPins{}, WithSleep(noSleep))

	err := dev.EnterProgramMode()
	if !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("EnterProgramMode() error = %v, want ErrInvalidArgument", err)
	}

	var statusErr *BootStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error should wrap a BootStatusError: %v", err)
	}
	if statusErr.Status != 0x01 || statusErr.Attempts != 2 {
		t.Errorf("BootStatusError = %+v", statusErr)
	}

	state := dev.State()
	if state.Mode != protocol.ModeNormal || state.SlaveAddr != protocol.NormalSlaveAddr ||
		state.AddrWidth != protocol.NormalAddrWidth {
		t.Errorf("failed transition changed state to %+v", state)
	}
}

func TestEnterProgramModeSequence(t *testing.T) {
	tr := &MockTransport{
		max: 48,
		read: func(addr uint16, w, r []byte) error {
			r[0] = protocol.BootStatusProgramReady
			return nil
		},
	}
	pins := &MockPins{}
	dev := New(tr, pins, WithSleep(noSleep))

	if err := dev.EnterProgramMode(); err != nil {
		t.Fatalf("EnterProgramMode() error = %v", err)
	}

	if len(pins.levels) != 2 {
		t.Errorf("reset levels = %v, want one pulse", pins.levels)
	}

	// low power off, monitor off, magic, boot status read
	if len(tr.txs) != 4 {
		t.Fatalf("got %d transfers, want 4", len(tr.txs))
	}
	wantCmds := []byte{protocol.CmdLowPowerOff, protocol.CmdMonitorOff}
	for i, cmd := range wantCmds {
		tx := tr.txs[i]
		if tx.addr != protocol.NormalSlaveAddr || len(tx.w) != 3 || tx.w[2] != cmd {
			t.Errorf("transfer %d = %+v, want command 0x%02X", i, tx, cmd)
		}
	}
	magic := tr.txs[2]
	if magic.addr != protocol.ProgramSlaveAddr || [4]byte(magic.w) != protocol.BootMagic {
		t.Errorf("magic transfer = %+v", magic)
	}
	status := tr.txs[3]
	if status.addr != protocol.ProgramSlaveAddr || len(status.w) != 3 || status.n != 1 {
		t.Errorf("boot status transfer = %+v", status)
	}
}

func TestEnterNormalModeWritesBootMode(t *testing.T) {
	chip := chipsim.New()
	dev := newTestDevice(chip)

	if err := dev.EnterProgramMode(); err != nil {
		t.Fatalf("EnterProgramMode() error = %v", err)
	}
	if chip.Mode() != protocol.ModeProgram {
		t.Fatalf("chip mode = %v, want program", chip.Mode())
	}

	if err := dev.EnterNormalMode(); err != nil {
		t.Fatalf("EnterNormalMode() error = %v", err)
	}
	if got := chip.HWReg(protocol.HWRegBootMode); got != protocol.BootModeSRAM {
		t.Errorf("BOOT_MODE = %d, want %d", got, protocol.BootModeSRAM)
	}
}

func TestEnterNormalModeFailureKeepsProgramMode(t *testing.T) {
	tr := &MockTransport{max: 48, err: errors.New("nack")}
	dev := New(tr, nil, WithSleep(noSleep))
	dev.setMode(protocol.ModeProgram)

	if err := dev.EnterNormalMode(); !errors.Is(err, protocol.ErrIO) {
		t.Fatalf("EnterNormalMode() error = %v, want ErrIO", err)
	}
	if dev.Mode() != protocol.ModeProgram {
		t.Errorf("mode = %v, want program", dev.Mode())
	}
}
