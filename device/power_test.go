package device

import (
	"errors"
	"testing"

	"github.com/moffa90/go-cts/internal/chipsim"
	"github.com/moffa90/go-cts/protocol"
)

func TestStartStop(t *testing.T) {
	dev := newTestDevice(chipsim.New())

	if err := dev.Stop(); err != nil {
		t.Fatalf("Stop() on halted device error = %v", err)
	}
	if err := dev.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := dev.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !dev.State().Enabled {
		t.Fatal("device should be enabled")
	}

	dev.SetUpdating(true)
	if err := dev.Stop(); !errors.Is(err, protocol.ErrBusy) {
		t.Fatalf("Stop() while updating error = %v, want ErrBusy", err)
	}
	if !dev.State().Enabled {
		t.Error("failed Stop() disabled the device")
	}

	dev.SetUpdating(false)
	if err := dev.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if dev.State().Enabled {
		t.Error("device should be disabled")
	}
}

func TestSuspend(t *testing.T) {
	tests := []struct {
		name    string
		gesture bool
		program bool
		wantCmd byte
	}{
		{"plain suspend", false, false, protocol.CmdSuspend},
		{"gesture suspend", true, false, protocol.CmdSuspendWithGesture},
		{"suspend from program mode", false, true, protocol.CmdSuspend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chip := chipsim.New()
			dev := newTestDevice(chip, WithGestureWakeup(tt.gesture))
			if tt.program {
				if err := dev.EnterProgramMode(); err != nil {
					t.Fatalf("EnterProgramMode() error = %v", err)
				}
			}

			if err := dev.Suspend(); err != nil {
				t.Fatalf("Suspend() error = %v", err)
			}

			cmds := chip.Commands()
			if len(cmds) == 0 || cmds[len(cmds)-1] != tt.wantCmd {
				t.Errorf("commands = % X, want last 0x%02X", cmds, tt.wantCmd)
			}
			if !dev.State().Suspended || !chip.Suspended() {
				t.Error("device should be suspended")
			}
			if dev.Mode() != protocol.ModeNormal {
				t.Errorf("mode = %v, want normal", dev.Mode())
			}

			n := len(chip.Commands())
			if err := dev.Suspend(); err != nil {
				t.Fatalf("second Suspend() error = %v", err)
			}
			if len(chip.Commands()) != n {
				t.Error("second Suspend() sent a command")
			}
		})
	}
}

func TestResume(t *testing.T) {
	chip := chipsim.New()
	dev := newTestDevice(chip)

	if err := dev.Suspend(); err != nil {
		t.Fatalf("Suspend() error = %v", err)
	}
	if err := dev.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	if dev.State().Suspended || chip.Suspended() {
		t.Error("device should be awake")
	}
	if dev.Mode() != protocol.ModeNormal {
		t.Errorf("mode = %v, want normal", dev.Mode())
	}
	if chip.Resets() != 1 {
		t.Errorf("resets = %d, want 1", chip.Resets())
	}
}

func TestResumeWithoutFirmware(t *testing.T) {
	chip := chipsim.New()
	chip.BootToProgram = true
	dev := newTestDevice(chip)

	err := dev.Resume()
	if !errors.Is(err, protocol.ErrIO) {
		t.Fatalf("Resume() error = %v, want ErrIO", err)
	}

	state := dev.State()
	if state.Mode != protocol.ModeProgram || state.SlaveAddr != protocol.ProgramSlaveAddr {
		t.Errorf("state = %+v, want program mode", state)
	}
}
