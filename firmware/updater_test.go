package firmware

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moffa90/go-cts/device"
	"github.com/moffa90/go-cts/internal/chipsim"
	"github.com/moffa90/go-cts/protocol"
)

// Mock logger for testing
type MockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) {
	l.debugMsgs = append(l.debugMsgs, msg)
}

func (l *MockLogger) Info(msg string, kv ...interface{}) {
	l.infoMsgs = append(l.infoMsgs, msg)
}

func (l *MockLogger) Error(msg string, kv ...interface{}) {
	l.errorMsgs = append(l.errorMsgs, msg)
}

func noSleep(time.Duration) {}

func newProbedDevice(t *testing.T, chip *chipsim.Chip) *device.Device {
	t.Helper()

	dev := device.New(chip, chip, device.WithSleep(noSleep))
	dev.Lock()
	defer dev.Unlock()
	if err := dev.Probe(); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	return dev
}

func testImage(t *testing.T, size int, version uint16) *Image {
	t.Helper()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}
	if size >= VersionOffset+2 {
		binary.LittleEndian.PutUint16(data[VersionOffset:], version)
	}

	img, err := NewImage("test.bin", data)
	if err != nil {
		t.Fatalf("NewImage() error = %v", err)
	}
	return img
}

func storedTrailer(t *testing.T, chip *chipsim.Chip) Trailer {
	t.Helper()

	var tr Trailer
	if err := tr.UnmarshalBinary(chip.Flash(TrailerOffset, TrailerSize)); err != nil {
		t.Fatalf("trailer in flash: %v", err)
	}
	return tr
}

func TestNewUpdaterNilDevice(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewUpdater(nil) did not panic")
		}
	}()
	NewUpdater(nil)
}

func TestUpdateToFlash(t *testing.T) {
	chip := chipsim.New()
	dev := newProbedDevice(t, chip)
	logger := &MockLogger{}

	var phases []string
	var last Progress
	up := NewUpdater(dev,
		WithLogger(logger),
		WithChunkSize(1024),
		WithProgressCallback(func(p Progress) {
			if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
				phases = append(phases, p.Phase)
			}
			if p.Percentage < last.Percentage {
				t.Errorf("progress went back from %.1f to %.1f", last.Percentage, p.Percentage)
			}
			last = p
		}),
	)

	img := testImage(t, 4096, 0x0A20)
	if err := up.Update(context.Background(), img, true); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if !bytes.Equal(chip.Flash(0, img.Size()), img.Data) {
		t.Error("flash differs from image")
	}
	if tr := storedTrailer(t, chip); !tr.Matches(img) {
		t.Errorf("trailer = %+v, want crc 0x%08X length %d", tr, img.CRC(), img.Size())
	}

	wantPhases := []string{PhasePreparing, PhaseWritingSRAM, PhaseErasing, PhaseProgramming,
		PhaseVerifying, PhaseWritingTrailer, PhaseComplete}
	if len(phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", phases, wantPhases)
	}
	for i := range wantPhases {
		if phases[i] != wantPhases[i] {
			t.Errorf("phase %d = %s, want %s", i, phases[i], wantPhases[i])
		}
	}
	if last.Percentage != 100 || last.BytesWritten != img.Size() {
		t.Errorf("final progress = %+v", last)
	}

	state := dev.State()
	if state.Mode != protocol.ModeNormal || state.Updating {
		t.Errorf("state after update = %+v", state)
	}
	if dev.FirmwareData().Rows != 8 {
		t.Error("firmware data should be reloaded after the update")
	}
	if len(logger.infoMsgs) == 0 {
		t.Error("update should log at info level")
	}
}

func TestUpdateReadTrailer(t *testing.T) {
	chip := chipsim.New()
	dev := newProbedDevice(t, chip)
	img := testImage(t, 1024, 0x0A20)

	if err := NewUpdater(dev).Update(context.Background(), img, true); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	dev.Lock()
	defer dev.Unlock()
	f, err := dev.PrepareFlash()
	if err != nil {
		t.Fatalf("PrepareFlash() error = %v", err)
	}

	tr, err := ReadTrailer(f)
	if err != nil {
		t.Fatalf("ReadTrailer() error = %v", err)
	}
	if !tr.Matches(img) {
		t.Errorf("ReadTrailer() = %+v", tr)
	}
}

func TestUpdateToSRAM(t *testing.T) {
	chip := chipsim.New()
	dev := newProbedDevice(t, chip)
	img := testImage(t, 2048, 0x0A20)

	if err := NewUpdater(dev).Update(context.Background(), img, false); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if !bytes.Equal(chip.SRAM(0, img.Size()), img.Data) {
		t.Error("SRAM differs from image")
	}
	if chip.SectorErases() != 0 {
		t.Errorf("sector erases = %d, want none", chip.SectorErases())
	}
	if got := chip.Flash(0, 4); !bytes.Equal(got, []byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Errorf("flash was programmed: % X", got)
	}
	if dev.Mode() != protocol.ModeNormal {
		t.Errorf("mode = %v, want normal", dev.Mode())
	}
}

func TestUpdateLargeImageStaysInProgramMode(t *testing.T) {
	chip := chipsim.New()
	dev := newProbedDevice(t, chip)
	img := testImage(t, 0xBF00, 0x0A20)

	if err := NewUpdater(dev).Update(context.Background(), img, true); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if !bytes.Equal(chip.Flash(0, img.Size()), img.Data) {
		t.Error("flash differs from image")
	}
	if tr := storedTrailer(t, chip); !tr.Matches(img) {
		t.Errorf("trailer = %+v", tr)
	}
	if dev.Mode() != protocol.ModeProgram {
		t.Errorf("mode = %v, want program", dev.Mode())
	}
}

func TestUpdateTrailerCorruption(t *testing.T) {
	chip := chipsim.New()
	chip.ProgramHook = func(addr uint32, data []byte) {
		if addr == TrailerOffset {
			data[4] ^= 0x01
		}
	}
	dev := newProbedDevice(t, chip)
	img := testImage(t, 1024, 0x0A20)

	err := NewUpdater(dev).Update(context.Background(), img, true)

	var updateErr *UpdateError
	if !errors.As(err, &updateErr) {
		t.Fatalf("Update() error = %v, want UpdateError", err)
	}
	if updateErr.Stage != StageTrailer || updateErr.Attempts != 3 {
		t.Errorf("UpdateError = stage %s, %d attempts; want trailer, 3", updateErr.Stage, updateErr.Attempts)
	}

	var mismatch *TrailerMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error should carry a TrailerMismatchError: %v", err)
	}
	if mismatch.Read[4] == mismatch.Written[4] {
		t.Error("mismatch should report the corrupted length byte")
	}

	state := dev.State()
	if state.Mode != protocol.ModeProgram || state.Updating {
		t.Errorf("state after failed update = %+v", state)
	}
}

func TestUpdateVerifyRetries(t *testing.T) {
	tests := []struct {
		name         string
		faults       int
		wantErr      bool
		wantAttempts int
	}{
		{"first attempt", 0, false, 1},
		{"mismatch twice then match", 2, false, 3},
		{"permanent mismatch", -1, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chip := chipsim.New()
			dev := newProbedDevice(t, chip)
			chip.FlashCRCFaults = tt.faults

			attempts := 0
			up := NewUpdater(dev, WithProgressCallback(func(p Progress) {
				if p.Attempt > attempts {
					attempts = p.Attempt
				}
			}))

			err := up.Update(context.Background(), testImage(t, 1024, 0x0A20), true)
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}

			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Update() error = %v", err)
				}
				return
			}

			if !errors.Is(err, protocol.ErrIO) {
				t.Fatalf("Update() error = %v, want ErrIO", err)
			}
			var updateErr *UpdateError
			if !errors.As(err, &updateErr) || updateErr.Stage != StageVerify || updateErr.Attempts != 3 {
				t.Errorf("error = %v, want verify UpdateError after 3 attempts", err)
			}
		})
	}
}

func TestUpdateSRAMRetries(t *testing.T) {
	tests := []struct {
		name    string
		faults  int
		wantErr bool
	}{
		{"mismatch twice then match", 2, false},
		{"permanent mismatch", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chip := chipsim.New()
			dev := newProbedDevice(t, chip)
			chip.SRAMCRCFaults = tt.faults

			err := NewUpdater(dev).Update(context.Background(), testImage(t, 512, 0x0A20), false)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Update() error = %v", err)
				}
				return
			}

			var updateErr *UpdateError
			if !errors.As(err, &updateErr) || updateErr.Stage != StageSRAM || updateErr.Attempts != 3 {
				t.Fatalf("error = %v, want sram UpdateError after 3 attempts", err)
			}
			if !errors.Is(err, protocol.ErrIO) {
				t.Errorf("error should match ErrIO: %v", err)
			}
		})
	}
}

func TestUpdateEraseTimeout(t *testing.T) {
	chip := chipsim.New()
	dev := newProbedDevice(t, chip)
	img := testImage(t, 512, 0x0A20)

	dev.Lock()
	_, err := dev.PrepareFlash()
	dev.Unlock()
	if err != nil {
		t.Fatalf("PrepareFlash() error = %v", err)
	}
	chip.BusyPolls = -1

	err = NewUpdater(dev, WithFlashAttempts(2)).Update(context.Background(), img, true)

	var updateErr *UpdateError
	if !errors.As(err, &updateErr) {
		t.Fatalf("Update() error = %v, want UpdateError", err)
	}
	// with the flash already probed, the SRAM CRC is the first command to wait on SF_BUSY
	if updateErr.Stage != StageSRAM || !errors.Is(err, protocol.ErrTimeout) {
		t.Errorf("error = %v, want sram stage timeout", err)
	}
}

func TestUpdateInvalidImage(t *testing.T) {
	tests := []struct {
		name string
		img  *Image
	}{
		{"nil image", nil},
		{"empty", &Image{Name: "empty.bin"}},
		{"unaligned", &Image{Name: "odd.bin", Data: make([]byte, 1023)}},
		{"too large", &Image{Name: "big.bin", Data: make([]byte, MaxImageSize+4)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chip := chipsim.New()
			dev := newProbedDevice(t, chip)
			before := chip.Transfers()

			err := NewUpdater(dev).Update(context.Background(), tt.img, true)
			if !errors.Is(err, protocol.ErrInvalidArgument) {
				t.Fatalf("Update() error = %v, want ErrInvalidArgument", err)
			}
			if chip.Transfers() != before {
				t.Error("invalid image reached the bus")
			}
		})
	}
}

func TestUpdateBeforeProbe(t *testing.T) {
	chip := chipsim.New()
	dev := device.New(chip, chip, device.WithSleep(noSleep))

	err := NewUpdater(dev).Update(context.Background(), testImage(t, 512, 1), true)

	var updateErr *UpdateError
	if !errors.As(err, &updateErr) || updateErr.Stage != StagePrepare {
		t.Fatalf("Update() error = %v, want prepare UpdateError", err)
	}
	if !errors.Is(err, protocol.ErrNotSupported) {
		t.Errorf("error should match ErrNotSupported: %v", err)
	}
}

func TestUpdateCancelled(t *testing.T) {
	chip := chipsim.New()
	dev := newProbedDevice(t, chip)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewUpdater(dev).Update(ctx, testImage(t, 512, 1), true)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Update() error = %v, want context.Canceled", err)
	}
	if dev.State().Updating {
		t.Error("updating flag left set")
	}
}

func TestUpdateIfNewer(t *testing.T) {
	tests := []struct {
		name       string
		version    uint16
		wantUpdate bool
	}{
		{"same version", chipsim.DefaultFWVersion, false},
		{"different version", chipsim.DefaultFWVersion + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chip := chipsim.New()
			dev := newProbedDevice(t, chip)
			img := testImage(t, 1024, tt.version)

			var loaded string
			loader := LoaderFunc(func(name string) (*Image, error) {
				loaded = name
				return img, nil
			})

			name := BootImageName("k50", dev.ProjectID(), false)
			err := NewUpdater(dev).UpdateIfNewer(context.Background(), loader, name)

			if loaded != "ts/k50_CTS8918TST.img" {
				t.Errorf("loaded %q", loaded)
			}
			if tt.wantUpdate {
				if err != nil {
					t.Fatalf("UpdateIfNewer() error = %v", err)
				}
				if !bytes.Equal(chip.Flash(0, img.Size()), img.Data) {
					t.Error("flash not updated")
				}
				return
			}

			if !IsUpToDate(err) {
				t.Fatalf("UpdateIfNewer() error = %v, want ErrUpToDate", err)
			}
			if chip.SectorErases() != 0 {
				t.Error("up to date image was flashed")
			}
		})
	}
}

func TestUpdateFromFile(t *testing.T) {
	dir := t.TempDir()
	img := testImage(t, 1024, 0x0A30)
	path := filepath.Join(dir, "ts", "touch_screen_firmware.img")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		t.Fatal(err)
	}

	chip := chipsim.New()
	dev := newProbedDevice(t, chip)

	err := NewUpdater(dev).UpdateFromFile(context.Background(), DirLoader{Dir: dir}, SDImageName, true)
	if err != nil {
		t.Fatalf("UpdateFromFile() error = %v", err)
	}
	if !bytes.Equal(chip.Flash(0, img.Size()), img.Data) {
		t.Error("flash differs from file")
	}

	err = NewUpdater(dev).UpdateFromFile(context.Background(), DirLoader{Dir: dir}, "ts/missing.img", true)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("UpdateFromFile(missing) error = %v, want os.ErrNotExist", err)
	}
}
