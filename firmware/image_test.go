package firmware

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moffa90/go-cts/protocol"
)

func TestImageValidate(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
		errMsg  string
	}{
		{"smallest image", 4, false, ""},
		{"typical image", 0x8000, false, ""},
		{"largest image", MaxImageSize, false, ""},
		{"empty", 0, true, "empty image"},
		{"unaligned", 1022, true, "multiple of 4"},
		{"too large", MaxImageSize + 4, true, "larger than"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := &Image{Name: "fw.bin", Data: make([]byte, tt.size)}
			err := img.Validate()

			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.errMsg)
			}
			if !errors.Is(err, protocol.ErrInvalidArgument) {
				t.Error("Validate() error should match ErrInvalidArgument")
			}
		})
	}
}

func TestImageVersion(t *testing.T) {
	img := testImage(t, 1024, 0x0A25)
	if got := img.Version(); got != 0x0A25 {
		t.Errorf("Version() = %04x, want 0a25", got)
	}

	short := &Image{Data: make([]byte, VersionOffset)}
	if got := short.Version(); got != 0 {
		t.Errorf("Version() of short image = %04x, want 0", got)
	}
}

func TestImageCRC(t *testing.T) {
	img := testImage(t, 256, 0)
	if got, want := img.CRC(), protocol.CalculateCRC32(img.Data); got != want {
		t.Errorf("CRC() = 0x%08X, want 0x%08X", got, want)
	}
}

func TestLoadReader(t *testing.T) {
	data := bytes.Repeat([]byte{0xA5, 0x5A, 0x00, 0xFF}, 64)

	img, err := LoadReader("fw.bin", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadReader() error = %v", err)
	}
	if img.Name != "fw.bin" || !bytes.Equal(img.Data, data) {
		t.Errorf("LoadReader() = %q, %d bytes", img.Name, img.Size())
	}

	// an oversized stream is cut one byte past the limit and rejected
	_, err = LoadReader("big.bin", bytes.NewReader(make([]byte, 2*MaxImageSize)))
	var invalid *InvalidImageError
	if !errors.As(err, &invalid) {
		t.Fatalf("LoadReader(oversized) error = %v, want InvalidImageError", err)
	}
	if invalid.Size != MaxImageSize+1 {
		t.Errorf("consumed %d bytes, want %d", invalid.Size, MaxImageSize+1)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "CTS8918TST.bin")
	want := testImage(t, 512, 0x0B01)
	if err := os.WriteFile(path, want.Data, 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if img.Name != "CTS8918TST.bin" || img.Version() != 0x0B01 {
		t.Errorf("Load() = %q version %04x", img.Name, img.Version())
	}

	if _, err := Load(filepath.Join(dir, "missing.bin")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) error = %v, want os.ErrNotExist", err)
	}
}
