package firmware

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/moffa90/go-cts/protocol"
)

func TestBootImageName(t *testing.T) {
	tests := []struct {
		product   string
		projectID string
		hide      bool
		want      string
	}{
		{"k50", "CTS8918TST", false, "ts/k50_CTS8918TST.img"},
		{"k50", "CTS8918TST", true, "ts/CTS8918TST.bin"},
		{"", "P1", false, "ts/_P1.img"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := BootImageName(tt.product, tt.projectID, tt.hide); got != tt.want {
				t.Errorf("BootImageName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "ts"), 0o755); err != nil {
		t.Fatal(err)
	}
	want := testImage(t, 1024, 0x0A11)
	if err := os.WriteFile(filepath.Join(dir, "ts", "CTS8918TST.bin"), want.Data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ts", "odd.bin"), make([]byte, 3), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := DirLoader{Dir: dir}

	t.Run("found", func(t *testing.T) {
		img, err := loader.Load("ts/CTS8918TST.bin")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if img.Name != "ts/CTS8918TST.bin" {
			t.Errorf("Name = %q", img.Name)
		}
		if img.Version() != 0x0A11 {
			t.Errorf("Version() = %04x", img.Version())
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := loader.Load("ts/none.bin"); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Load() error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := loader.Load("ts/odd.bin"); !errors.Is(err, protocol.ErrInvalidArgument) {
			t.Errorf("Load() error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		if _, err := loader.Load(""); !errors.Is(err, protocol.ErrInvalidArgument) {
			t.Errorf("Load() error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestLoaderFunc(t *testing.T) {
	img := testImage(t, 8, 0)
	var got string
	loader := LoaderFunc(func(name string) (*Image, error) {
		got = name
		return img, nil
	})

	loaded, err := loader.Load(SDImageName)
	if err != nil || loaded != img {
		t.Fatalf("Load() = %v, %v", loaded, err)
	}
	if got != "ts/touch_screen_firmware.img" {
		t.Errorf("loader called with %q", got)
	}
}
