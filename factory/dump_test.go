package factory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moffa90/go-cts/internal/chipsim"
	"github.com/moffa90/go-cts/protocol"
)

func TestOpenDumpFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "data.txt")

	for i, appendTo := range []bool{false, true, false} {
		f, err := openDumpFile(path, appendTo)
		if err != nil {
			t.Fatalf("openDumpFile() #%d error = %v", i, err)
		}
		if _, err := f.Write([]byte("row\n")); err != nil {
			t.Fatal(err)
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}

		want := startBanner + "row\n" + endBanner
		if appendTo {
			want = strings.Repeat(want, 2)
		}
		if string(data) != want {
			t.Errorf("file after open #%d = %q, want %q", i, data, want)
		}
	}
}

func TestRunDumpFile(t *testing.T) {
	dir := t.TempDir()
	chip := chipsim.New()
	chip.SetFrames(chip.UniformFrame(1500, 800))
	eng, _ := newEngine(t, chip, WithDataDir(dir))

	p := uniformParams(ItemRawdata, 500, 2000)
	p.Flags.DumpFile = true

	res := eng.Run(context.Background(), p)
	if res.Err != nil {
		t.Fatalf("Run() error = %v", res.Err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "rawdata-test-data.txt"))
	if err != nil {
		t.Fatalf("dump file: %v", err)
	}
	text := string(data)

	if !strings.HasPrefix(text, startBanner) || !strings.HasSuffix(text, endBanner) {
		t.Error("dump file is not framed by banners")
	}
	for _, want := range []string{
		" Rawdata test data MIN: [0][0]=1500, MAX: [0][0]=1500, AVG=1500\n",
		" Self Rawdata test data MIN: [0][0]=800, MAX: [0][0]=800, AVG=800\n",
		" 7 | 1500, 1500, 1500, 1500, 1500, 1500, 1500, 1500, \n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("dump file missing %q", want)
		}
	}
}

func TestRunDumpFilePath(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "abs.txt")

	tests := []struct {
		name     string
		dataDir  string
		filePath string
		want     string
		wantErr  error
	}{
		{"default name", dir, "", filepath.Join(dir, "open-test-data.txt"), nil},
		{"relative name", dir, "line1/open.txt", filepath.Join(dir, "line1", "open.txt"), nil},
		{"absolute name", dir, abs, abs, nil},
		{"no path", "", "", "", protocol.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chip := chipsim.New()
			chip.SetOpenData(make([]uint16, 64))
			eng, _ := newEngine(t, chip, WithDataDir(tt.dataDir))

			p := Params{Item: ItemOpen, FilePath: tt.filePath, Flags: Flags{DumpFile: true}}
			res := eng.Run(context.Background(), p)
			if !errors.Is(res.Err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", res.Err, tt.wantErr)
			}
			if tt.want == "" {
				return
			}
			if _, err := os.Stat(tt.want); err != nil {
				t.Errorf("dump file not written: %v", err)
			}
		})
	}
}

func TestRunDumpFileAppend(t *testing.T) {
	dir := t.TempDir()
	chip := chipsim.New()
	chip.SetFrames(chip.UniformFrame(1500, 800))
	eng, _ := newEngine(t, chip, WithDataDir(dir))

	p := uniformParams(ItemRawdata, 500, 2000)
	p.Flags.DumpFile = true
	p.Flags.DumpFileAppend = true

	eng.Run(context.Background(), p)
	eng.Run(context.Background(), p)

	data, err := os.ReadFile(filepath.Join(dir, "rawdata-test-data.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), startBanner); n != 2 {
		t.Errorf("dump file has %d runs, want 2", n)
	}
}

func TestRunDumpConsole(t *testing.T) {
	chip := chipsim.New()
	chip.SetFrames(chip.UniformFrame(1500, 800))
	logger := &MockLogger{}
	eng, _ := newEngine(t, chip, WithLogger(logger))

	p := uniformParams(ItemRawdata, 500, 2000)
	p.Flags.DumpConsole = true
	eng.Run(context.Background(), p)

	var rows int
	for _, msg := range logger.infoMsgs {
		if strings.HasPrefix(msg, " 0 | ") {
			rows++
		}
	}
	// one mutual and one self grid
	if rows != 2 {
		t.Errorf("console has %d grid rows labelled 0, want 2", rows)
	}
}
