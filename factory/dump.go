package factory

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	splitLine   = strings.Repeat("-", 111)
	startBanner = strings.Repeat(">", 54) + "\n"
	endBanner   = strings.Repeat("<", 54) + "\n"
)

// formatGrid renders g as the lines of a data dump:
//
//	split line
//	 <name> test data MIN: [r][c]=v, MAX: [r][c]=v, AVG=v
//	split line
//	   |    0,    1, ...
//	split line
//	 0 | 1234, 1240, ...
//	split line
func formatGrid(g grid) []string {
	min, max := g.data[0], g.data[0]
	var minR, minC, maxR, maxC int
	var sum uint64
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			v := g.at(r, c)
			sum += uint64(v)
			if v > max {
				max, maxR, maxC = v, r, c
			} else if v < min {
				min, minR, minC = v, r, c
			}
		}
	}
	avg := sum / uint64(g.nodes())

	lines := []string{
		splitLine,
		fmt.Sprintf(" %s test data MIN: [%d][%d]=%d, MAX: [%d][%d]=%d, AVG=%d",
			g.name, minR, minC, min, maxR, maxC, max, avg),
		splitLine,
	}

	var b strings.Builder
	b.WriteString("   | ")
	for c := 0; c < g.cols; c++ {
		fmt.Fprintf(&b, "%4d, ", c)
	}
	lines = append(lines, b.String(), splitLine)

	for r := 0; r < g.rows; r++ {
		b.Reset()
		fmt.Fprintf(&b, "%2d | ", r)
		for c := 0; c < g.cols; c++ {
			fmt.Fprintf(&b, "%4d, ", g.at(r, c))
		}
		lines = append(lines, b.String())
	}

	return append(lines, splitLine)
}

// dumper writes test data to the console logger and a dump file.
type dumper struct {
	logger  Logger
	console bool
	w       io.Writer
}

func (d *dumper) dump(g grid) {
	if g.nodes() == 0 || (!d.console && d.w == nil) {
		return
	}

	for _, line := range formatGrid(g) {
		if d.console && d.logger != nil {
			d.logger.Info(line)
		}
		if d.w != nil {
			_, _ = io.WriteString(d.w, line+"\n")
		}
	}
}

// dumpFile is an open dump file framed by start and end banners.
type dumpFile struct {
	f *os.File
}

// openDumpFile creates the directory of path and opens the file, appending
// or truncating, then writes the start banner.
func openDumpFile(path string, appendTo bool) (*dumpFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return nil, fmt.Errorf("create dump directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if appendTo {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open dump file: %w", err)
	}

	if _, err := io.WriteString(f, startBanner); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write dump file: %w", err)
	}
	return &dumpFile{f: f}, nil
}

func (d *dumpFile) Write(p []byte) (int, error) {
	return d.f.Write(p)
}

// Close writes the end banner and closes the file.
func (d *dumpFile) Close() error {
	if _, err := io.WriteString(d.f, endBanner); err != nil {
		_ = d.f.Close()
		return err
	}
	return d.f.Close()
}
