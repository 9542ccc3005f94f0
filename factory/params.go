package factory

import (
	"fmt"

	"github.com/moffa90/go-cts/protocol"
)

// Item is one factory test.
type Item int

// Test items.
const (
	ItemResetPin Item = iota + 1
	ItemIntPin
	ItemRawdata
	ItemDeviation
	ItemNoise
	ItemOpen
	ItemShort
	ItemCompensateCap
)

// String returns the name used in console output.
func (i Item) String() string {
	switch i {
	case ItemResetPin:
		return "Reset-Pin"
	case ItemIntPin:
		return "Int-Pin"
	case ItemRawdata:
		return "Rawdata"
	case ItemDeviation:
		return "Deviation"
	case ItemNoise:
		return "Noise"
	case ItemOpen:
		return "Open"
	case ItemShort:
		return "Short"
	case ItemCompensateCap:
		return "Compensate-Cap"
	default:
		return fmt.Sprintf("Item(%d)", int(i))
	}
}

// dataFile is the default dump file name of an item.
func (i Item) dataFile() string {
	switch i {
	case ItemRawdata:
		return "rawdata-test-data.txt"
	case ItemDeviation:
		return "deviation-test-data.txt"
	case ItemNoise:
		return "noise-test-data.txt"
	case ItemOpen:
		return "open-test-data.txt"
	case ItemShort:
		return "short-test-data.txt"
	case ItemCompensateCap:
		return "comp-cap-test-data.txt"
	default:
		return ""
	}
}

// Flags selects validation and dump behaviour of a test run.
type Flags struct {
	// ValidateData compares the measured data with the thresholds
	ValidateData bool

	// ValidatePerNode selects one threshold per node instead of a uniform one
	ValidatePerNode bool

	// ValidateMin and ValidateMax enable the lower and upper bound
	ValidateMin bool
	ValidateMax bool

	// StopOnFail ends a multi frame test at the first failing frame
	StopOnFail bool

	DumpConsole bool
	DumpBuffer  bool
	DumpFile    bool

	// DumpFileAppend appends to the dump file instead of truncating it
	DumpFileAppend bool
}

// NodeKey identifies a node in an exclusion list or a failure record.
type NodeKey uint32

// MakeNodeKey packs row and col.
func MakeNodeKey(row, col int) NodeKey {
	return NodeKey(uint32(row)&0xFFFF | uint32(col)<<16)
}

// Row returns the row of the node.
func (k NodeKey) Row() int {
	return int(k & 0xFFFF)
}

// Col returns the column of the node.
func (k NodeKey) Col() int {
	return int(k >> 16)
}

func (k NodeKey) String() string {
	return fmt.Sprintf("[%d][%d]", k.Row(), k.Col())
}

// Params configures one test run.
//
// A threshold slice holds one value for a uniform threshold, or one value
// per node with Flags.ValidatePerNode. Per node mutual thresholds may carry
// the self thresholds after the rows*cols mutual values; SelfMin and
// SelfMax take precedence when set.
type Params struct {
	Item  Item
	Flags Flags

	// Frames is the number of raw data frames captured
	Frames int

	Min     []int
	Max     []int
	SelfMin []int
	SelfMax []int

	// Excluded nodes are skipped by validation
	Excluded []NodeKey

	// FilePath is the dump file; relative paths are resolved against the
	// engine's data directory and an empty path selects the item default
	FilePath string

	// BufferSize is the capacity in bytes of the dump buffer
	BufferSize int
}

// AllocTestData sizes the dump buffer for a rows x cols panel.
func (p *Params) AllocTestData(rows, cols int) {
	nodes := rows*cols + rows + cols

	switch p.Item {
	case ItemRawdata, ItemDeviation:
		p.BufferSize = 2 * nodes * p.Frames
	case ItemNoise:
		// frames followed by noise, max and min
		p.BufferSize = 2 * nodes * (p.Frames + 3)
	case ItemOpen:
		p.BufferSize = 2 * nodes
	case ItemShort:
		p.BufferSize = 2 * nodes * 7
	case ItemCompensateCap:
		p.BufferSize = 2 * nodes
	default:
		p.BufferSize = 0
	}
}

// check validates params that do not depend on the panel.
func (p *Params) check() error {
	switch p.Item {
	case ItemRawdata, ItemDeviation:
		if p.Frames < 1 {
			return fmt.Errorf("%s test with %d frames: %w", p.Item, p.Frames, protocol.ErrInvalidArgument)
		}
	case ItemNoise:
		if p.Frames < 2 {
			return fmt.Errorf("%s test with %d frames: %w", p.Item, p.Frames, protocol.ErrInvalidArgument)
		}
	case ItemResetPin, ItemIntPin, ItemOpen, ItemShort, ItemCompensateCap:
	default:
		return fmt.Errorf("test item %d: %w", int(p.Item), protocol.ErrInvalidArgument)
	}
	return nil
}

// Result reasons carried into the summary string.
const (
	ReasonSoftware = "software_reason"
	ReasonPanel    = "panel_reason"
)

// Result is the outcome of one test run.
type Result struct {
	Item Item

	// Failed counts failing mutual (or only) nodes; SelfFailed counts
	// failing self capacitance nodes
	Failed     int
	SelfFailed int

	FailedNodes     []NodeKey
	SelfFailedNodes []NodeKey

	// Err is set when the test could not complete
	Err error

	// Data holds the dumped samples with Flags.DumpBuffer
	Data []uint16

	// Reason is ReasonSoftware or ReasonPanel for failed runs
	Reason string
}

// Value returns 0 for a pass, the number of failing nodes for a
// validation failure and the negative error code when the test could not
// complete.
func (r Result) Value() int {
	if r.Err != nil {
		return protocol.ErrorCode(r.Err)
	}
	return r.Failed + r.SelfFailed
}

// Passed reports whether the run completed without failing nodes.
func (r Result) Passed() bool {
	return r.Value() == 0
}
