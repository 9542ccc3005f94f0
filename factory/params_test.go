package factory

import (
	"errors"
	"testing"

	"github.com/moffa90/go-cts/protocol"
)

func TestNodeKey(t *testing.T) {
	tests := []struct {
		row, col int
		want     NodeKey
		str      string
	}{
		{0, 0, 0x00000000, "[0][0]"},
		{3, 4, 0x00040003, "[3][4]"},
		{0, 15, 0x000F0000, "[0][15]"},
		{31, 17, 0x0011001F, "[31][17]"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			k := MakeNodeKey(tt.row, tt.col)
			if k != tt.want {
				t.Errorf("MakeNodeKey() = 0x%08X, want 0x%08X", uint32(k), uint32(tt.want))
			}
			if k.Row() != tt.row || k.Col() != tt.col {
				t.Errorf("Row(), Col() = %d, %d", k.Row(), k.Col())
			}
			if k.String() != tt.str {
				t.Errorf("String() = %q, want %q", k.String(), tt.str)
			}
		})
	}
}

func TestItemString(t *testing.T) {
	tests := []struct {
		item Item
		want string
		file string
	}{
		{ItemResetPin, "Reset-Pin", ""},
		{ItemIntPin, "Int-Pin", ""},
		{ItemRawdata, "Rawdata", "rawdata-test-data.txt"},
		{ItemDeviation, "Deviation", "deviation-test-data.txt"},
		{ItemNoise, "Noise", "noise-test-data.txt"},
		{ItemOpen, "Open", "open-test-data.txt"},
		{ItemShort, "Short", "short-test-data.txt"},
		{ItemCompensateCap, "Compensate-Cap", "comp-cap-test-data.txt"},
		{Item(99), "Item(99)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.item.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.item.dataFile(); got != tt.file {
				t.Errorf("dataFile() = %q, want %q", got, tt.file)
			}
		})
	}
}

func TestAllocTestData(t *testing.T) {
	// 8x8 panel: 64 mutual and 16 self nodes
	const nodes = 80

	tests := []struct {
		name   string
		params Params
		want   int
	}{
		{"rawdata", Params{Item: ItemRawdata, Frames: 2}, 2 * nodes * 2},
		{"deviation", Params{Item: ItemDeviation, Frames: 1}, 2 * nodes},
		{"noise", Params{Item: ItemNoise, Frames: 16}, 2 * nodes * 19},
		{"open", Params{Item: ItemOpen}, 2 * nodes},
		{"short", Params{Item: ItemShort}, 2 * nodes * 7},
		{"compensate cap", Params{Item: ItemCompensateCap}, 2 * nodes},
		{"pin", Params{Item: ItemResetPin, BufferSize: 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.params
			p.AllocTestData(8, 8)
			if p.BufferSize != tt.want {
				t.Errorf("BufferSize = %d, want %d", p.BufferSize, tt.want)
			}
		})
	}
}

func TestParamsCheck(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"reset pin", Params{Item: ItemResetPin}, false},
		{"rawdata one frame", Params{Item: ItemRawdata, Frames: 1}, false},
		{"rawdata no frame", Params{Item: ItemRawdata}, true},
		{"noise two frames", Params{Item: ItemNoise, Frames: 2}, false},
		{"noise one frame", Params{Item: ItemNoise, Frames: 1}, true},
		{"deviation negative", Params{Item: ItemDeviation, Frames: -1}, true},
		{"open", Params{Item: ItemOpen}, false},
		{"unknown", Params{Item: Item(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.check()
			if (err != nil) != tt.wantErr {
				t.Fatalf("check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, protocol.ErrInvalidArgument) {
				t.Errorf("check() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestResultValue(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want int
	}{
		{"pass", Result{}, 0},
		{"nodes", Result{Failed: 2, SelfFailed: 1}, 3},
		{"io", Result{Err: protocol.ErrIO, Failed: 4}, protocol.CodeIO},
		{"pin", Result{Err: &PinError{Pin: "reset"}}, protocol.CodeIO},
		{"thresholds", Result{Err: &ThresholdError{Name: "Rawdata min"}}, protocol.CodeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Value(); got != tt.want {
				t.Errorf("Value() = %d, want %d", got, tt.want)
			}
			if tt.res.Passed() != (tt.want == 0) {
				t.Errorf("Passed() = %v", tt.res.Passed())
			}
		})
	}
}

func TestPinError(t *testing.T) {
	err := &PinError{Pin: "int", Level: true, Reason: "line did not follow"}
	if got := err.Error(); got != "int pin high: line did not follow" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, protocol.ErrIO) {
		t.Error("PinError does not unwrap to ErrIO")
	}
}
