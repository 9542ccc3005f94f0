package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-cts/device"
	"github.com/moffa90/go-cts/protocol"
)

const (
	getDataRetries    = 3
	getDataRetryDelay = 30 * time.Millisecond

	pinSettleDelay = 50 * time.Millisecond
	intSettleDelay = 10 * time.Millisecond

	noiseSettleDelay = 50 * time.Millisecond

	shortOpenPolls    = 1000
	shortOpenInterval = time.Millisecond
)

// run is the state of one test item while the device lock is held.
type run struct {
	ctx    context.Context
	dev    *device.Device
	logger Logger
	params *Params
	result *Result

	rows, cols int

	dump dumper

	failed     map[NodeKey]bool
	selfFailed map[NodeKey]bool
}

func (r *run) mutualNodes() int {
	return r.rows * r.cols
}

func (r *run) selfNodes() int {
	return r.rows + r.cols
}

// retry runs op up to getDataRetries times, sleeping between failures.
func (r *run) retry(name string, delay time.Duration, op func() error) error {
	var err error
	for i := 0; i < getDataRetries; i++ {
		if err = op(); err == nil {
			return nil
		}
		r.logError(name+" failed", "attempt", i+1, "error", err)
		if delay > 0 {
			r.dev.Sleep(delay)
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (r *run) enableRawdata() error {
	return r.retry("enable raw data", 0, r.dev.EnableRawdata)
}

// disableRawdata is best effort.
func (r *run) disableRawdata() {
	_ = r.retry("disable raw data", 0, r.dev.DisableRawdata)
}

func (r *run) readFrame(mutual, self []uint16) error {
	return r.retry("get raw data", getDataRetryDelay, func() error {
		return r.dev.ReadRawFrame(mutual, self)
	})
}

// keep appends samples to the result buffer.
func (r *run) keep(v ...[]uint16) {
	if !r.params.Flags.DumpBuffer {
		return
	}
	if r.result.Data == nil && r.params.BufferSize > 0 {
		r.result.Data = make([]uint16, 0, r.params.BufferSize/2)
	}
	for _, s := range v {
		r.result.Data = append(r.result.Data, s...)
	}
}

// check validates g when data validation is enabled and records failing
// nodes. It reports whether g passed.
func (r *run) check(g grid, b bounds, self bool) (bool, error) {
	if !r.params.Flags.ValidateData {
		return true, nil
	}

	excluded := r.params.Excluded
	if self {
		excluded = r.params.selfExcluded(r.selfNodes())
	}

	failed, err := validate(g, b, excluded, r.logger)
	if err != nil {
		return false, err
	}

	for _, key := range failed {
		if self {
			if !r.selfFailed[key] {
				r.selfFailed[key] = true
				r.result.SelfFailedNodes = append(r.result.SelfFailedNodes, key)
			}
			continue
		}
		if !r.failed[key] {
			r.failed[key] = true
			r.result.FailedNodes = append(r.result.FailedNodes, key)
		}
	}
	r.result.Failed = len(r.result.FailedNodes)
	r.result.SelfFailed = len(r.result.SelfFailedNodes)

	return len(failed) == 0, nil
}

// selfExcluded returns the excluded nodes that address the self grid.
// Self nodes are keyed by row 0 and their index as column.
func (p *Params) selfExcluded(selfNodes int) []NodeKey {
	var keys []NodeKey
	for _, k := range p.Excluded {
		if k.Row() == 0 && k.Col() < selfNodes {
			keys = append(keys, k)
		}
	}
	return keys
}

func (r *run) stop(passed bool) bool {
	return !passed && r.params.Flags.StopOnFail
}

func (r *run) rawdata() error {
	if err := r.enableRawdata(); err != nil {
		return err
	}
	defer r.disableRawdata()

	mutual := make([]uint16, r.mutualNodes())
	self := make([]uint16, r.selfNodes())
	mb, sb := r.params.bounds(r.mutualNodes(), r.selfNodes())

	for frame := 0; frame < r.params.Frames; frame++ {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if err := r.readFrame(mutual, self); err != nil {
			return err
		}
		r.keep(mutual, self)

		mg := grid16("Rawdata", r.rows, r.cols, mutual)
		sg := grid16("Self Rawdata", 1, r.selfNodes(), self)
		r.dump.dump(mg)
		r.dump.dump(sg)

		passed, err := r.check(mg, mb, false)
		if err != nil {
			return err
		}
		if r.stop(passed) {
			break
		}

		passed, err = r.check(sg, sb, true)
		if err != nil {
			return err
		}
		if r.stop(passed) {
			break
		}
	}
	return nil
}

// deviationOf returns, for every node, the largest difference to its four
// neighbours in thousandths of the node value.
func deviationOf(data []uint16, rows, cols int) ([]uint16, error) {
	nodes := rows * cols
	if cols == 0 || nodes == 0 {
		return nil, fmt.Errorf("deviation of %dx%d grid: %w", rows, cols, protocol.ErrInvalidArgument)
	}
	for i := 0; i < nodes; i++ {
		if data[i] == 0 {
			return nil, fmt.Errorf("deviation: raw data [%d][%d] is zero: %w",
				i/cols, i%cols, protocol.ErrInvalidArgument)
		}
	}

	diff := func(a, b uint16) uint32 {
		if a > b {
			return uint32(a - b)
		}
		return uint32(b - a)
	}

	out := make([]uint16, nodes)
	for i := 0; i < nodes; i++ {
		var max uint32
		neighbours := [4]int{-1, -1, -1, -1}
		if i >= cols {
			neighbours[0] = i - cols
		}
		if i+cols < nodes {
			neighbours[1] = i + cols
		}
		if i%cols != 0 {
			neighbours[2] = i - 1
		}
		if (i+1)%cols != 0 {
			neighbours[3] = i + 1
		}
		for _, n := range neighbours {
			if n >= 0 {
				if d := diff(data[i], data[n]); d > max {
					max = d
				}
			}
		}
		out[i] = uint16(1000 * max / uint32(data[i]))
	}
	return out, nil
}

func (r *run) deviation() error {
	if err := r.enableRawdata(); err != nil {
		return err
	}
	defer r.disableRawdata()

	raw := make([]uint16, r.mutualNodes())
	mb, _ := r.params.bounds(r.mutualNodes(), r.selfNodes())

	for frame := 0; frame < r.params.Frames; frame++ {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if err := r.readFrame(raw, nil); err != nil {
			return err
		}

		dev, err := deviationOf(raw, r.rows, r.cols)
		if err != nil {
			return err
		}
		r.keep(dev)

		g := grid16("Mutual deviation", r.rows, r.cols, dev)
		r.dump.dump(g)

		passed, err := r.check(g, mb, false)
		if err != nil {
			return err
		}
		if r.stop(passed) {
			break
		}
	}
	return nil
}

func (r *run) noise() error {
	if err := r.enableRawdata(); err != nil {
		return err
	}
	defer r.disableRawdata()

	r.dev.Sleep(noiseSettleDelay)

	mn, sn := r.mutualNodes(), r.selfNodes()
	curr := make([]uint16, mn+sn)
	max := make([]uint16, mn+sn)
	min := make([]uint16, mn+sn)

	for frame := 0; frame < r.params.Frames; frame++ {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if err := r.readFrame(curr[:mn], curr[mn:]); err != nil {
			return err
		}
		r.keep(curr)

		r.dump.dump(grid16("Noise rawdata", r.rows, r.cols, curr[:mn]))
		r.dump.dump(grid16("Self noise rawdata", 1, sn, curr[mn:]))

		if frame == 0 {
			copy(max, curr)
			copy(min, curr)
			continue
		}
		for i, v := range curr {
			if v > max[i] {
				max[i] = v
			} else if v < min[i] {
				min[i] = v
			}
		}
	}

	noise := make([]uint16, mn+sn)
	for i := range noise {
		noise[i] = max[i] - min[i]
	}
	r.keep(noise, max, min)

	grids := []grid{
		grid16("Noise", r.rows, r.cols, noise[:mn]),
		grid16("Self noise", 1, sn, noise[mn:]),
		grid16("Rawdata max", r.rows, r.cols, max[:mn]),
		grid16("Self rawdata max", 1, sn, max[mn:]),
		grid16("Rawdata min", r.rows, r.cols, min[:mn]),
		grid16("Self rawdata min", 1, sn, min[mn:]),
	}
	for _, g := range grids {
		r.dump.dump(g)
	}

	mb, sb := r.params.bounds(mn, sn)
	mb.min, sb.min = nil, nil

	if _, err := r.check(grids[0], mb, false); err != nil {
		return err
	}
	_, err := r.check(grids[1], sb, true)
	return err
}

// startShortOpen selects the measurement sub-mode and forces the display
// to sleep when the controller needs it. The returned func restores the
// display.
func (r *run) startShortOpen() (func(), error) {
	restore := func() {}

	if err := r.retry("start short open test", 0, r.dev.StartShortOpenTest); err != nil {
		return restore, err
	}

	if hw := r.dev.Descriptor(); hw != nil && hw.DisplayOffForOpenShort {
		if err := r.dev.SetDisplayState(false); err != nil {
			return restore, err
		}
		restore = func() {
			if err := r.dev.SetDisplayState(true); err != nil {
				r.logError("restore display failed", "error", err)
			}
		}
	}

	if err := r.dev.WaitShortTestStatus(shortOpenPolls, shortOpenInterval); err != nil {
		return restore, err
	}
	return restore, nil
}

func (r *run) open() error {
	restore, err := r.startShortOpen()
	defer restore()
	if err != nil {
		return err
	}

	data := make([]uint16, r.mutualNodes())
	err = r.retry("get open data", getDataRetryDelay, func() error {
		return r.dev.ReadOpenData(data)
	})
	if err != nil {
		return err
	}
	if err := r.dev.ClearShortTestStatus(); err != nil {
		return err
	}
	r.keep(data)

	g := grid16("Open data", r.rows, r.cols, data)
	r.dump.dump(g)

	mb, _ := r.params.bounds(r.mutualNodes(), r.selfNodes())
	_, err = r.check(g, mb, false)
	return err
}

func (r *run) short() error {
	restore, err := r.startShortOpen()
	defer restore()
	if err != nil {
		return err
	}

	n := r.selfNodes()
	data := make([]uint32, n)
	err = r.retry("get short data", getDataRetryDelay, func() error {
		return r.dev.ReadShortData(data)
	})
	if err != nil {
		return err
	}
	if err := r.dev.ClearShortTestStatus(); err != nil {
		return err
	}

	halves := make([]uint16, 0, 2*n)
	for _, v := range data {
		halves = append(halves, uint16(v), uint16(v>>16))
	}
	r.keep(halves)

	g := grid{name: "Short data", rows: 1, cols: n, data: data}
	r.dump.dump(g)

	// short thresholds cover the 1 x (rows+cols) grid directly
	b := bounds{perNode: r.params.Flags.ValidatePerNode}
	if r.params.Flags.ValidateMin && len(r.params.Min) > 0 {
		b.min = r.params.Min
	}
	if r.params.Flags.ValidateMax && len(r.params.Max) > 0 {
		b.max = r.params.Max
	}
	_, err = r.check(g, b, false)
	return err
}

func (r *run) compensateCap() error {
	raw := make([]byte, r.mutualNodes())
	if err := r.dev.ReadCompensateCap(raw); err != nil {
		return err
	}

	data := make([]uint16, len(raw))
	for i, v := range raw {
		data[i] = uint16(v)
	}
	r.keep(data)

	g := grid16("Compensate-Cap", r.rows, r.cols, data)
	r.dump.dump(g)

	mb, _ := r.params.bounds(r.mutualNodes(), r.selfNodes())
	_, err := r.check(g, mb, false)
	return err
}

// resetPin holds reset low and expects the chip to leave the bus, then
// releases it and expects the chip back.
func (r *run) resetPin() error {
	pins := r.dev.Pins()
	if pins == nil {
		return fmt.Errorf("reset pin test: %w", protocol.ErrNotSupported)
	}

	var failure error
	if err := pins.SetReset(false); err != nil {
		return fmt.Errorf("drive reset low: %w", err)
	}
	r.dev.Sleep(pinSettleDelay)
	if r.dev.IsOnline(protocol.NormalSlaveAddr) {
		failure = &PinError{Pin: "reset", Level: false, Reason: "device online"}
		r.logError("device is alive while reset is low")
	}

	if err := pins.SetReset(true); err != nil {
		return fmt.Errorf("drive reset high: %w", err)
	}
	r.dev.Sleep(pinSettleDelay)
	if !r.dev.IsOnline(protocol.NormalSlaveAddr) {
		failure = &PinError{Pin: "reset", Level: true, Reason: "device offline"}
		r.logError("device is offline while reset is high")
	}
	return failure
}

// intPin asks the firmware to drive the interrupt line high and low and
// samples it each time. The line is released on every path.
func (r *run) intPin() error {
	pins := r.dev.Pins()
	if pins == nil {
		return fmt.Errorf("int pin test: %w", protocol.ErrNotSupported)
	}

	if err := r.dev.SendCommand(protocol.CmdWriteIntHigh); err != nil {
		return err
	}
	defer func() {
		if rerr := r.dev.SendCommand(protocol.CmdReleaseIntTest); rerr != nil {
			r.logError("release int test failed", "error", rerr)
		}
		r.dev.Sleep(intSettleDelay)
	}()

	if err := r.expectInt(pins, true); err != nil {
		return err
	}

	if err := r.dev.SendCommand(protocol.CmdWriteIntLow); err != nil {
		return err
	}
	return r.expectInt(pins, false)
}

func (r *run) expectInt(pins device.Pins, high bool) error {
	r.dev.Sleep(intSettleDelay)

	level, err := pins.IntPin()
	if err != nil {
		return fmt.Errorf("read int pin: %w", err)
	}
	if level != high {
		return &PinError{Pin: "int", Level: high, Reason: "line did not follow"}
	}
	return nil
}

func (r *run) logError(msg string, keysAndValues ...interface{}) {
	if r.logger != nil {
		r.logger.Error(msg, keysAndValues...)
	}
}
