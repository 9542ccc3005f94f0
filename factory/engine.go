package factory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/moffa90/go-cts/device"
	"github.com/moffa90/go-cts/protocol"
)

// Engine runs factory tests on a probed device.
//
// Each test item holds the device lock for its whole duration, with the
// device stopped. Tests of one engine must not run concurrently with a
// firmware update of the same device.
type Engine struct {
	dev    *device.Device
	chip   Chip
	config Config
}

// New creates an Engine for a probed device. It fails with
// protocol.ErrNotSupported when the device has not been probed or its
// controller has no factory tests.
//
// Example:
//
//	eng, err := factory.New(dev,
//	    factory.WithLogger(logger),
//	    factory.WithDataDir("/data/cts"),
//	)
func New(dev *device.Device, opts ...Option) (*Engine, error) {
	if dev == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	chip, err := chipFor(dev.Descriptor())
	if err != nil {
		return nil, err
	}

	return &Engine{
		dev:    dev,
		chip:   chip,
		config: cfg,
	}, nil
}

// Chip returns the variant selected for the device.
func (e *Engine) Chip() Chip {
	return e.chip
}

// DefaultPlan returns the default params of every item the controller
// supports, in report order.
func (e *Engine) DefaultPlan() []Params {
	items := e.chip.Items()
	plan := make([]Params, 0, len(items))
	for _, item := range items {
		plan = append(plan, e.chip.DefaultParams(item))
	}
	return plan
}

// Run executes one test item:
//  1. Stop the device and take the device lock
//  2. Prepare the firmware (all items except the pin tests)
//  3. Capture data, dumping it to the console, buffer and file as flagged
//  4. Validate the data against the thresholds when flagged
//  5. Clean up the firmware, release the lock and start the device
//
// Cleanup runs on every path once preparation has started. A validation
// failure is reported through Result.Failed; Result.Err is only set when
// the test could not complete.
//
// Example:
//
//	p := eng.Chip().DefaultParams(factory.ItemNoise)
//	p.Max = []int{50}
//	res := eng.Run(ctx, p)
//	if !res.Passed() {
//	    log.Printf("noise: %d nodes failed", res.Failed)
//	}
func (e *Engine) Run(ctx context.Context, p Params) Result {
	start := time.Now()
	res := Result{Item: p.Item}

	res.Err = e.run(ctx, &p, &res)
	res.Reason = reasonOf(res)

	e.logOutcome(res, time.Since(start))
	return res
}

func (e *Engine) run(ctx context.Context, p *Params, res *Result) error {
	if err := p.check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var path string
	if p.Flags.DumpFile && p.Item.dataFile() != "" {
		var err error
		if path, err = e.dumpPath(p); err != nil {
			return err
		}
	}

	e.logInfo(fmt.Sprintf("%s test", p.Item),
		"frames", p.Frames,
		"validate", p.Flags.ValidateData,
		"per_node", p.Flags.ValidatePerNode,
		"excluded", len(p.Excluded),
		"file", path,
		"buffer", p.BufferSize,
	)

	e.dev.Lock()
	defer e.dev.Unlock()

	if err := e.dev.Stop(); err != nil {
		return err
	}
	defer func() {
		if err := e.dev.Start(); err != nil {
			e.logError("start device failed", "error", err)
		}
	}()

	fw := e.dev.FirmwareData()
	r := &run{
		ctx:        ctx,
		dev:        e.dev,
		logger:     e.config.Logger,
		params:     p,
		result:     res,
		rows:       fw.Rows,
		cols:       fw.Cols,
		dump:       dumper{logger: e.config.Logger, console: p.Flags.DumpConsole},
		failed:     make(map[NodeKey]bool),
		selfFailed: make(map[NodeKey]bool),
	}

	switch p.Item {
	case ItemResetPin:
		return r.resetPin()
	case ItemIntPin:
		return r.intPin()
	}

	if r.rows <= 0 || r.cols <= 0 {
		return fmt.Errorf("%s test on %dx%d panel: %w", p.Item, r.rows, r.cols, protocol.ErrNotSupported)
	}

	return e.prepared(r, path)
}

// prepared runs a data test between Prepare and Cleanup.
func (e *Engine) prepared(r *run, path string) error {
	e.dev.SetTesting(true)
	defer func() {
		if err := e.chip.Cleanup(e.dev); err != nil {
			e.logError("post test failed", "item", r.params.Item, "error", err)
		}
		e.dev.SetTesting(false)
	}()

	if err := e.chip.Prepare(e.dev); err != nil {
		return fmt.Errorf("prepare test: %w", err)
	}

	if path != "" {
		f, err := openDumpFile(path, r.params.Flags.DumpFileAppend)
		if err != nil {
			e.logError("start dump test data to file failed", "file", path, "error", err)
		} else {
			r.dump.w = f
			defer func() {
				if err := f.Close(); err != nil {
					e.logError("close dump file failed", "file", path, "error", err)
				}
			}()
		}
	}

	switch r.params.Item {
	case ItemRawdata:
		return r.rawdata()
	case ItemDeviation:
		return r.deviation()
	case ItemNoise:
		return r.noise()
	case ItemOpen:
		return r.open()
	case ItemShort:
		return r.short()
	case ItemCompensateCap:
		return r.compensateCap()
	default:
		return fmt.Errorf("test item %d: %w", int(r.params.Item), protocol.ErrInvalidArgument)
	}
}

// dumpPath resolves the dump file of p against the data directory.
func (e *Engine) dumpPath(p *Params) (string, error) {
	path := p.FilePath
	if path == "" {
		if e.config.DataDir == "" {
			return "", fmt.Errorf("%s test dump file without path or data directory: %w",
				p.Item, protocol.ErrInvalidArgument)
		}
		return filepath.Join(e.config.DataDir, p.Item.dataFile()), nil
	}

	if !filepath.IsAbs(path) && e.config.DataDir != "" {
		path = filepath.Join(e.config.DataDir, path)
	}
	return path, nil
}

// reasonOf classifies a failed result for the summary string. A pin that
// did not follow its drive is a panel fault whichever pin it is; any other
// error is a software fault.
func reasonOf(res Result) string {
	var pe *PinError
	switch {
	case res.Err != nil && errors.As(res.Err, &pe):
		return ReasonPanel
	case res.Err != nil:
		return ReasonSoftware
	case res.Failed+res.SelfFailed > 0:
		return ReasonPanel
	default:
		return ""
	}
}

// RunAll runs plan in order and collects the results. Items after a
// cancelled context are not run.
//
// Example:
//
//	report := eng.RunAll(ctx, eng.DefaultPlan())
//	fmt.Print(report.Summary(dev.Descriptor().Name, dev.ProjectID()))
func (e *Engine) RunAll(ctx context.Context, plan []Params) *Report {
	start := time.Now()
	report := &Report{Product: e.config.Product}
	if report.Product == "" {
		report.Product = e.chip.Name()
	}

	e.logInfo("run factory tests", "product", report.Product, "items", len(plan))

	for _, p := range plan {
		if ctx.Err() != nil {
			e.logError("factory tests cancelled", "error", ctx.Err())
			break
		}
		report.Results = append(report.Results, e.Run(ctx, p))
	}

	report.Elapsed = time.Since(start)
	return report
}

func (e *Engine) logOutcome(res Result, elapsed time.Duration) {
	v := res.Value()
	switch {
	case v > 0:
		e.logInfo(fmt.Sprintf("%s test has %d nodes FAIL", res.Item, v), "elapsed", elapsed.String())
	case v < 0:
		e.logInfo(fmt.Sprintf("%s test FAIL %d(%s)", res.Item, v, protocol.ErrorName(v)),
			"elapsed", elapsed.String(), "error", res.Err)
	default:
		e.logInfo(fmt.Sprintf("%s test PASS", res.Item), "elapsed", elapsed.String())
	}
}

func (e *Engine) logInfo(msg string, keysAndValues ...interface{}) {
	if e.config.Logger != nil {
		e.config.Logger.Info(msg, keysAndValues...)
	}
}

func (e *Engine) logError(msg string, keysAndValues ...interface{}) {
	if e.config.Logger != nil {
		e.config.Logger.Error(msg, keysAndValues...)
	}
}
