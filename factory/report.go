package factory

import (
	"fmt"
	"time"

	"github.com/moffa90/go-cts/protocol"
)

// Report collects the results of a test plan.
type Report struct {
	// Product is the configured product name, or the controller name
	Product string

	Results []Result
	Elapsed time.Duration
}

// Result returns the result of item and whether it was run.
func (r *Report) Result(item Item) (Result, bool) {
	for _, res := range r.Results {
		if res.Item == item {
			return res, true
		}
	}
	return Result{Item: item}, false
}

// Passed reports whether every item that ran passed.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed() {
			return false
		}
	}
	return true
}

// summaryFields returns the nine pass/fail fields of the summary string:
// reset pin, int pin, rawdata, self rawdata, deviation, noise, self noise,
// open and short. An item that was not run passes.
func (r *Report) summaryFields() [9]bool {
	failed := func(item Item, self bool) bool {
		res, ok := r.Result(item)
		if !ok {
			return false
		}
		if res.Err != nil {
			return true
		}
		if self {
			return res.SelfFailed > 0
		}
		return res.Failed > 0
	}

	return [9]bool{
		failed(ItemResetPin, false),
		failed(ItemIntPin, false),
		failed(ItemRawdata, false),
		failed(ItemRawdata, true),
		failed(ItemDeviation, false),
		failed(ItemNoise, false),
		failed(ItemNoise, true),
		failed(ItemOpen, false),
		failed(ItemShort, false),
	}
}

// Summary formats the result string reported to the production line, for
// example
//
//	0P-1P-2P-3P-4P-5F-6P-7P-8P-panel_reason--ICNT8918-CTS8918TST
//
// followed by a newline. The reason is empty when every field passes.
func (r *Report) Summary(hwName, projectID string) string {
	fields := r.summaryFields()

	args := make([]interface{}, 0, len(fields)+3)
	reason := ""
	for _, failed := range fields {
		if failed {
			args = append(args, 'F')
			reason = r.reason() + "-"
		} else {
			args = append(args, 'P')
		}
	}
	args = append(args, reason, hwName, projectID)
	return fmt.Sprintf("0%c-1%c-2%c-3%c-4%c-5%c-6%c-7%c-8%c-%s-%s-%s\n", args...)
}

// reason returns the reason of the first failing result.
func (r *Report) reason() string {
	for _, res := range r.Results {
		if !res.Passed() && res.Reason != "" {
			return res.Reason
		}
	}
	return ReasonPanel
}

// DeviceInfo formats the device information string "<project id>-<version>;".
func (r *Report) DeviceInfo(projectID string, version uint16) string {
	return fmt.Sprintf("%s-%04x;", projectID, version)
}

// Log prints one line per result. Rawdata and noise add a line for
// their self capacitance nodes.
func (r *Report) Log(logger Logger) {
	if logger == nil {
		return
	}

	logger.Info("factory test result", "product", r.Product, "elapsed", r.Elapsed.String())
	for _, res := range r.Results {
		if res.Err != nil {
			logger.Info(resultLine(res.Item.String(), res.Value()))
			continue
		}

		logger.Info(resultLine(res.Item.String(), res.Failed))
		switch res.Item {
		case ItemRawdata, ItemNoise:
			logger.Info(resultLine("self "+res.Item.String(), res.SelfFailed))
		}
	}
}

func resultLine(name string, v int) string {
	switch {
	case v == 0:
		return fmt.Sprintf("%-10s test: PASS", name)
	case v > 0:
		return fmt.Sprintf("%-10s test: FAIL %d nodes", name, v)
	default:
		return fmt.Sprintf("%-10s test: FAIL %d(%s)", name, v, protocol.ErrorName(v))
	}
}
