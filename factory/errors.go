package factory

import (
	"fmt"

	"github.com/moffa90/go-cts/protocol"
)

// PinError indicates that a pin test observed the wrong level or bus
// presence.
type PinError struct {
	// Pin is "reset" or "int"
	Pin string

	// Level is the level the pin was driven or expected at
	Level bool

	Reason string
}

func (e *PinError) Error() string {
	level := "low"
	if e.Level {
		level = "high"
	}
	return fmt.Sprintf("%s pin %s: %s", e.Pin, level, e.Reason)
}

func (e *PinError) Unwrap() error {
	return protocol.ErrIO
}

// ThresholdError indicates thresholds that do not match the panel.
type ThresholdError struct {
	Name  string
	Len   int
	Nodes int
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("%s thresholds: %d values for %d nodes", e.Name, e.Len, e.Nodes)
}

func (e *ThresholdError) Unwrap() error {
	return protocol.ErrInvalidArgument
}
