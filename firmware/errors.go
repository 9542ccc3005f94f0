package firmware

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-cts/protocol"
)

// ErrUpToDate is returned by UpdateIfNewer when the image has the version
// the device already runs.
var ErrUpToDate = errors.New("firmware already up to date")

// Stage identifies the step of an update that failed.
type Stage string

// Update stages.
const (
	StagePrepare Stage = "prepare"
	StageSRAM    Stage = "sram"
	StageErase   Stage = "erase"
	StageProgram Stage = "program"
	StageVerify  Stage = "verify"
	StageTrailer Stage = "trailer"
	StageStart   Stage = "start"
)

// UpdateError indicates that an update aborted at Stage after Attempts tries.
type UpdateError struct {
	Stage    Stage
	Attempts int
	Err      error
}

func (e *UpdateError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("firmware update failed at %s after %d attempts: %v", e.Stage, e.Attempts, e.Err)
	}
	return fmt.Sprintf("firmware update failed at %s: %v", e.Stage, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// TrailerMismatchError indicates that the trailer read back from flash
// differs from the one written.
type TrailerMismatchError struct {
	Written []byte
	Read    []byte
}

func (e *TrailerMismatchError) Error() string {
	return fmt.Sprintf("trailer mismatch: wrote % X, read % X", e.Written, e.Read)
}

func (e *TrailerMismatchError) Unwrap() error {
	return protocol.ErrIO
}

// InvalidImageError indicates an image that cannot be flashed.
type InvalidImageError struct {
	Name   string
	Size   int
	Reason string
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid firmware image %q (size %d): %s", e.Name, e.Size, e.Reason)
}

func (e *InvalidImageError) Unwrap() error {
	return protocol.ErrInvalidArgument
}
