package protocol

import (
	"errors"
	"fmt"
)

// Error kinds shared by every layer. Typed errors wrap one of these so
// callers can classify failures with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotSupported    = errors.New("operation not supported")
	ErrIO              = errors.New("i/o error")
	ErrTimeout         = errors.New("timed out")
	ErrBusy            = errors.New("device busy")
	ErrDeviceAbsent    = errors.New("no such device")
)

// Negative result codes reported through factory test results.
const (
	CodeIO           = -5
	CodeBusy         = -11
	CodeDeviceAbsent = -19
	CodeInvalid      = -22
	CodeNotSupported = -95
	CodeTimeout      = -110
	CodeUnknown      = -1
)

// AccessError describes a failed memory or register access.
type AccessError struct {
	// Operation is the access that failed ("read", "write", ...)
	Operation string

	// Space is the address space that was accessed
	Space Space

	// Addr is the first address of the failing chunk
	Addr uint32

	// Err is the underlying cause, usually one of the Err* kinds
	Err error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s %s 0x%06X failed: %v", e.Space, e.Operation, e.Addr, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// IsAccessError returns true if the error is or wraps an AccessError.
func IsAccessError(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}

// ErrorCode maps err to a negative result code. A nil error maps to 0.
func ErrorCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalid
	case errors.Is(err, ErrNotSupported):
		return CodeNotSupported
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrBusy):
		return CodeBusy
	case errors.Is(err, ErrDeviceAbsent):
		return CodeDeviceAbsent
	case errors.Is(err, ErrIO):
		return CodeIO
	default:
		return CodeUnknown
	}
}

// ErrorName returns a short name for a negative result code.
func ErrorName(code int) string {
	switch code {
	case 0:
		return "success"
	case CodeIO:
		return "EIO"
	case CodeBusy:
		return "EAGAIN"
	case CodeDeviceAbsent:
		return "ENODEV"
	case CodeInvalid:
		return "EINVAL"
	case CodeNotSupported:
		return "EOPNOTSUPP"
	case CodeTimeout:
		return "ETIMEDOUT"
	default:
		return fmt.Sprintf("error %d", code)
	}
}
