package firmware

import "time"

// Update phases reported through Progress.Phase.
const (
	PhasePreparing      = "preparing"
	PhaseWritingSRAM    = "writing-sram"
	PhaseErasing        = "erasing"
	PhaseProgramming    = "programming"
	PhaseVerifying      = "verifying"
	PhaseWritingTrailer = "writing-trailer"
	PhaseComplete       = "complete"
)

// Progress contains information about the update progress.
// Passed to ProgressCallback during an update.
type Progress struct {
	// Phase describes the current operation phase:
	//   "preparing"       - Entering program mode and probing flash
	//   "writing-sram"    - Downloading the image into SRAM
	//   "erasing"         - Erasing the firmware region
	//   "programming"     - Programming flash from SRAM
	//   "verifying"       - Comparing the flash CRC with the image CRC
	//   "writing-trailer" - Writing and reading back the trailer record
	//   "complete"        - Operation completed successfully
	Phase string

	// Attempt is the current flash cycle attempt (1-based), 0 outside the cycle
	Attempt int

	// BytesWritten is the number of image bytes written to SRAM so far
	BytesWritten int

	// TotalBytes is the image size
	TotalBytes int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the update started
	ElapsedTime time.Duration
}

// ProgressCallback is called during an update to report progress.
// Implementations should return quickly; the device lock is held while
// it runs.
//
// Example:
//
//	up := firmware.NewUpdater(dev,
//	    firmware.WithProgressCallback(func(p firmware.Progress) {
//	        fmt.Printf("[%s] %.1f%% - %d/%d bytes\n",
//	            p.Phase, p.Percentage, p.BytesWritten, p.TotalBytes)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the updater.
// This allows integration with any logging framework; *slog.Logger satisfies it.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
