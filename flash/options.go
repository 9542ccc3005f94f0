package flash

import "time"

// Logger is the logging interface used by the flash package. It has the
// same method set as device.Logger, so the device logger can be passed through.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Config holds the controller configuration.
type Config struct {
	// Logger is used for logging operations (optional)
	Logger Logger

	// Sleep is used between busy polls; replaced in tests
	Sleep func(time.Duration)

	// BusyPollInterval is the delay between two SF_BUSY reads
	BusyPollInterval time.Duration

	// BusyPolls is the number of SF_BUSY reads before a command times out
	BusyPolls int

	// EraseRetries is the number of attempts per erased sector or block
	EraseRetries int

	// ReadRetries is the number of attempts of a flash to SRAM copy
	ReadRetries int
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Sleep:            time.Sleep,
		BusyPollInterval: time.Millisecond,
		BusyPolls:        1000,
		EraseRetries:     3,
		ReadRetries:      3,
	}
}

// Option is a functional option for configuring the Controller.
type Option func(*Config)

// WithLogger sets a logger for controller operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithSleep replaces time.Sleep for busy polling.
//
// Example:
//
//	ctrl := flash.NewController(mem, layout, flash.WithSleep(func(time.Duration) {}))
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Config) {
		if sleep != nil {
			c.Sleep = sleep
		}
	}
}

// WithBusyPolls sets how many times SF_BUSY is polled before giving up.
func WithBusyPolls(polls int) Option {
	return func(c *Config) {
		if polls > 0 {
			c.BusyPolls = polls
		}
	}
}

// WithEraseRetries sets the number of attempts per erase unit.
func WithEraseRetries(retries int) Option {
	return func(c *Config) {
		if retries > 0 {
			c.EraseRetries = retries
		}
	}
}
