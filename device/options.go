package device

import "time"

// Config holds the device configuration.
type Config struct {
	// Logger is used for logging operations (optional)
	Logger Logger

	// Retries is the number of attempts per transfer chunk
	Retries int

	// RetryDelay is the delay between two attempts of a chunk
	RetryDelay time.Duration

	// CRC enables CRC16 framing of addressed transfers
	CRC bool

	// MaxTransferSize overrides the transport's limit when positive
	MaxTransferSize int

	// Sleep is used for every fixed delay; replaced in tests
	Sleep func(time.Duration)

	// GestureWakeup selects gesture monitoring while suspended
	GestureWakeup bool

	// ResetLowTime is how long the reset line is held low
	ResetLowTime time.Duration

	// ResetSettleTime is the delay after releasing reset
	ResetSettleTime time.Duration
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Retries:         3,
		RetryDelay:      time.Millisecond,
		Sleep:           time.Sleep,
		ResetLowTime:    time.Millisecond,
		ResetSettleTime: 50 * time.Millisecond,
	}
}

// Option is a functional option for configuring the Device.
type Option func(*Config)

// WithLogger sets a logger for device operations.
//
// Example:
//
//	dev := device.New(bus, pins, device.WithLogger(slog.Default()))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRetries sets the number of attempts per transfer chunk.
//
// Example:
//
//	dev := device.New(bus, pins, device.WithRetries(5))
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries > 0 {
			c.Retries = retries
		}
	}
}

// WithRetryDelay sets the delay between two attempts of a chunk.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.RetryDelay = delay
		}
	}
}

// WithCRC enables or disables CRC16 framing. The chip must be configured
// for the same framing.
//
// Example:
//
//	dev := device.New(bus, pins, device.WithCRC(true))
func WithCRC(enabled bool) Option {
	return func(c *Config) {
		c.CRC = enabled
	}
}

// WithMaxTransferSize limits transfers below the transport's own limit.
func WithMaxTransferSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.MaxTransferSize = size
		}
	}
}

// WithSleep replaces time.Sleep for every fixed delay.
//
// Example:
//
//	dev := device.New(chip, chip, device.WithSleep(func(time.Duration) {}))
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Config) {
		if sleep != nil {
			c.Sleep = sleep
		}
	}
}

// WithGestureWakeup makes Suspend keep gesture monitoring running.
func WithGestureWakeup(enabled bool) Option {
	return func(c *Config) {
		c.GestureWakeup = enabled
	}
}

// WithResetTiming sets how long reset is held and how long the chip is
// given to boot afterwards.
func WithResetTiming(low, settle time.Duration) Option {
	return func(c *Config) {
		if low > 0 {
			c.ResetLowTime = low
		}
		if settle > 0 {
			c.ResetSettleTime = settle
		}
	}
}
