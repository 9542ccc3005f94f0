package firmware

// Config holds the updater configuration.
type Config struct {
	// ProgressCallback is called during an update to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// ChunkSize is the number of image bytes written to SRAM between two
	// progress reports
	ChunkSize int

	// SRAMRetries is the number of attempts to download the image into SRAM
	// with a matching hardware CRC
	SRAMRetries int

	// FlashAttempts is the number of erase, program and verify cycles
	FlashAttempts int
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		ChunkSize:     4096,
		SRAMRetries:   3,
		FlashAttempts: 3,
	}
}

// Option is a functional option for configuring the Updater.
type Option func(*Config)

// WithProgressCallback sets a callback function to track update progress.
//
// Example:
//
//	up := firmware.NewUpdater(dev,
//	    firmware.WithProgressCallback(func(p firmware.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the updater operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithChunkSize sets how many bytes are written to SRAM between progress reports.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithSRAMRetries sets the number of SRAM download attempts.
//
// Example:
//
//	up := firmware.NewUpdater(dev, firmware.WithSRAMRetries(5))
func WithSRAMRetries(retries int) Option {
	return func(c *Config) {
		if retries > 0 {
			c.SRAMRetries = retries
		}
	}
}

// WithFlashAttempts sets the number of erase, program and verify cycles.
func WithFlashAttempts(attempts int) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.FlashAttempts = attempts
		}
	}
}
