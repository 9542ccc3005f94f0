package factory

// Config holds the engine configuration.
type Config struct {
	// Logger is used for logging operations and console dumps (optional)
	Logger Logger

	// DataDir is prepended to relative dump file paths
	DataDir string

	// Product names the device in reports
	Product string
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{}
}

// Option is a functional option for configuring the Engine.
type Option func(*Config)

// WithLogger sets a logger for test runs and console dumps.
//
// Example:
//
//	eng, err := factory.New(dev, factory.WithLogger(slog.Default()))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithDataDir sets the directory dump files are written to.
//
// Example:
//
//	eng, err := factory.New(dev, factory.WithDataDir("/data/cts"))
func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithProduct sets the product name.
func WithProduct(product string) Option {
	return func(c *Config) {
		c.Product = product
	}
}
