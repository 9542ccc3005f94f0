package device

// Transport moves bytes to and from the chip. Tx writes w to the slave at
// addr and then reads len(r) bytes into r; a nil or empty r means a pure
// write. Implementations deliver the full requested length or return an
// error.
//
// hostio.Bus implements Transport over a periph.io I2C bus.
type Transport interface {
	Tx(addr uint16, w, r []byte) error

	// MaxTransferSize is the largest single write or read the bus accepts
	MaxTransferSize() int
}

// Pins drives the reset line and samples the interrupt line.
type Pins interface {
	// SetReset drives the reset line; false holds the chip in reset
	SetReset(high bool) error

	// IntPin returns the interrupt line level
	IntPin() (bool, error)
}

// Logger is an optional logging interface that can be provided to the device.
// This allows integration with any logging framework; *slog.Logger
// satisfies it.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	dev := device.New(bus, pins, device.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
