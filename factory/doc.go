// Package factory runs the production line self tests of a touch
// controller: reset and interrupt pin checks, raw data, deviation, noise,
// open, short and compensation capacitor tests.
//
// # Basic Usage
//
//	eng, err := factory.New(dev, factory.WithLogger(logger), factory.WithDataDir("/data/cts"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p := eng.Chip().DefaultParams(factory.ItemRawdata)
//	p.Min = []int{1000}
//	p.Max = []int{3000}
//	p.Flags.ValidatePerNode = false
//	res := eng.Run(ctx, p)
//
// # Results
//
// A Result is a pass when Value is 0. A positive value is the number of
// nodes outside the thresholds; the test itself completed. A negative value
// is the code of the error that stopped the test (see protocol.ErrorCode).
//
// RunAll collects results into a Report whose Summary is the fixed format
// string consumed by the production line:
//
//	0P-1P-2P-3P-4P-5P-6P-7P-8P--ICNT8918-CTS8918TST
//
// # Thresholds
//
// Min and Max hold a single value applied to every node, or one value per
// node with Flags.ValidatePerNode. Self capacitance grids are addressed as
// row 0 with the node index as column in the exclusion list. Self
// thresholds come from SelfMin and SelfMax, or follow the mutual values.
//
// # Dumps
//
// Test data can be written to the logger, kept in Result.Data and written
// to a text file framed by banner lines. Relative dump paths are resolved
// against the engine's data directory.
package factory
