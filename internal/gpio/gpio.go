// Package gpio drives the five signal roles of the shift-register link.
// The real implementation uses the Linux GPIO character device.
// The fake implementation simulates the register chains for testing without hardware.
package gpio

// Pins drives and samples the shift-register signal lines.
// Levels are electrical: true = high.
type Pins interface {
	// SetClock drives the shared shift clock.
	SetClock(high bool) error

	// SetLatch drives the output register latch (storage clock).
	SetLatch(high bool) error

	// SetLoad drives the input register mode line.
	// High enables serial shifting, low performs a parallel load.
	SetLoad(high bool) error

	// SetDataOut drives the serial data line into the output chain.
	SetDataOut(high bool) error

	// DataIn samples the serial data line out of the input chain.
	DataIn() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// PinMap assigns line offsets on a GPIO chip to each role.
type PinMap struct {
	Chip    string
	Clock   int
	Latch   int
	Load    int
	DataIn  int
	DataOut int
}

// Default line offsets (BCM numbering on a Raspberry Pi header).
const (
	DefaultChip       = "gpiochip0"
	DefaultPinClock   = 17
	DefaultPinLatch   = 27
	DefaultPinLoad    = 22
	DefaultPinDataIn  = 23
	DefaultPinDataOut = 24
)

// DefaultPinMap returns the reference wiring.
func DefaultPinMap() PinMap {
	return PinMap{
		Chip:    DefaultChip,
		Clock:   DefaultPinClock,
		Latch:   DefaultPinLatch,
		Load:    DefaultPinLoad,
		DataIn:  DefaultPinDataIn,
		DataOut: DefaultPinDataOut,
	}
}
