package gpio

// FakePins is a test double that simulates a 74HC165 parallel-in chain feeding
// DataIn and a 74HC595 serial-in chain fed by SetDataOut, both on one clock.
type FakePins struct {
	// Inputs is the parallel word presented to the input chain, bit 0 = first input.
	Inputs uint64

	// Outputs is the word most recently latched by the output chain, bit 0 = first output.
	Outputs uint64

	// Latches counts rising edges on the latch line.
	Latches int

	// DataOutWrites records every level written to the data out line, in order.
	DataOutWrites []bool

	// ReadError, if set, will be returned by DataIn.
	ReadError error

	// WriteError, if set, will be returned by every Set call.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool

	inWidth  int
	outWidth int

	clock   bool
	latch   bool
	load    bool
	dataOut bool

	inReg  uint64
	outReg uint64
}

// NewFakePins creates a FakePins with input and output chains of the given widths.
// Lines start at their idle levels: load high, everything else low.
func NewFakePins(inWidth, outWidth int) *FakePins {
	return &FakePins{inWidth: inWidth, outWidth: outWidth, load: true}
}

func widthMask(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(w)) - 1
}

// SetClock shifts both chains on a rising edge.
func (f *FakePins) SetClock(high bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	rising := high && !f.clock
	f.clock = high
	if !rising {
		return nil
	}

	// Parallel load overrides the clock on the input chain.
	if f.load {
		f.inReg = (f.inReg << 1) & widthMask(f.inWidth)
	}

	f.outReg <<= 1
	if f.dataOut {
		f.outReg |= 1
	}
	f.outReg &= widthMask(f.outWidth)
	return nil
}

// SetLatch copies the output shift register to Outputs on a rising edge.
func (f *FakePins) SetLatch(high bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if high && !f.latch {
		f.Outputs = f.outReg
		f.Latches++
	}
	f.latch = high
	return nil
}

// SetLoad captures Inputs into the input chain while low.
func (f *FakePins) SetLoad(high bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.load = high
	if !high {
		f.inReg = f.Inputs & widthMask(f.inWidth)
	}
	return nil
}

// SetDataOut records and drives the serial output line.
func (f *FakePins) SetDataOut(high bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.dataOut = high
	f.DataOutWrites = append(f.DataOutWrites, high)
	return nil
}

// DataIn returns the last stage of the input chain.
func (f *FakePins) DataIn() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if f.inWidth == 0 {
		return false, nil
	}
	reg := f.inReg
	if !f.load {
		reg = f.Inputs
	}
	return reg&(uint64(1)<<uint(f.inWidth-1)) != 0, nil
}

// Levels returns the current clock, latch and load levels.
func (f *FakePins) Levels() (clock, latch, load bool) {
	return f.clock, f.latch, f.load
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes and returns the lines to idle.
func (f *FakePins) Reset() {
	f.DataOutWrites = nil
	f.Latches = 0
	f.Outputs = 0
	f.Closed = false
	f.clock, f.latch, f.load, f.dataOut = false, false, true, false
	f.inReg, f.outReg = 0, 0
}
