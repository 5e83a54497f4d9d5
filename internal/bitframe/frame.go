// Package bitframe provides fixed-width bit collections used for button,
// LED and edge state. Bit 0 is the least significant bit and corresponds to
// the first declared button or LED.
package bitframe

import "strings"

// MaxWidth is the widest frame supported.
const MaxWidth = 64

// Frame is an immutable fixed-width ordered bit collection.
type Frame struct {
	width int
	bits  uint64
}

// New returns an all-zero frame of the given width.
// Width is clamped to [0, MaxWidth].
func New(width int) Frame {
	if width < 0 {
		width = 0
	}
	if width > MaxWidth {
		width = MaxWidth
	}
	return Frame{width: width}
}

// FromUint64 returns a frame of the given width holding the low bits of v.
func FromUint64(width int, v uint64) Frame {
	f := New(width)
	f.bits = v & f.mask()
	return f
}

func (f Frame) mask() uint64 {
	if f.width >= MaxWidth {
		return ^uint64(0)
	}
	return (uint64(1) << uint(f.width)) - 1
}

// Width returns the number of bits in the frame.
func (f Frame) Width() int { return f.width }

// Uint64 returns the frame as an integer, bit 0 = LSB.
func (f Frame) Uint64() uint64 { return f.bits }

// Test reports whether bit i is set. Out-of-range indices report false.
func (f Frame) Test(i int) bool {
	if i < 0 || i >= f.width {
		return false
	}
	return f.bits&(uint64(1)<<uint(i)) != 0
}

// Set returns a copy of f with bit i set to v.
// Out-of-range indices leave the frame unchanged.
func (f Frame) Set(i int, v bool) Frame {
	if i < 0 || i >= f.width {
		return f
	}
	if v {
		f.bits |= uint64(1) << uint(i)
	} else {
		f.bits &^= uint64(1) << uint(i)
	}
	return f
}

// Not returns the bitwise complement of f, width preserving.
func (f Frame) Not() Frame {
	f.bits = ^f.bits & f.mask()
	return f
}

// And returns the bitwise AND of f and g. The result has f's width.
func (f Frame) And(g Frame) Frame {
	f.bits &= g.bits
	return f
}

// ShiftInLSB shifts f left by one and places bit in position 0.
// The most significant bit falls off.
func (f Frame) ShiftInLSB(bit bool) Frame {
	f.bits = (f.bits << 1) & f.mask()
	if bit {
		f.bits |= 1
	}
	return f
}

// FirstSet returns the lowest set bit index in [lo, hi).
func (f Frame) FirstSet(lo, hi int) (int, bool) {
	if lo < 0 {
		lo = 0
	}
	if hi > f.width {
		hi = f.width
	}
	for i := lo; i < hi; i++ {
		if f.Test(i) {
			return i, true
		}
	}
	return 0, false
}

// IsZero reports whether no bit is set.
func (f Frame) IsZero() bool { return f.bits == 0 }

// Equal reports whether f and g have the same width and bits.
func (f Frame) Equal(g Frame) bool {
	return f.width == g.width && f.bits == g.bits
}

// String renders the frame MSB first, e.g. "0000000000100000".
func (f Frame) String() string {
	var b strings.Builder
	b.Grow(f.width)
	for i := f.width - 1; i >= 0; i-- {
		if f.Test(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// RisingEdges returns the bits that went from 0 in prev to 1 in cur.
// The result has cur's width.
func RisingEdges(prev, cur Frame) Frame {
	cur.bits &^= prev.bits
	return cur
}
