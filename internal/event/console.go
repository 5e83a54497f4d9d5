package event

import (
	"fmt"
	"io"
)

// Console writes one status line per event, the format the panel firmware
// printed on its UART.
type Console struct {
	w io.Writer
}

// NewConsole returns a sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Send writes e.Line() followed by a newline.
func (c *Console) Send(e Event) error {
	if _, err := fmt.Fprintln(c.w, e.Line()); err != nil {
		return fmt.Errorf("write status line: %w", err)
	}
	return nil
}

// Close closes the writer if it is an io.Closer.
func (c *Console) Close() error {
	if cl, ok := c.w.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
