// Package serialout writes panel status lines to a UART.
package serialout

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/sweeney/mixer-panel/internal/event"
)

// Mode returns 8N1 framing at baud.
func Mode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens device and returns a sink writing one status line per event.
// Closing the sink closes the port.
func Open(device string, baud int) (*event.Console, error) {
	p, err := serial.Open(device, Mode(baud))
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	log.WithFields(log.Fields{
		"device": device,
		"baud":   baud,
	}).Infoln("serial: port opened")
	return event.NewConsole(p), nil
}
