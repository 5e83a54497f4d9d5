package event

import (
	"errors"
	"fmt"
)

// Multi sends every event to each sink in order.
type Multi []Sink

// Send delivers e to all sinks, collecting errors. One failing sink does not
// stop delivery to the rest.
func (m Multi) Send(e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all sinks.
func (m Multi) Close() error {
	var errs []error
	for i, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
