package event

import (
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// DefaultQueueSize is the Async queue capacity used by NewAsync when size <= 0.
const DefaultQueueSize = 64

// Async decouples the processing loop from slow sinks. Send never blocks: when
// the queue is full the event is dropped and counted.
type Async struct {
	sink    Sink
	queue   chan Event
	done    chan struct{}
	dropped atomic.Uint64
	once    sync.Once
}

// NewAsync starts a dispatcher goroutine delivering to sink.
func NewAsync(sink Sink, size int) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &Async{
		sink:  sink,
		queue: make(chan Event, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.queue {
		if err := a.sink.Send(e); err != nil {
			log.WithFields(log.Fields{
				"event": e.Line(),
			}).Warnln("event delivery failed:", err)
		}
	}
}

// Send queues e without blocking. It always returns nil.
func (a *Async) Send(e Event) error {
	select {
	case a.queue <- e:
	default:
		if a.dropped.Add(1) == 1 {
			log.WithField("capacity", cap(a.queue)).Warnln("event queue full, dropping")
		}
	}
	return nil
}

// Dropped returns the number of events dropped because the queue was full.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// Close drains queued events, then closes the underlying sink.
// Send must not be called after Close.
func (a *Async) Close() error {
	var err error
	a.once.Do(func() {
		close(a.queue)
		<-a.done
		err = a.sink.Close()
	})
	return err
}
