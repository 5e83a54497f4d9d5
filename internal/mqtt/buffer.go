package mqtt

import log "github.com/sirupsen/logrus"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages while the broker is unreachable.
//
// Selection events are kept in order in a fixed ring; on overflow the oldest
// event is dropped. Retained messages (bus state, lifecycle) are kept per
// topic and a newer one replaces the older: the broker would only keep the
// last one, and replaying a stale bus state after a fresh one would be wrong.
//
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	events   []bufferedMsg
	capacity int
	head     int // next write position
	count    int
	warned   bool // overflow already logged since last drain
	dropped  int

	retained map[string]bufferedMsg
	topics   []string // retained topics in first-buffered order
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{
		events:   make([]bufferedMsg, capacity),
		capacity: capacity,
		retained: make(map[string]bufferedMsg),
	}
}

func (o *outbox) push(msg bufferedMsg) {
	if msg.retained {
		if _, ok := o.retained[msg.topic]; !ok {
			o.topics = append(o.topics, msg.topic)
		}
		o.retained[msg.topic] = msg
		return
	}

	if o.count == o.capacity {
		if !o.warned {
			log.WithField("capacity", o.capacity).Warnln("mqtt: outbox full, dropping oldest events")
			o.warned = true
		}
		o.dropped++
		// head already points at the oldest event
		o.events[o.head] = msg
		o.head = (o.head + 1) % o.capacity
		return
	}
	o.events[o.head] = msg
	o.head = (o.head + 1) % o.capacity
	o.count++
}

// drain empties the outbox. It returns the buffered events oldest first,
// followed by the newest retained message of each topic, and the number of
// events lost to overflow.
func (o *outbox) drain() ([]bufferedMsg, int) {
	dropped := o.dropped
	if o.count == 0 && len(o.topics) == 0 {
		o.dropped = 0
		return nil, dropped
	}

	result := make([]bufferedMsg, 0, o.count+len(o.topics))
	start := (o.head - o.count + o.capacity) % o.capacity
	for i := 0; i < o.count; i++ {
		result = append(result, o.events[(start+i)%o.capacity])
	}
	for _, t := range o.topics {
		result = append(result, o.retained[t])
	}

	o.count = 0
	o.head = 0
	o.warned = false
	o.dropped = 0
	o.topics = o.topics[:0]
	clear(o.retained)
	return result, dropped
}

// len returns the number of messages a drain would replay.
func (o *outbox) len() int {
	return o.count + len(o.topics)
}
