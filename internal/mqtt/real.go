package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/mixer-panel/internal/event"
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Prefix     string // topic prefix, e.g. "studio/mixer-panel"
	BufferSize int    // messages held while disconnected
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	prefix string

	mu  sync.Mutex
	buf *outbox
}

// NewRealPublisher creates a publisher and starts connecting in the background.
// A retained OFFLINE system message is registered as the last will.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	p := &RealPublisher{
		prefix: o.Prefix,
		buf:    newOutbox(o.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(p.topic(TopicSystem), will, 1, true).
		SetOnConnectHandler(func(paho.Client) {
			log.WithField("broker", o.Broker).Infoln("mqtt: connected")
			p.replay()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithField("broker", o.Broker).Warnln("mqtt: connection lost:", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p, nil
}

func (p *RealPublisher) topic(suffix string) string {
	return p.prefix + "/" + suffix
}

// Send publishes a selection event and the retained bus state.
func (p *RealPublisher) Send(e event.Event) error {
	payload, err := FormatPayload(e)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	state, err := FormatState(e)
	if err != nil {
		return fmt.Errorf("format state: %w", err)
	}

	// State goes out even when the event publish fails; the retained
	// state is what late subscribers see.
	evErr := p.publish(bufferedMsg{topic: p.topic(TopicEvents), payload: payload})
	stErr := p.publish(bufferedMsg{topic: p.topic(TopicState), payload: state, qos: 1, retained: true})
	return errors.Join(evErr, stErr)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(e SystemEvent) error {
	payload, err := FormatSystemPayload(e)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topic(TopicSystem), payload: payload, qos: 1, retained: e.Retained})
}

func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(m)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// replay runs from the paho connect handler; it must not wait on tokens.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs, dropped := p.buf.drain()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	log.WithFields(log.Fields{
		"messages": len(msgs),
		"dropped":  dropped,
	}).Infoln("mqtt: replaying buffered messages")
	for _, m := range msgs {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
