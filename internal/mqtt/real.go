package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/ir-sensor/internal/logic"
)

// DefaultOutboxSize is how many publishes are held while disconnected.
const DefaultOutboxSize = 256

var errNotConnected = errors.New("not connected")

// RealPublisher publishes to an actual MQTT broker. Publishes made while the
// connection is down are queued and sent after the next (re)connect.
type RealPublisher struct {
	client paho.Client
	topic  string

	mu        sync.Mutex
	outbox    *outbox
	connected bool
	draining  bool // live publishes queue behind the replay
	everUp    bool
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// is not reachable within the connect timeout, the publisher keeps retrying
// in the background and queues messages meanwhile.
func NewRealPublisher(broker, clientID string, outboxSize int) (*RealPublisher, error) {
	p := &RealPublisher{
		topic:  Topic,
		outbox: newOutbox(outboxSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, queueing until connected", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	p.draining = true
	reconnect := p.everUp
	p.everUp = true
	pending, dropped := p.outbox.drain()
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected, replaying %d queued messages (%d dropped)", len(pending), dropped)
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err != nil {
			log.Printf("mqtt: format reconnected event: %v", err)
		} else if err := p.send(pendingMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			log.Printf("mqtt: publish reconnected event: %v", err)
		}
	} else {
		log.Printf("mqtt: connected")
	}

	// Publishes made during the replay land in the outbox; keep draining
	// until it stays empty so nothing overtakes an older message.
	for len(pending) > 0 {
		for _, m := range pending {
			if err := p.send(m); err != nil {
				log.Printf("mqtt: replay to %s failed: %v", m.topic, err)
			}
		}
		p.mu.Lock()
		pending, dropped = p.outbox.drain()
		if len(pending) == 0 {
			p.draining = false
		}
		p.mu.Unlock()
		if dropped > 0 {
			log.Printf("mqtt: %d messages dropped during replay", dropped)
		}
	}

	p.mu.Lock()
	p.draining = false
	p.mu.Unlock()
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

func (p *RealPublisher) send(m pendingMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

func (p *RealPublisher) publish(m pendingMsg) error {
	p.mu.Lock()
	if !p.connected || p.draining {
		p.outbox.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	err := p.send(m)
	if err != nil && !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.outbox.push(m)
		p.mu.Unlock()
		return fmt.Errorf("%w: queued: %v", errNotConnected, err)
	}
	return err
}

// Publish sends a sensor event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.publish(pendingMsg{topic: p.topic, payload: payload}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	m := pendingMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}
	if err := p.publish(m); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Queued returns the number of messages waiting for a connection.
func (p *RealPublisher) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
