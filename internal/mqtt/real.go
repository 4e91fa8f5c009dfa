package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	DeviceID string
	Username string
	Password string

	// ConnectTimeout bounds how long NewRealPublisher waits for the first
	// connection. The client keeps retrying in the background afterwards.
	ConnectTimeout time.Duration

	// Backlog is how many messages are held while disconnected.
	Backlog int
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client   paho.Client
	deviceID string

	mu      sync.Mutex
	pending *backlog
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// is not reachable within ConnectTimeout the publisher is still returned and
// messages are held until the connection comes up.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: no broker")
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 3 * time.Second
	}

	p := &RealPublisher{deviceID: o.DeviceID, pending: newBacklog(o.Backlog)}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID("dutycycle-"+o.DeviceID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetWill(SystemTopic(o.DeviceID), string(will), 1, true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetOnConnectHandler(func(paho.Client) { p.flush() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(o.ConnectTimeout) {
		log.Printf("mqtt: broker %s not reachable after %v, holding messages", o.Broker, o.ConnectTimeout)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	log.Printf("mqtt: connected to %s", o.Broker)
	return p, nil
}

// IsConnected reports whether the client currently has a live connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// PublishRecord sends a sensor record at QoS 1.
func (p *RealPublisher) PublishRecord(event RecordEvent) error {
	payload, err := FormatRecordPayload(event)
	if err != nil {
		return fmt.Errorf("format record payload: %w", err)
	}
	return p.send(pending{topic: RecordTopic(p.deviceID), payload: payload, qos: 1})
}

// PublishSystem sends a lifecycle event at QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(pending{topic: SystemTopic(p.deviceID), payload: payload, qos: 1, retained: event.Retained})
}

// send holds m while disconnected. The check and the add share mu with
// flush, so a message is either published directly or seen by the next
// flush.
func (p *RealPublisher) send(m pending) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.pending.add(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.publish(m)
}

func (p *RealPublisher) publish(m pending) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// flush replays held messages once the connection is up.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs, dropped := p.pending.take()
	p.mu.Unlock()

	if dropped > 0 {
		log.Printf("mqtt: %d held messages were evicted while offline", dropped)
	}
	for _, m := range msgs {
		if err := p.publish(m); err != nil {
			log.Printf("mqtt: replay: %v", err)
		}
	}
	if len(msgs) > 0 {
		log.Printf("mqtt: replayed %d held messages", len(msgs))
	}
}

// Close flushes anything still held and disconnects. Messages that never
// reached a connected client are lost.
func (p *RealPublisher) Close() error {
	if p.client.IsConnectionOpen() {
		p.flush()
	} else {
		p.mu.Lock()
		n := p.pending.len()
		p.mu.Unlock()
		if n > 0 {
			log.Printf("mqtt: discarding %d held messages, never connected", n)
		}
	}
	p.client.Disconnect(250)
	return nil
}
