package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/gasguard/internal/alert"
	"github.com/sweeney/gasguard/internal/gps"
	"github.com/sweeney/gasguard/internal/sensor"
)

// bufferCapacity bounds how many events are held while disconnected.
const bufferCapacity = 256

// RealPublisher publishes to an actual MQTT broker. Events published
// while the broker is unreachable are buffered and replayed on
// reconnect, oldest first.
type RealPublisher struct {
	client paho.Client
	log    *zap.Logger

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker, clientID string, log *zap.Logger) (*RealPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	p := &RealPublisher{
		log:    log,
		buffer: newRingBuffer(bufferCapacity, log),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			p.drainBuffer()
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// PublishReading sends the per-tick fused reading at QoS 0.
func (p *RealPublisher) PublishReading(a, b sensor.Reading, fused sensor.Assessment) error {
	payload, err := FormatReadingPayload(a, b, fused)
	if err != nil {
		return fmt.Errorf("format reading payload: %w", err)
	}
	return p.publish(TopicReading, payload, 0, false)
}

// PublishAlert sends an alert-level change. Critical transitions use
// QoS 1; losing one is not acceptable.
func (p *RealPublisher) PublishAlert(tr alert.Transition) error {
	payload, err := FormatAlertPayload(tr)
	if err != nil {
		return fmt.Errorf("format alert payload: %w", err)
	}
	var qos byte
	if tr.To == alert.LevelCritical {
		qos = 1
	}
	return p.publish(TopicAlert, payload, qos, false)
}

// PublishPosition sends a position update at QoS 0.
func (p *RealPublisher) PublishPosition(pos gps.Position) error {
	payload, err := FormatPositionPayload(pos)
	if err != nil {
		return fmt.Errorf("format position payload: %w", err)
	}
	return p.publish(TopicPosition, payload, 0, false)
}

// PublishSystem sends a system lifecycle event at QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, payload, 1, event.Retained)
}

// publish sends the message, or buffers it while disconnected.
func (p *RealPublisher) publish(topic string, payload []byte, qos byte, retained bool) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// drainBuffer replays buffered messages after a reconnect.
func (p *RealPublisher) drainBuffer() {
	p.mu.Lock()
	msgs := p.buffer.drainAll()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	p.log.Info("replaying buffered mqtt messages", zap.Int("count", len(msgs)))
	for _, m := range msgs {
		token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			p.log.Warn("replay timeout", zap.String("topic", m.topic))
			continue
		}
		if err := token.Error(); err != nil {
			p.log.Warn("replay failed", zap.String("topic", m.topic), zap.Error(err))
		}
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Buffered returns the number of messages waiting for reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
