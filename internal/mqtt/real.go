package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/bathroom-fan/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	bufferCapacity = 100
)

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	log    *zap.Logger

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// is not reachable within the connect timeout the publisher is still
// returned; paho keeps retrying in the background and messages are buffered.
func NewRealPublisher(broker, clientID string, log *zap.Logger) (*RealPublisher, error) {
	p := &RealPublisher{
		log: log,
		buf: newRingBuffer(bufferCapacity),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warn("MQTT broker not reachable yet, buffering events", zap.String("broker", broker))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	log.Info("Connected to MQTT broker", zap.String("broker", broker))
	return p, nil
}

// newPublisherWithClient wires a publisher around an existing client.
func newPublisherWithClient(client paho.Client, log *zap.Logger) *RealPublisher {
	return &RealPublisher{
		client: client,
		log:    log,
		buf:    newRingBuffer(bufferCapacity),
	}
}

// Publish sends a fan event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic, payload: payload, qos: 0})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		first := p.buf.push(msg)
		p.mu.Unlock()
		if first {
			p.log.Warn("MQTT buffer full, dropping oldest", zap.Int("capacity", bufferCapacity))
		}
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// flush replays buffered messages in order.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs := p.buf.drainAll()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	p.log.Info("Replaying buffered MQTT messages", zap.Int("count", len(msgs)))
	for _, m := range msgs {
		if err := p.send(m); err != nil {
			p.log.Warn("Replay publish failed", zap.String("topic", m.topic), zap.Error(err))
		}
	}
}

func (p *RealPublisher) onConnect(paho.Client) {
	// Publishing blocks on the token, which must not happen on paho's callback goroutine.
	go p.flush()
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.log.Warn("MQTT connection lost", zap.Error(err))
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the client currently has a live connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
