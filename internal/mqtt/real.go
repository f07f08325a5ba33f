package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/relay-timer/internal/logger"
	"github.com/sweeney/relay-timer/internal/logic"
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Encoding Encoding
	// BufferSize bounds the messages kept while disconnected.
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker.
// Messages sent while the connection is down are buffered and replayed, oldest
// first, when paho reconnects.
type RealPublisher struct {
	client paho.Client
	enc    Encoding
	log    *zap.SugaredLogger

	mu        sync.Mutex
	pending   *outbox
	connected bool
	everUp    bool
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting in the background. It does not wait for the broker to be reachable.
func NewRealPublisher(ctx context.Context, o Options) *RealPublisher {
	p := &RealPublisher{
		enc:     o.Encoding,
		log:     logger.FromContext(ctx).Named("mqtt"),
		pending: newOutbox(o.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"}, o.Encoding)
	if err != nil {
		p.log.Warnf("format will payload: %v", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)
	if will != nil {
		opts.SetBinaryWill(TopicSystem, will, 1, true)
	}

	p.client = paho.NewClient(opts)
	p.client.Connect()

	return p
}

func (p *RealPublisher) onConnect(paho.Client) {
	p.mu.Lock()
	reconnect := p.everUp
	p.everUp = true
	p.mu.Unlock()

	// Publishes keep landing in the outbox until it is empty, so nothing
	// sent during the replay can overtake the backlog.
	replayed, dropped := 0, 0
	for {
		p.mu.Lock()
		backlog, d := p.pending.drain()
		dropped += d
		if len(backlog) == 0 {
			p.connected = true
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		for _, m := range backlog {
			if err := p.send(m); err != nil {
				p.log.Warnf("replay to %s: %v", m.topic, err)
			}
		}
		replayed += len(backlog)
	}

	p.log.Infof("connected (replayed=%d dropped=%d)", replayed, dropped)

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
			p.log.Warnf("publish reconnected event: %v", err)
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.log.Warnf("connection lost: %v", err)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Publish sends a relay event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event, p.enc)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.enqueue(outMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event, p.enc)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.enqueue(outMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) enqueue(m outMsg) error {
	p.mu.Lock()
	if !p.connected {
		if p.pending.push(m) {
			p.log.Debugf("buffer full (%d messages), dropped oldest", p.pending.len())
		}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.send(m)
}

func (p *RealPublisher) send(m outMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
