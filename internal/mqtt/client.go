package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-logr/logr"

	"github.com/sweeney/smart-thermostat/internal/logic"
)

// PublishTimeout bounds every publish and subscribe round trip.
const PublishTimeout = 5 * time.Second

// RealClient talks to an actual MQTT broker. It publishes events and status,
// sends device commands and feeds sensor states into the event loop.
type RealClient struct {
	client  paho.Client
	topics  Topics
	log     logr.Logger
	timeout time.Duration

	mu   sync.Mutex
	subs []string
	out  chan<- Message
}

// NewRealClient creates a client connected to the given broker. The retained
// availability flag is set to offline by the broker's last will when the
// connection drops, and back to online on every (re)connect.
func NewRealClient(log logr.Logger, broker, clientID, prefix string) (*RealClient, error) {
	c := &RealClient{
		topics:  Topics{Prefix: prefix},
		log:     log.WithName("mqtt"),
		timeout: PublishTimeout,
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(c.topics.Availability(), AvailabilityOffline, 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.log.Error(err, "connection lost")
		})

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

// onConnect runs on the first connect and on every reconnect. The session is
// clean, so subscriptions are restored here.
func (c *RealClient) onConnect(client paho.Client) {
	c.log.Info("connected")
	client.Publish(c.topics.Availability(), 1, true, AvailabilityOnline)

	c.mu.Lock()
	subs, out := c.subs, c.out
	c.mu.Unlock()
	if out == nil {
		return
	}
	if err := c.subscribe(subs, out); err != nil {
		c.log.Error(err, "resubscribe")
	}
}

// Subscribe delivers every message on topics to out. Messages are dropped,
// with an error logged, when out is full; a blocked paho callback would
// otherwise stall the acknowledgements that command publishes wait on.
func (c *RealClient) Subscribe(topics []string, out chan<- Message) error {
	c.mu.Lock()
	c.subs = append([]string(nil), topics...)
	c.out = out
	c.mu.Unlock()
	return c.subscribe(topics, out)
}

func (c *RealClient) subscribe(topics []string, out chan<- Message) error {
	if len(topics) == 0 {
		return nil
	}
	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = 1
	}
	token := c.client.SubscribeMultiple(filters, func(_ paho.Client, m paho.Message) {
		msg := Message{Topic: m.Topic(), Payload: m.Payload()}
		select {
		case out <- msg:
		default:
			c.log.Error(nil, "message dropped, queue full", "topic", msg.Topic)
		}
	})
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Publish sends a thermostat event to the events topic.
func (c *RealClient) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	token := c.client.Publish(c.topics.Events(), 0, false, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishStatus replaces the retained status.
func (c *RealClient) PublishStatus(payload []byte) error {
	token := c.client.Publish(c.topics.Status(), 1, true, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("publish status timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// SetClimateTarget sends a new setpoint to a climate entity.
func (c *RealClient) SetClimateTarget(ctx context.Context, entityID string, temperature float64) error {
	return c.command(ctx, ClimateTargetTopic(entityID), FormatTemperature(temperature))
}

// TurnOffClimate switches a climate entity off.
func (c *RealClient) TurnOffClimate(ctx context.Context, entityID string) error {
	return c.command(ctx, ClimateModeTopic(entityID), []byte(PayloadClimateOff))
}

// TurnOnSwitch switches a switch entity on.
func (c *RealClient) TurnOnSwitch(ctx context.Context, entityID string) error {
	return c.command(ctx, SwitchTopic(entityID), []byte(PayloadOn))
}

// TurnOffSwitch switches a switch entity off.
func (c *RealClient) TurnOffSwitch(ctx context.Context, entityID string) error {
	return c.command(ctx, SwitchTopic(entityID), []byte(PayloadOff))
}

// command publishes at QoS 1 (at-least-once), not retained, and waits for the
// acknowledgement, the timeout or ctx, whichever comes first.
func (c *RealClient) command(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("command %s: %w", topic, err)
	}

	token := c.client.Publish(topic, 1, false, payload)
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("command %s: timeout", topic)
	case <-ctx.Done():
		return fmt.Errorf("command %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("command %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the client is currently connected to the broker.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnected()
}

// Close marks the thermostat offline and disconnects from the broker.
func (c *RealClient) Close() error {
	token := c.client.Publish(c.topics.Availability(), 1, true, AvailabilityOffline)
	token.WaitTimeout(time.Second)
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
