package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/hglynn/labclimate/internal/logger"
	"github.com/hglynn/labclimate/internal/metrics"
)

// IngestHandler receives inbound messages from the broker. Handlers must not
// block; they write into state memory and return.
type IngestHandler interface {
	HandleSensor(topic string, payload []byte)
	HandleFeedback(topic string, payload []byte)
}

// Client is the real broker connection: it subscribes for sensor and
// feedback topics, publishes commands and system events, and buffers
// commands while the broker is unreachable.
type Client struct {
	client paho.Client

	mu     sync.Mutex
	buffer *ringBuffer

	handler IngestHandler
	metrics *metrics.Metrics
}

// NewClient creates a connected client. A random suffix is appended to the
// client id so a restarted controller doesn't steal the old session.
func NewClient(broker, clientIDPrefix string, bufferCap int, handler IngestHandler, m *metrics.Metrics) (*Client, error) {
	c := &Client{
		buffer:  newRingBuffer(bufferCap),
		handler: handler,
		metrics: m,
	}

	willPayload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "connection lost",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("%s-%s", clientIDPrefix, uuid.NewString()[:8])).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, willPayload, 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// ConnectRetry is on: the connection keeps being attempted in the
		// background and onConnect fires when it lands. A down broker does
		// not stop the controller from starting.
		logger.L().Warnf("mqtt: broker not reachable yet, connecting in background")
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return c, nil
}

// onConnect runs on every (re)connection: subscriptions don't survive a
// clean session, so they are re-established here, then buffered commands
// are replayed in order.
func (c *Client) onConnect(client paho.Client) {
	logger.L().Info("mqtt: connected")
	if c.metrics != nil {
		c.metrics.BrokerConnected.Set(1)
	}

	subs := map[string]paho.MessageHandler{
		SensorSubscription: func(_ paho.Client, msg paho.Message) {
			c.handler.HandleSensor(msg.Topic(), msg.Payload())
		},
		FeedbackSubscription: func(_ paho.Client, msg paho.Message) {
			c.handler.HandleFeedback(msg.Topic(), msg.Payload())
		},
	}
	for filter, h := range subs {
		if token := client.Subscribe(filter, 1, h); token.Wait() && token.Error() != nil {
			logger.L().Errorf("mqtt: subscribe %s: %v", filter, token.Error())
		}
	}

	c.mu.Lock()
	pending := c.buffer.drainAll()
	c.mu.Unlock()
	for _, msg := range pending {
		token := client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(5 * time.Second) {
			logger.L().Warnf("mqtt: replay timeout on %s", msg.topic)
			continue
		}
		if err := token.Error(); err != nil {
			logger.L().Warnf("mqtt: replay %s: %v", msg.topic, err)
		}
	}
	if len(pending) > 0 {
		logger.L().Infof("mqtt: replayed %d buffered commands", len(pending))
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	logger.L().Warnf("mqtt: connection lost: %v", err)
	if c.metrics != nil {
		c.metrics.BrokerConnected.Set(0)
	}
}

// PublishCommand sends an actuator command at QoS 1. While disconnected the
// command is buffered and replayed on reconnect; the call still succeeds,
// since commands are idempotent at the state level and feedback
// reconciliation catches real divergence.
func (c *Client) PublishCommand(cmd Command) error {
	payload, err := EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	topic := CommandTopic(cmd.Lab, cmd.Actuator)

	if !c.client.IsConnected() {
		c.mu.Lock()
		c.buffer.push(queuedMsg{topic: topic, payload: payload, qos: 1})
		n := c.buffer.len()
		c.mu.Unlock()
		logger.L().Debugf("mqtt: broker down, buffered command for %s (%d queued)", topic, n)
		return nil
	}

	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish command: %w", err)
	}
	return nil
}

// PublishSystem sends a controller lifecycle event at QoS 1.
func (c *Client) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	token := c.client.Publish(TopicSystem, 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(1000) // milliseconds to flush in-flight work
	return nil
}
