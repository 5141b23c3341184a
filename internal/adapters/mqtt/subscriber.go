// Package mqtt ingests sensor readings published to an MQTT broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/okian/airrisk/internal/adapters/mq/queue"
	"github.com/okian/airrisk/pkg/logger"
	"github.com/okian/airrisk/pkg/metrics"
)

// Defaults for the sensor topic.
const (
	DefaultTopic    = "airaware/sensors"
	DefaultQoS      = byte(1)
	connectTimeout  = 10 * time.Second
	disconnectQuiet = 250 // ms
)

// Sink receives parsed readings.
type Sink interface {
	Enqueue(ctx context.Context, it queue.Item) error
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithTopic overrides the subscription topic.
func WithTopic(topic string) Option {
	return func(s *Subscriber) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithClientID sets the MQTT client id.
func WithClientID(id string) Option {
	return func(s *Subscriber) {
		if id != "" {
			s.clientID = id
		}
	}
}

// WithCredentials sets username and password.
func WithCredentials(user, password string) Option {
	return func(s *Subscriber) {
		s.username, s.password = user, password
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Subscriber) {
		if l != nil {
			s.logger = l
		}
	}
}

// Subscriber feeds MQTT sensor messages into the reading queue.
type Subscriber struct {
	broker   string
	topic    string
	clientID string
	username string
	password string
	sink     Sink
	logger   logger.Logger

	client paho.Client
}

// NewSubscriber creates a subscriber for broker, e.g. "tcp://localhost:1883".
func NewSubscriber(broker string, sink Sink, opts ...Option) *Subscriber {
	s := &Subscriber{
		broker:   broker,
		topic:    DefaultTopic,
		clientID: "airrisk",
		sink:     sink,
		logger:   logger.Get().Named("mqtt"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start connects and subscribes. Messages are handled until Stop.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(s.broker).
		SetClientID(s.clientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Warn(ctx, "mqtt connection lost", logger.Error(err))
		}).
		SetOnConnectHandler(func(c paho.Client) {
			// Resubscribe after every (re)connect; clean sessions drop subscriptions.
			token := c.Subscribe(s.topic, DefaultQoS, func(_ paho.Client, msg paho.Message) {
				_ = s.HandleMessage(ctx, msg.Payload())
			})
			if token.WaitTimeout(connectTimeout) && token.Error() != nil {
				s.logger.Error(ctx, "mqtt subscribe failed", logger.String("topic", s.topic), logger.Error(token.Error()))
				return
			}
			s.logger.Info(ctx, "mqtt subscribed", logger.String("topic", s.topic))
		})
	if s.username != "" {
		opts.SetUsername(s.username)
	}
	if s.password != "" {
		opts.SetPassword(s.password)
	}

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		s.Stop()
		return fmt.Errorf("connect to mqtt broker %s: timeout", s.broker)
	}
	if err := token.Error(); err != nil {
		s.Stop()
		return fmt.Errorf("connect to mqtt broker %s: %w", s.broker, err)
	}
	return nil
}

// HandleMessage parses one payload and enqueues it. Malformed payloads and
// a full queue drop the message.
func (s *Subscriber) HandleMessage(ctx context.Context, payload []byte) error {
	r, err := ParsePayload(payload)
	if err != nil {
		metrics.RecordMQTTMessage("invalid")
		s.logger.Warn(ctx, "mqtt payload rejected", logger.Error(err))
		return err
	}
	if err := s.sink.Enqueue(ctx, queue.Item{Reading: r, Source: "mqtt"}); err != nil {
		outcome := "error"
		if errors.Is(err, queue.ErrFull) {
			outcome = "dropped"
		}
		metrics.RecordMQTTMessage(outcome)
		s.logger.Warn(ctx, "mqtt reading not queued",
			logger.String("sensor_id", r.SensorID), logger.Error(err))
		return err
	}
	metrics.RecordMQTTMessage("queued")
	return nil
}

// Stop unsubscribes when connected and always disconnects, which also ends
// any reconnect loop still running.
func (s *Subscriber) Stop() {
	if s.client == nil {
		return
	}
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).WaitTimeout(time.Second)
	}
	s.client.Disconnect(disconnectQuiet)
	s.client = nil
}
