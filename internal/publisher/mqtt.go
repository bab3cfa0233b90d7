package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/regional"
)

// Publish settings.
const (
	DefaultTopicPrefix    = "atmosguard"
	DefaultClientID       = "atmosguard-worker"
	DefaultPublishTimeout = 5 * time.Second

	qosAtLeastOnce byte = 1
)

// ErrNotConnected is returned when publishing before the broker connection is up.
var ErrNotConnected = errors.New("mqtt client not connected")

// MQTTClient is the subset of the paho client used by MQTTPublisher.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// MQTTConfig holds configuration for the MQTT publisher.
type MQTTConfig struct {
	BrokerURL      string // e.g. tcp://mosquitto:1883
	ClientID       string
	TopicPrefix    string
	PublishTimeout time.Duration
	Logger         zerolog.Logger
}

// MQTTPublisher publishes regional readings as retained messages on
// {prefix}/regions/{slug}.
type MQTTPublisher struct {
	client  MQTTClient
	prefix  string
	timeout time.Duration
	logger  zerolog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMQTTPublisher creates a publisher for cfg.BrokerURL. Call Connect before publishing.
func NewMQTTPublisher(cfg MQTTConfig) *MQTTPublisher {
	cfg = withDefaults(cfg)
	logger := cfg.Logger

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info().Str("broker", cfg.BrokerURL).Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	return NewMQTTPublisherWithClient(mqtt.NewClient(opts), cfg)
}

// NewMQTTPublisherWithClient creates a publisher around an existing client.
func NewMQTTPublisherWithClient(client MQTTClient, cfg MQTTConfig) *MQTTPublisher {
	cfg = withDefaults(cfg)
	return &MQTTPublisher{
		client:  client,
		prefix:  cfg.TopicPrefix,
		timeout: cfg.PublishTimeout,
		logger:  cfg.Logger,
		stopCh:  make(chan struct{}),
	}
}

func withDefaults(cfg MQTTConfig) MQTTConfig {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	return cfg
}

// Connect waits for the initial broker connection, honouring ctx and Close.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errors.New("publisher closed")
	default:
	}

	if p.client.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return errors.New("publisher closed")
		default:
		}
	}
}

// Topic returns the topic a region's readings are published on.
func (p *MQTTPublisher) Topic(region string) string {
	return Topic(p.prefix, region)
}

// Topic returns {prefix}/regions/{slug}.
func Topic(prefix, region string) string {
	return prefix + "/regions/" + regional.Slug(region)
}

// Publish sends r as a retained QoS 1 message.
func (p *MQTTPublisher) Publish(ctx context.Context, r regional.Reading) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(NewMessage(r))
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	topic := p.Topic(r.Region)
	token := p.client.Publish(topic, qosAtLeastOnce, true, data)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.logger.Debug().Str("topic", topic).Msg("published regional reading")
	return nil
}

// Close disconnects from the broker. Safe to call more than once.
func (p *MQTTPublisher) Close() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.client.Disconnect(250)
		p.logger.Info().Msg("mqtt disconnected")
	})
}
