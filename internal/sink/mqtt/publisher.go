package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
	"github.com/oshokin/pump-monitor/internal/logger"
	"github.com/oshokin/pump-monitor/internal/sink"
)

// Connection defaults.
const (
	defaultConnectAttempts = 5
	defaultMaxElapsed      = 10 * time.Second
	defaultPublishTimeout  = 2 * time.Second
	disconnectQuiesceMs    = 250
	clientIDPrefix         = "pump-monitor-"
)

var (
	// errBrokerRequired is returned when no broker URL is configured.
	errBrokerRequired = errors.New("mqtt broker must be provided")
	// errTopicRequired is returned when no topic is configured.
	errTopicRequired = errors.New("mqtt topic must be provided")
	// errPublishTimeout is returned when the broker did not acknowledge in time.
	errPublishTimeout = errors.New("mqtt publish timed out")
	// errConnectTimeout is returned when the broker did not accept the connection in time.
	errConnectTimeout = errors.New("mqtt connect timed out")
)

// Config describes the broker connection.
type Config struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string
	// Topic receives the snapshot documents.
	Topic string
	// ClientID identifies the client; a random one is generated when empty.
	ClientID string
	// Username is the optional broker user.
	Username string
	// Password is the optional broker password.
	Password string
	// Timeout bounds connect and publish acknowledgements.
	Timeout time.Duration
}

// client is the subset of paho.Client used by the publisher.
type client interface {
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	Disconnect(quiesce uint)
}

// connector is the subset of paho.Client used while dialing.
type connector interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
}

// Publisher is a sink that publishes every snapshot as JSON.
type Publisher struct {
	// ctx carries the logger.
	ctx context.Context //nolint:containedctx // Only used for logging from Publish.
	// client is the connected broker client.
	client client
	// topic receives the documents.
	topic string
	// timeout bounds each publish acknowledgement.
	timeout time.Duration
}

// Dial connects to the broker, retrying with exponential backoff.
func Dial(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errBrokerRequired
	}

	if cfg.Topic == "" {
		return nil, errTopicRequired
	}

	if cfg.ClientID == "" {
		cfg.ClientID = clientIDPrefix + uuid.NewString()
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPublishTimeout
	}

	ctx = logger.WithKV(logger.WithName(ctx, "mqtt"), "broker", cfg.Broker, "topic", cfg.Topic)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.Timeout)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = defaultMaxElapsed

	var c paho.Client

	err := backoff.Retry(func() error {
		c = paho.NewClient(opts)

		err := connect(c, cfg.Timeout)
		if err != nil {
			logger.WarnKV(ctx, "MQTT connect failed", "error", err)
		}

		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, defaultConnectAttempts-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	logger.InfoKV(ctx, "Connected to MQTT broker", "client_id", cfg.ClientID)

	return newPublisher(ctx, c, cfg.Topic, cfg.Timeout), nil
}

// connect makes one connection attempt. A client that failed is disconnected
// so its reconnect loop does not outlive the attempt.
func connect(c connector, timeout time.Duration) error {
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		c.Disconnect(0)
		return errConnectTimeout
	}

	if err := token.Error(); err != nil {
		c.Disconnect(0)
		return err
	}

	return nil
}

// newPublisher wraps an already connected client.
func newPublisher(ctx context.Context, c client, topic string, timeout time.Duration) *Publisher {
	return &Publisher{
		ctx:     ctx,
		client:  c,
		topic:   topic,
		timeout: timeout,
	}
}

// Publish implements sink.Sink. Failures are logged; the next snapshot
// supersedes a lost one.
func (p *Publisher) Publish(snap pump.Snapshot) {
	if err := p.publish(snap); err != nil {
		logger.WarnKV(p.ctx, "Snapshot not published", "seq", snap.Seq, "error", err)
	}
}

// publish encodes and sends one snapshot with QoS 0.
func (p *Publisher) publish(snap pump.Snapshot) error {
	payload, err := sink.Encode(snap)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return errPublishTimeout
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesceMs)
	logger.Info(p.ctx, "MQTT connection closed")
}
