package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/pkg/logger"
)

// Config holds the broker settings of the event consumer.
type Config struct {
	URL          string        `env:"AMQP_URL"`
	Exchange     string        `env:"AMQP_EXCHANGE" envDefault:"library.events"`
	Queue        string        `env:"AMQP_QUEUE" envDefault:"notifications"`
	RoutingKeys  []string      `env:"AMQP_ROUTING_KEYS" envSeparator:"," envDefault:"loan.#,reservation.#,fine.#,account.#"`
	Prefetch     int           `env:"AMQP_PREFETCH" envDefault:"10"`
	ConsumerTag  string        `env:"AMQP_CONSUMER_TAG" envDefault:"notifier"`
	DialAttempts int           `env:"AMQP_DIAL_ATTEMPTS" envDefault:"5"`
	DialBackoff  time.Duration `env:"AMQP_DIAL_BACKOFF" envDefault:"2s"`
}

// Outcome is what the consumer did with one delivery.
type Outcome string

const (
	OutcomeAcked    Outcome = "acked"
	OutcomeRejected Outcome = "rejected"
	OutcomeRequeued Outcome = "requeued"
	OutcomeDropped  Outcome = "dropped"
)

// Consumer reads events from a topic exchange and dispatches them.
type Consumer struct {
	dispatcher *Dispatcher
	cfg        Config
	logger     *slog.Logger
	dial       func(url string) (*amqp.Connection, error)

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the logger for the Consumer.
func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConsumer creates a Consumer feeding d. Call Connect before Run.
func NewConsumer(d *Dispatcher, cfg Config, opts ...ConsumerOption) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	if cfg.DialAttempts <= 0 {
		cfg.DialAttempts = 1
	}
	c := &Consumer{
		dispatcher: d,
		cfg:        cfg,
		logger:     slog.Default(),
		dial:       amqp.Dial,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the broker and declares the exchange, the queue and its bindings.
func (c *Consumer) Connect(ctx context.Context) error {
	conn, err := c.dialWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := c.declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn, c.ch = conn, ch
	c.mu.Unlock()
	return nil
}

func (c *Consumer) dialWithRetry(ctx context.Context) (*amqp.Connection, error) {
	var errs []error
	for attempt := 1; attempt <= c.cfg.DialAttempts; attempt++ {
		conn, err := c.dial(c.cfg.URL)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
		c.logger.LogAttrs(ctx, slog.LevelWarn, "broker dial failed",
			logger.Component("events"),
			slog.Int("attempt", attempt),
			logger.Error(err),
		)
		if attempt == c.cfg.DialAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(append(errs, ctx.Err())...)
		case <-time.After(c.cfg.DialBackoff * time.Duration(attempt)):
		}
	}
	return nil, errors.Join(errs...)
}

func (c *Consumer) declare(ch *amqp.Channel) error {
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.cfg.Queue, err)
	}
	for _, key := range c.cfg.RoutingKeys {
		if err := ch.QueueBind(c.cfg.Queue, key, c.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", c.cfg.Queue, key, err)
		}
	}
	return nil
}

// Run connects, consumes until ctx is done and closes the connection.
// It returns ErrDeliveriesClosed if the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) func() error {
	return func() error {
		if err := c.Connect(ctx); err != nil {
			return err
		}
		defer c.Close()

		c.mu.Lock()
		ch := c.ch
		c.mu.Unlock()

		deliveries, err := ch.Consume(c.cfg.Queue, c.cfg.ConsumerTag, false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
		}

		c.logger.LogAttrs(ctx, slog.LevelInfo, "event consumer started",
			logger.Component("events"),
			slog.String("queue", c.cfg.Queue),
			slog.Any("routing_keys", c.cfg.RoutingKeys),
		)

		for {
			select {
			case <-ctx.Done():
				return nil
			case d, ok := <-deliveries:
				if !ok {
					return ErrDeliveriesClosed
				}
				c.Handle(ctx, d)
			}
		}
	}
}

// Handle dispatches one delivery and settles it. Malformed and unknown
// events are dropped; other failures are requeued once.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) Outcome {
	e, err := Decode(d.Body)
	if err == nil {
		if e.CorrelationID == "" {
			e.CorrelationID = d.CorrelationId
		}
		ctx = WithCorrelationID(ctx, e.CorrelationID)
		err = c.dispatcher.Dispatch(ctx, e)
	}

	outcome, settleErr := settle(d, err)
	if settleErr != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "failed to settle delivery",
			logger.Component("events"),
			logger.Error(settleErr),
		)
	}
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "event handling failed",
			logger.Component("events"),
			logger.EventType(e.Type),
			slog.String("outcome", string(outcome)),
			logger.Error(err),
		)
	}
	return outcome
}

func settle(d amqp.Delivery, err error) (Outcome, error) {
	switch {
	case err == nil:
		return OutcomeAcked, d.Ack(false)
	case apperr.IsValidation(err) || apperr.IsNotFound(err):
		return OutcomeRejected, d.Nack(false, false)
	case d.Redelivered:
		return OutcomeDropped, d.Nack(false, false)
	default:
		return OutcomeRequeued, d.Nack(false, true)
	}
}

// Healthcheck reports whether the broker connection is open.
func (c *Consumer) Healthcheck(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		return ErrNotConnected
	}
	return nil
}

// Close closes the channel and the connection.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.ch != nil {
		errs = append(errs, c.ch.Close())
		c.ch = nil
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
		c.conn = nil
	}
	return errors.Join(errs...)
}
