// Package kafkagw talks to a WhatsApp gateway sidecar over Kafka. Commands
// are produced to the command topic; session lifecycle events are consumed
// from the session topic.
package kafkagw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	kafka_handler "github.com/Joshina1995/shopify-whatsapp-notifications/internal/handler/kafka"
	kafka_infra "github.com/Joshina1995/shopify-whatsapp-notifications/internal/infrastructure/kafka"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/messaging"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/util"
)

type Config struct {
	Brokers      []string
	CommandTopic string
	SessionTopic string
	GroupID      string
	WriteTimeout time.Duration
}

type consumer interface {
	Consume(ctx context.Context) error
	Close() error
}

type Client struct {
	producer     kafka_infra.Producer
	consumer     consumer
	commandTopic string
	logger       *zap.Logger

	events chan messaging.Event
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	started   bool
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	producer := kafka_infra.NewProducer(cfg.Brokers, cfg.WriteTimeout, logger.With(zap.String("component", "KafkaProducer")))
	c := newClient(producer, cfg.CommandTopic, logger)
	c.consumer = kafka_infra.NewConsumer(
		cfg.Brokers,
		cfg.SessionTopic,
		cfg.GroupID,
		kafka_handler.SessionEventMessageHandler(c.emit, logger.With(zap.String("component", "SessionEventHandler"))),
		logger.With(zap.String("component", "SessionEventConsumer")),
	)
	return c
}

func newClient(producer kafka_infra.Producer, commandTopic string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		producer:     producer,
		commandTopic: commandTopic,
		logger:       logger,
		events:       make(chan messaging.Event, 16),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Connect starts consuming session events and asks the gateway to open its
// session. Calling it again only repeats the connect command.
func (c *Client) Connect(ctx context.Context) error {
	if c.ctx.Err() != nil {
		return messaging.ErrClientClosed
	}

	c.mu.Lock()
	if !c.started {
		c.started = true
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.consumer.Consume(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("Session event consumer stopped", zap.Error(err))
			}
		}()
	}
	c.mu.Unlock()

	return c.command(ctx, messaging.GatewayCommand{Command: messaging.CommandConnect}, "connect")
}

func (c *Client) Events() <-chan messaging.Event {
	return c.events
}

// Send produces a send command. The returned id is assigned here; the gateway
// acknowledges nothing back, so delivery means the broker accepted the command.
func (c *Client) Send(ctx context.Context, destination, text string) (string, error) {
	if c.ctx.Err() != nil {
		return "", messaging.ErrClientClosed
	}
	id := util.GenerateUUID()
	cmd := messaging.GatewayCommand{
		Command:     messaging.CommandSend,
		MessageID:   id,
		Destination: destination,
		Text:        text,
	}
	if err := c.command(ctx, cmd, destination); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		var errs []error
		if c.consumer != nil {
			if err := c.consumer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.wg.Wait()
		if err := c.producer.Close(); err != nil {
			errs = append(errs, err)
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

func (c *Client) command(ctx context.Context, cmd messaging.GatewayCommand, key string) error {
	cmd.IssuedAt = time.Now().UTC()
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal %s command: %w", cmd.Command, err)
	}
	if err := c.producer.Produce(ctx, key, c.commandTopic, payload); err != nil {
		return fmt.Errorf("failed to publish %s command: %w", cmd.Command, err)
	}
	return nil
}

func (c *Client) emit(evt messaging.Event) bool {
	if c.ctx.Err() != nil {
		return false
	}
	select {
	case c.events <- evt:
		return true
	case <-c.ctx.Done():
		return false
	}
}
