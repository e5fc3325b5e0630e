// Package natsgw talks to a WhatsApp gateway sidecar over NATS.
//
// Subjects, for a prefix p:
//
//	p.session  gateway -> notifier  lifecycle events
//	p.connect  notifier -> gateway  open the session
//	p.send     notifier -> gateway  request/reply, answered with a GatewayReply
package natsgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/messaging"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/util"
)

const DefaultSubjectPrefix = "whatsapp"

type Client struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger

	events chan messaging.Event
	done   chan struct{}

	mu        sync.Mutex
	sub       *nats.Subscription
	closeOnce sync.Once
}

// Dial connects to the NATS server at url. The connection reconnects on its
// own; the session state is driven solely by gateway events.
func Dial(url, prefix string, logger *zap.Logger) (*Client, error) {
	conn, err := nats.Connect(url,
		nats.Name("shopify-whatsapp-notifier"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("Disconnected from NATS", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewClient(conn, prefix, logger), nil
}

func NewClient(conn *nats.Conn, prefix string, logger *zap.Logger) *Client {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Client{
		conn:   conn,
		prefix: prefix,
		logger: logger,
		events: make(chan messaging.Event, 16),
		done:   make(chan struct{}),
	}
}

func (c *Client) subject(name string) string {
	return c.prefix + "." + name
}

// Connect subscribes to session events, once, and publishes a connect command.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.done:
		return messaging.ErrClientClosed
	default:
	}

	c.mu.Lock()
	if c.sub == nil {
		sub, err := c.conn.Subscribe(c.subject("session"), c.handleSessionMsg)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to subscribe to session events: %w", err)
		}
		c.sub = sub
	}
	c.mu.Unlock()

	payload, err := json.Marshal(messaging.GatewayCommand{Command: messaging.CommandConnect, IssuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal connect command: %w", err)
	}
	if err := c.conn.Publish(c.subject("connect"), payload); err != nil {
		return fmt.Errorf("failed to publish connect command: %w", err)
	}
	return nil
}

func (c *Client) Events() <-chan messaging.Event {
	return c.events
}

// Send asks the gateway to deliver text and waits for its reply. A reply
// flagged not_ready, or no gateway listening at all, maps to
// domain.ErrNotReady.
func (c *Client) Send(ctx context.Context, destination, text string) (string, error) {
	select {
	case <-c.done:
		return "", messaging.ErrClientClosed
	default:
	}

	payload, err := json.Marshal(messaging.GatewayCommand{
		Command:     messaging.CommandSend,
		MessageID:   util.GenerateUUID(),
		Destination: destination,
		Text:        text,
		IssuedAt:    time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal send command: %w", err)
	}

	msg, err := c.conn.RequestWithContext(ctx, c.subject("send"), payload)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return "", fmt.Errorf("%w: no gateway is listening", domain.ErrNotReady)
		}
		return "", fmt.Errorf("send request failed: %w", err)
	}

	var reply messaging.GatewayReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return "", fmt.Errorf("failed to decode gateway reply: %w", err)
	}
	switch {
	case reply.NotReady:
		return "", fmt.Errorf("%w: %s", domain.ErrNotReady, reply.Error)
	case reply.Error != "":
		return "", errors.New(reply.Error)
	}
	return reply.MessageID, nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.sub != nil {
			if unsubErr := c.sub.Unsubscribe(); unsubErr != nil && !errors.Is(unsubErr, nats.ErrConnectionClosed) {
				err = fmt.Errorf("failed to unsubscribe from session events: %w", unsubErr)
			}
		}
		c.mu.Unlock()
		c.conn.Close()
		c.logger.Info("NATS gateway client closed")
	})
	return err
}

func (c *Client) handleSessionMsg(m *nats.Msg) {
	evt, err := messaging.DecodeGatewayEvent(m.Data)
	if err != nil {
		c.logger.Error("Failed to decode session event, skipping", zap.Error(err), zap.ByteString("value", m.Data))
		return
	}
	c.emit(evt)
}

func (c *Client) emit(evt messaging.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- evt:
		return true
	case <-c.done:
		return false
	}
}
