package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/util"
)

var ErrClientClosed = errors.New("messaging client closed")

// LoopbackClient is an in-process transport for local runs. It walks the
// session through pairing and ready on its own and logs outgoing messages
// instead of delivering them.
type LoopbackClient struct {
	pairingDelay time.Duration
	readyDelay   time.Duration
	logger       *zap.Logger

	events chan Event
	done   chan struct{}

	mu        sync.Mutex
	started   bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewLoopbackClient(pairingDelay, readyDelay time.Duration, logger *zap.Logger) *LoopbackClient {
	return &LoopbackClient{
		pairingDelay: pairingDelay,
		readyDelay:   readyDelay,
		logger:       logger,
		events:       make(chan Event, 16),
		done:         make(chan struct{}),
	}
}

func (c *LoopbackClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	// A pairing walk already in flight covers this call. Once it finishes,
	// the next Connect pairs again, as after a dropped session.
	if c.started {
		return nil
	}
	c.started = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			c.started = false
			c.mu.Unlock()
		}()
		if !c.wait(c.pairingDelay) {
			return
		}
		if !c.emit(Event{Kind: EventPairingRequired, Payload: "loopback-" + util.GenerateUUID()}) {
			return
		}
		if !c.wait(c.readyDelay) {
			return
		}
		c.emit(Event{Kind: EventReady})
	}()
	return nil
}

func (c *LoopbackClient) Events() <-chan Event {
	return c.events
}

func (c *LoopbackClient) Send(ctx context.Context, destination, text string) (string, error) {
	select {
	case <-c.done:
		return "", ErrClientClosed
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	id := util.GenerateUUID()
	c.logger.Info("Loopback message sent",
		zap.String("message_id", id),
		zap.String("destination", destination),
		zap.String("text", text))
	return id, nil
}

func (c *LoopbackClient) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		c.mu.Unlock()
	})
	c.wg.Wait()
	return nil
}

// Emit injects a lifecycle event, e.g. to simulate a dropped session.
func (c *LoopbackClient) Emit(evt Event) bool {
	return c.emit(evt)
}

func (c *LoopbackClient) emit(evt Event) bool {
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

func (c *LoopbackClient) wait(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.done:
		return false
	}
}
