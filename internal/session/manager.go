// Package session owns the lifecycle of the WhatsApp messaging session.
//
// The Manager is the only writer of the session state. It consumes lifecycle
// events from a messaging.Client and turns them into explicit state
// transitions that other components read with CurrentState or observe with
// Subscribe.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/messaging"
)

var ErrTornDown = errors.New("session manager torn down")

// Status is an operator-facing snapshot of the session.
type Status struct {
	State       domain.SessionState `json:"state"`
	PairingCode string              `json:"pairing_code,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	ChangedAt   time.Time           `json:"changed_at"`
}

type Manager struct {
	client      messaging.Client
	sendTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time

	state atomic.Value // domain.SessionState

	mu          sync.Mutex
	pairingCode string
	reason      string
	changedAt   time.Time
	subs        map[int]chan domain.SessionState
	nextSubID   int
	loopStarted bool

	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	tornDown     atomic.Bool
	teardownOnce sync.Once
	teardownErr  error
}

func NewManager(client messaging.Client, sendTimeout time.Duration, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		client:      client,
		sendTimeout: sendTimeout,
		logger:      logger,
		now:         time.Now,
		subs:        make(map[int]chan domain.SessionState),
		ctx:         ctx,
		cancel:      cancel,
	}
	m.state.Store(domain.SessionUnauthenticated)
	m.changedAt = m.now()
	return m
}

// Connect starts session establishment and returns without waiting for it.
// It may be called again after a disconnect to ask the transport to pair anew.
// A faulted session cannot be reconnected; it needs a restart.
func (m *Manager) Connect(ctx context.Context) error {
	if m.CurrentState() == domain.SessionFaulted {
		return fmt.Errorf("%w: session is faulted, restart required", domain.ErrAuthFailure)
	}

	// tornDown is checked under mu so the loop is never added to wg once
	// Teardown may be waiting on it.
	m.mu.Lock()
	if m.tornDown.Load() {
		m.mu.Unlock()
		return ErrTornDown
	}
	if !m.loopStarted {
		m.loopStarted = true
		m.wg.Add(1)
		go m.run()
	}
	m.mu.Unlock()

	m.logger.Info("Connecting messaging session")
	if err := m.client.Connect(ctx); err != nil {
		m.logger.Error("Failed to start messaging session", zap.Error(err))
		return fmt.Errorf("failed to start messaging session: %w", err)
	}
	return nil
}

func (m *Manager) CurrentState() domain.SessionState {
	return m.state.Load().(domain.SessionState)
}

// PairingCode returns the pending pairing artifact, if any.
func (m *Manager) PairingCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairingCode
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:       m.CurrentState(),
		PairingCode: m.pairingCode,
		Reason:      m.reason,
		ChangedAt:   m.changedAt,
	}
}

// Subscribe returns a channel that receives every state the session moves
// into, and a func that cancels the subscription. Slow subscribers may miss
// intermediate states; CurrentState is always authoritative.
func (m *Manager) Subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 16)

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Send delivers text to destination. It fails with domain.ErrNotReady when
// the session is not ready or the send was aborted by Teardown or by ctx.
// Any other failure, including a gateway that reports not ready while the
// session is READY or a send that outlives the send timeout, is reported as
// domain.ErrTransportFailure.
func (m *Manager) Send(ctx context.Context, destination, text string) (domain.DeliveryReceipt, error) {
	if m.tornDown.Load() {
		return domain.DeliveryReceipt{}, fmt.Errorf("%w: %v", domain.ErrNotReady, ErrTornDown)
	}
	if state := m.CurrentState(); state != domain.SessionReady {
		return domain.DeliveryReceipt{}, fmt.Errorf("%w: session is %s", domain.ErrNotReady, state)
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := m.client.Send(sendCtx, destination, text)
		done <- result{id: id, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-sendCtx.Done():
		r = result{err: sendCtx.Err()}
	}

	if r.err != nil {
		return domain.DeliveryReceipt{}, m.classifySendError(ctx, sendCtx, r.err)
	}
	return domain.DeliveryReceipt{
		MessageID:   r.id,
		Destination: destination,
		SentAt:      m.now(),
	}, nil
}

func (m *Manager) classifySendError(callerCtx, sendCtx context.Context, err error) error {
	switch {
	case m.ctx.Err() != nil:
		return fmt.Errorf("%w: send aborted by teardown", domain.ErrNotReady)
	case callerCtx.Err() != nil:
		return fmt.Errorf("%w: send cancelled: %v", domain.ErrNotReady, callerCtx.Err())
	case errors.Is(sendCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: send timed out after %s", domain.ErrTransportFailure, m.sendTimeout)
	case errors.Is(err, domain.ErrNotReady) && m.CurrentState() != domain.SessionReady:
		return err
	case errors.Is(err, domain.ErrNotReady):
		// The gateway refused while our session reads READY. No new READY
		// will follow, so it is retried with backoff like any transport error.
		return fmt.Errorf("%w: gateway not ready while session is ready: %v", domain.ErrTransportFailure, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
	}
}

// Teardown stops event processing, aborts in-flight sends and closes the
// client. It is safe to call from any state, more than once.
func (m *Manager) Teardown() error {
	m.teardownOnce.Do(func() {
		m.logger.Info("Tearing down messaging session", zap.String("state", string(m.CurrentState())))
		m.mu.Lock()
		m.tornDown.Store(true)
		m.mu.Unlock()
		m.cancel()
		m.wg.Wait()

		if err := m.client.Close(); err != nil {
			m.logger.Error("Failed to close messaging client", zap.Error(err))
			m.teardownErr = fmt.Errorf("failed to close messaging client: %w", err)
		}
		if m.CurrentState() != domain.SessionFaulted {
			m.transition(domain.SessionUnauthenticated, "torn down")
		}
		m.logger.Info("Messaging session torn down")
	})
	return m.teardownErr
}

func (m *Manager) run() {
	defer m.wg.Done()
	events := m.client.Events()
	for {
		select {
		case <-m.ctx.Done():
			return
		case evt := <-events:
			m.apply(evt)
		}
	}
}

func (m *Manager) apply(evt messaging.Event) {
	current := m.CurrentState()
	if current == domain.SessionFaulted {
		m.logger.Debug("Ignoring session event, session is faulted", zap.String("event", string(evt.Kind)))
		return
	}

	switch evt.Kind {
	case messaging.EventPairingRequired:
		if current != domain.SessionUnauthenticated && current != domain.SessionPairing {
			m.ignore(evt, current)
			return
		}
		m.mu.Lock()
		m.pairingCode = evt.Payload
		m.mu.Unlock()
		m.logger.Warn("Pairing required: scan the QR code with WhatsApp to connect",
			zap.String("pairing_code", evt.Payload))
		if current == domain.SessionUnauthenticated {
			m.transition(domain.SessionPairing, "")
		}

	case messaging.EventReady:
		if current != domain.SessionPairing {
			m.ignore(evt, current)
			return
		}
		m.transition(domain.SessionReady, "")
		m.logger.Info("WhatsApp client is ready")

	case messaging.EventAuthFailed:
		m.transition(domain.SessionFaulted, evt.Reason)
		m.logger.Error("WhatsApp authentication failed, session faulted until restart",
			zap.String("reason", evt.Reason))

	case messaging.EventDisconnected:
		if current == domain.SessionUnauthenticated {
			return
		}
		m.transition(domain.SessionUnauthenticated, evt.Reason)
		m.logger.Warn("WhatsApp session disconnected, re-pairing required",
			zap.String("reason", evt.Reason))

	default:
		m.logger.Warn("Unknown session event", zap.String("event", string(evt.Kind)))
	}
}

func (m *Manager) ignore(evt messaging.Event, current domain.SessionState) {
	m.logger.Warn("Ignoring session event not valid in current state",
		zap.String("event", string(evt.Kind)),
		zap.String("state", string(current)))
}

func (m *Manager) transition(to domain.SessionState, reason string) {
	from := m.CurrentState()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Store(to)
	m.reason = reason
	m.changedAt = m.now()
	if to != domain.SessionPairing {
		m.pairingCode = ""
	}

	for _, ch := range m.subs {
		select {
		case ch <- to:
		default:
		}
	}

	if from != to {
		m.logger.Info("Session state changed",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("reason", reason))
	}
}
