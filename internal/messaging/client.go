// Package messaging defines the boundary to the WhatsApp session transport
// and the transports the notifier can run against.
package messaging

import "context"

type EventKind string

const (
	EventPairingRequired EventKind = "pairing_required"
	EventReady           EventKind = "ready"
	EventAuthFailed      EventKind = "auth_failed"
	EventDisconnected    EventKind = "disconnected"
)

// Event is a session lifecycle signal emitted by a Client.
type Event struct {
	Kind EventKind
	// Payload carries the pairing artifact for EventPairingRequired.
	Payload string
	Reason  string
}

// Client is an opaque, session-based messaging transport.
//
// Connect starts session establishment and returns without waiting for the
// session to become ready; progress is reported on Events. The events channel
// is never closed, so readers stop on their own context. Send delivers one
// text message and returns the transport's message id.
type Client interface {
	Connect(ctx context.Context) error
	Events() <-chan Event
	Send(ctx context.Context, destination, text string) (string, error)
	Close() error
}
