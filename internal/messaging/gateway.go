package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire format shared by the gateway-backed transports (kafka, nats). The
// gateway is a sidecar that owns the WhatsApp Web session and reports its
// lifecycle with the event names whatsapp-web.js uses.
const (
	GatewayEventQR           = "qr"
	GatewayEventReady        = "ready"
	GatewayEventAuthFailure  = "auth_failure"
	GatewayEventDisconnected = "disconnected"

	CommandConnect = "connect"
	CommandSend    = "send"
)

type GatewayEvent struct {
	Type    string `json:"type"`
	Payload string `json:"payload,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type GatewayCommand struct {
	Command     string    `json:"command"`
	MessageID   string    `json:"message_id,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Text        string    `json:"text,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

// GatewayReply answers a send command on request/reply transports.
type GatewayReply struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
	// NotReady is set when the gateway's own session is not usable.
	NotReady bool `json:"not_ready,omitempty"`
}

func DecodeGatewayEvent(data []byte) (Event, error) {
	var ge GatewayEvent
	if err := json.Unmarshal(data, &ge); err != nil {
		return Event{}, fmt.Errorf("failed to decode gateway event: %w", err)
	}
	switch ge.Type {
	case GatewayEventQR:
		return Event{Kind: EventPairingRequired, Payload: ge.Payload}, nil
	case GatewayEventReady:
		return Event{Kind: EventReady}, nil
	case GatewayEventAuthFailure:
		return Event{Kind: EventAuthFailed, Reason: ge.Reason}, nil
	case GatewayEventDisconnected:
		return Event{Kind: EventDisconnected, Reason: ge.Reason}, nil
	default:
		return Event{}, fmt.Errorf("unknown gateway event type %q", ge.Type)
	}
}
