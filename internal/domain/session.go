package domain

import "time"

type SessionState string

const (
	SessionUnauthenticated SessionState = "UNAUTHENTICATED"
	SessionPairing         SessionState = "PAIRING"
	SessionReady           SessionState = "READY"
	SessionFaulted         SessionState = "FAULTED"
)

// DeliveryReceipt is returned by a successful send.
type DeliveryReceipt struct {
	MessageID   string    `json:"message_id"`
	Destination string    `json:"destination"`
	SentAt      time.Time `json:"sent_at"`
}
