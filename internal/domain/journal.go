package domain

import "time"

type AttemptOutcome string

const (
	OutcomeDelivered AttemptOutcome = "DELIVERED"
	OutcomeRetry     AttemptOutcome = "RETRY"
	OutcomeFailed    AttemptOutcome = "FAILED"
	// OutcomeReturned marks an attempt that never reached the transport
	// because the session was not ready. It does not count as an attempt.
	OutcomeReturned AttemptOutcome = "RETURNED"
)

// JournalEntry records the outcome of one delivery attempt.
type JournalEntry struct {
	ID         string         `json:"id"`
	JobID      string         `json:"job_id"`
	Outcome    AttemptOutcome `json:"outcome"`
	Attempt    int            `json:"attempt"`
	MessageID  string         `json:"message_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}
