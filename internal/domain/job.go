package domain

import (
	"fmt"
	"time"
)

type JobState string

const (
	JobStatePending   JobState = "PENDING"
	JobStateSending   JobState = "SENDING"
	JobStateDelivered JobState = "DELIVERED"
	JobStateFailed    JobState = "FAILED"
)

// NotificationJob is one unit of outbound work. Only the dispatch queue
// mutates it; everyone else works on copies.
type NotificationJob struct {
	ID            string           `json:"job_id"`
	Message       string           `json:"message"`
	State         JobState         `json:"state"`
	FailureReason string           `json:"failure_reason,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
	AttemptCount  int              `json:"attempt_count"`
	EnqueuedAt    time.Time        `json:"enqueued_at"`
	NextAttemptAt time.Time        `json:"next_attempt_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeliveredAt   *time.Time       `json:"delivered_at,omitempty"`
	Receipt       *DeliveryReceipt `json:"receipt,omitempty"`
}

func NewNotificationJob(id, message string, now time.Time) (*NotificationJob, error) {
	if id == "" || message == "" {
		return nil, fmt.Errorf("%w: job id and message are required", ErrInvalidJob)
	}
	return &NotificationJob{
		ID:            id,
		Message:       message,
		State:         JobStatePending,
		EnqueuedAt:    now,
		NextAttemptAt: now,
		UpdatedAt:     now,
	}, nil
}

func (j *NotificationJob) IsTerminal() bool {
	return j.State == JobStateDelivered || j.State == JobStateFailed
}

// Eligible reports whether the job may be attempted at now.
func (j *NotificationJob) Eligible(now time.Time) bool {
	return j.State == JobStatePending && !now.Before(j.NextAttemptAt)
}

func (j *NotificationJob) MarkSending(now time.Time) error {
	if j.State != JobStatePending {
		return j.transitionError(JobStateSending)
	}
	j.State = JobStateSending
	j.UpdatedAt = now
	return nil
}

func (j *NotificationJob) MarkDelivered(receipt DeliveryReceipt, now time.Time) error {
	if j.State != JobStateSending {
		return j.transitionError(JobStateDelivered)
	}
	j.AttemptCount++
	j.State = JobStateDelivered
	j.Receipt = &receipt
	j.DeliveredAt = &now
	j.LastError = ""
	j.UpdatedAt = now
	return nil
}

// MarkRetry counts a failed attempt and parks the job until nextAttempt.
func (j *NotificationJob) MarkRetry(cause error, nextAttempt, now time.Time) error {
	if j.State != JobStateSending {
		return j.transitionError(JobStatePending)
	}
	j.AttemptCount++
	j.State = JobStatePending
	j.LastError = cause.Error()
	j.NextAttemptAt = nextAttempt
	j.UpdatedAt = now
	return nil
}

// MarkFailed counts the final attempt and makes the job terminal.
func (j *NotificationJob) MarkFailed(cause error, now time.Time) error {
	if j.State != JobStateSending {
		return j.transitionError(JobStateFailed)
	}
	j.AttemptCount++
	j.State = JobStateFailed
	j.LastError = cause.Error()
	j.FailureReason = fmt.Sprintf("gave up after %d attempts: %v", j.AttemptCount, cause)
	j.UpdatedAt = now
	return nil
}

// ReturnToPending undoes MarkSending without counting an attempt.
func (j *NotificationJob) ReturnToPending(now time.Time) error {
	if j.State != JobStateSending {
		return j.transitionError(JobStatePending)
	}
	j.State = JobStatePending
	j.UpdatedAt = now
	return nil
}

// Reset starts a fresh attempt sequence for a failed job.
func (j *NotificationJob) Reset(message string, now time.Time) error {
	if j.State != JobStateFailed {
		return j.transitionError(JobStatePending)
	}
	j.Message = message
	j.State = JobStatePending
	j.AttemptCount = 0
	j.FailureReason = ""
	j.LastError = ""
	j.NextAttemptAt = now
	j.UpdatedAt = now
	return nil
}

func (j *NotificationJob) transitionError(to JobState) error {
	return fmt.Errorf("%w: job %s cannot move from %s to %s", ErrInvalidTransition, j.ID, j.State, to)
}
