// Package dispatch buffers order notifications until the messaging session
// can deliver them.
//
// The Queue exclusively owns every NotificationJob. Jobs are drained in
// enqueue order whenever the session is ready; transport failures are retried
// with capped exponential backoff until MaxAttempts is reached.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/retry"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/util"
)

type Sender interface {
	Send(ctx context.Context, destination, text string) (domain.DeliveryReceipt, error)
}

type SessionObserver interface {
	CurrentState() domain.SessionState
	Subscribe() (<-chan domain.SessionState, func())
}

// Recorder persists attempt outcomes for operators. Optional.
type Recorder interface {
	Append(ctx context.Context, entry *domain.JournalEntry) error
}

// DeliveryIndex remembers delivered job ids beyond the queue's own memory,
// e.g. across restarts. Optional and best-effort.
type DeliveryIndex interface {
	WasDelivered(ctx context.Context, jobID string) (bool, error)
	MarkDelivered(ctx context.Context, jobID string) error
}

type Config struct {
	Destination  string
	MaxAttempts  int
	Backoff      retry.Backoff
	PollInterval time.Duration
	// Capacity bounds the number of non-terminal jobs.
	Capacity int
	// Retention is how long terminal jobs stay inspectable. Zero keeps them.
	Retention time.Duration
}

// DrainReport summarises one drain pass.
type DrainReport struct {
	Attempted int
	Delivered int
	Retried   int
	Failed    int
	// Halted is set when the pass stopped because the session was not ready.
	Halted bool
}

type Queue struct {
	sender   Sender
	session  SessionObserver
	recorder Recorder
	index    DeliveryIndex
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	jobs  map[string]*domain.NotificationJob
	order []string
	live  int

	drainMu sync.Mutex
	wake    chan struct{}
}

type Option func(*Queue)

func WithRecorder(r Recorder) Option {
	return func(q *Queue) { q.recorder = r }
}

func WithDeliveryIndex(idx DeliveryIndex) Option {
	return func(q *Queue) { q.index = idx }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func NewQueue(sender Sender, session SessionObserver, cfg Config, logger *zap.Logger, opts ...Option) *Queue {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	q := &Queue{
		sender:  sender,
		session: session,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		jobs:    make(map[string]*domain.NotificationJob),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue registers a notification and returns without waiting for delivery.
// Enqueueing an id that is pending, sending or delivered is a no-op and
// reports created=false; a failed job is reset to a fresh attempt sequence.
func (q *Queue) Enqueue(ctx context.Context, message, jobID string) (job domain.NotificationJob, created bool, err error) {
	if jobID == "" || message == "" {
		return domain.NotificationJob{}, false, fmt.Errorf("%w: job id and message are required", domain.ErrInvalidJob)
	}

	if q.index != nil {
		delivered, err := q.index.WasDelivered(ctx, jobID)
		if err != nil {
			q.logger.Warn("Delivery index lookup failed, continuing without it", zap.String("job_id", jobID), zap.Error(err))
		} else if delivered {
			q.logger.Info("Notification already delivered, ignoring duplicate", zap.String("job_id", jobID))
			return domain.NotificationJob{ID: jobID, Message: message, State: domain.JobStateDelivered}, false, nil
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()

	if existing, ok := q.jobs[jobID]; ok {
		if existing.State != domain.JobStateFailed {
			q.logger.Info("Duplicate notification ignored",
				zap.String("job_id", jobID),
				zap.String("state", string(existing.State)))
			return *existing, false, nil
		}
		if q.live >= q.cfg.Capacity && q.cfg.Capacity > 0 {
			return domain.NotificationJob{}, false, domain.ErrQueueFull
		}
		if err := existing.Reset(message, now); err != nil {
			return domain.NotificationJob{}, false, err
		}
		q.live++
		q.moveToBack(jobID)
		q.logger.Info("Failed notification re-enqueued", zap.String("job_id", jobID))
		q.signal()
		return *existing, true, nil
	}

	if q.cfg.Capacity > 0 && q.live >= q.cfg.Capacity {
		q.logger.Warn("Dispatch queue full, rejecting notification",
			zap.String("job_id", jobID),
			zap.Int("capacity", q.cfg.Capacity))
		return domain.NotificationJob{}, false, domain.ErrQueueFull
	}

	newJob, err := domain.NewNotificationJob(jobID, message, now)
	if err != nil {
		return domain.NotificationJob{}, false, err
	}
	q.jobs[jobID] = newJob
	q.order = append(q.order, jobID)
	q.live++
	q.logger.Info("Notification enqueued", zap.String("job_id", jobID))
	q.signal()
	return *newJob, true, nil
}

// Start drains the queue whenever a job is enqueued, the session changes
// state, or the poll interval elapses. It blocks until ctx is done.
//
// When a send is refused as not ready while the session still reads READY,
// Start stops draining until the session reports READY again.
func (q *Queue) Start(ctx context.Context) {
	states, unsubscribe := q.session.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	q.logger.Info("Dispatch queue started",
		zap.Int("max_attempts", q.cfg.MaxAttempts),
		zap.Duration("poll_interval", q.cfg.PollInterval))

	awaitingReady := false
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("Dispatch queue stopped")
			return
		case state := <-states:
			if state != domain.SessionReady {
				continue
			}
			awaitingReady = false
			q.logger.Info("Session ready, draining pending notifications")
		case <-q.wake:
		case <-ticker.C:
		}
		if awaitingReady {
			continue
		}
		report := q.Drain(ctx)
		if report.Halted && q.session.CurrentState() == domain.SessionReady {
			awaitingReady = true
			q.logger.Warn("Send refused as not ready, waiting for the session to report ready again")
		}
	}
}

// Drain makes one pass over eligible pending jobs in enqueue order. Jobs still
// waiting on backoff are skipped. The pass stops as soon as the session turns
// out not to be ready.
func (q *Queue) Drain(ctx context.Context) DrainReport {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	defer q.prune()

	var report DrainReport
	if q.session.CurrentState() != domain.SessionReady {
		report.Halted = true
		return report
	}

	for _, id := range q.eligibleIDs() {
		if ctx.Err() != nil {
			break
		}
		outcome, attempted := q.attempt(ctx, id)
		if !attempted {
			continue
		}
		switch outcome {
		case domain.OutcomeDelivered:
			report.Attempted++
			report.Delivered++
		case domain.OutcomeRetry:
			report.Attempted++
			report.Retried++
		case domain.OutcomeFailed:
			report.Attempted++
			report.Failed++
		case domain.OutcomeReturned:
			report.Halted = true
			q.logger.Info("Session not ready, drain halted", zap.String("job_id", id))
			return report
		}
	}
	return report
}

// SendNow enqueues a notification and attempts it immediately. The returned
// error describes the attempt; the job stays queued for retry when the attempt
// did not deliver it.
func (q *Queue) SendNow(ctx context.Context, message, jobID string) (domain.NotificationJob, error) {
	job, _, err := q.Enqueue(ctx, message, jobID)
	if err != nil {
		return job, err
	}
	if job.State == domain.JobStateDelivered {
		return job, nil
	}

	q.drainMu.Lock()
	if state := q.session.CurrentState(); state != domain.SessionReady {
		q.drainMu.Unlock()
		return job, fmt.Errorf("%w: session is %s", domain.ErrNotReady, state)
	}
	q.attempt(ctx, jobID)
	q.drainMu.Unlock()

	snapshot, ok := q.Job(jobID)
	if !ok {
		return job, domain.ErrJobNotFound
	}
	switch snapshot.State {
	case domain.JobStateDelivered:
		return snapshot, nil
	case domain.JobStateFailed:
		return snapshot, fmt.Errorf("%w: %s", domain.ErrTransportFailure, snapshot.FailureReason)
	default:
		if snapshot.LastError != "" {
			return snapshot, fmt.Errorf("%w: %s", domain.ErrTransportFailure, snapshot.LastError)
		}
		return snapshot, fmt.Errorf("%w: notification still pending", domain.ErrNotReady)
	}
}

func (q *Queue) Job(id string) (domain.NotificationJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return domain.NotificationJob{}, false
	}
	return *job, true
}

// Jobs returns snapshots of all tracked jobs in enqueue order.
func (q *Queue) Jobs() []domain.NotificationJob {
	return q.JobsInState("")
}

// JobsInState returns snapshots of jobs in the given state, or all jobs when
// state is empty.
func (q *Queue) JobsInState(state domain.JobState) []domain.NotificationJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.NotificationJob, 0, len(q.order))
	for _, id := range q.order {
		job := q.jobs[id]
		if state != "" && job.State != state {
			continue
		}
		out = append(out, *job)
	}
	return out
}

func (q *Queue) eligibleIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	ids := make([]string, 0, len(q.order))
	for _, id := range q.order {
		if q.jobs[id].Eligible(now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// attempt sends one job once. It reports false when the job was not eligible.
func (q *Queue) attempt(ctx context.Context, id string) (domain.AttemptOutcome, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || !job.Eligible(q.now()) {
		q.mu.Unlock()
		return "", false
	}
	if err := job.MarkSending(q.now()); err != nil {
		q.mu.Unlock()
		q.logger.Error("Failed to mark notification as sending", zap.String("job_id", id), zap.Error(err))
		return "", false
	}
	message := job.Message
	attemptNo := job.AttemptCount + 1
	q.mu.Unlock()

	q.logger.Debug("Sending notification", zap.String("job_id", id), zap.Int("attempt", attemptNo))
	receipt, sendErr := q.sender.Send(ctx, q.cfg.Destination, message)

	q.mu.Lock()
	now := q.now()
	var (
		outcome    domain.AttemptOutcome
		transErr   error
		retryDelay time.Duration
	)
	switch {
	case sendErr == nil:
		outcome = domain.OutcomeDelivered
		transErr = job.MarkDelivered(receipt, now)
		q.live--
	case errors.Is(sendErr, domain.ErrNotReady):
		outcome = domain.OutcomeReturned
		transErr = job.ReturnToPending(now)
	case attemptNo >= q.cfg.MaxAttempts:
		outcome = domain.OutcomeFailed
		transErr = job.MarkFailed(sendErr, now)
		q.live--
	default:
		outcome = domain.OutcomeRetry
		retryDelay = q.cfg.Backoff.NextDelay(attemptNo)
		transErr = job.MarkRetry(sendErr, now.Add(retryDelay), now)
	}
	snapshot := *job
	q.mu.Unlock()

	if transErr != nil {
		q.logger.Error("Invalid notification state transition", zap.String("job_id", id), zap.Error(transErr))
	}

	switch outcome {
	case domain.OutcomeDelivered:
		q.logger.Info("Order notification sent",
			zap.String("job_id", id),
			zap.String("message_id", receipt.MessageID),
			zap.Int("attempt", attemptNo))
		if q.index != nil {
			if err := q.index.MarkDelivered(ctx, id); err != nil {
				q.logger.Warn("Failed to mark notification delivered in index", zap.String("job_id", id), zap.Error(err))
			}
		}
	case domain.OutcomeRetry:
		q.logger.Warn("Notification send failed, will retry",
			zap.String("job_id", id),
			zap.Int("attempt", attemptNo),
			zap.Int("max_attempts", q.cfg.MaxAttempts),
			zap.Duration("retry_in", retryDelay),
			zap.Error(sendErr))
	case domain.OutcomeFailed:
		q.logger.Error("Notification failed permanently",
			zap.String("job_id", id),
			zap.Int("attempts", snapshot.AttemptCount),
			zap.String("reason", snapshot.FailureReason))
	}

	q.record(ctx, snapshot, outcome, attemptNo, receipt, sendErr)
	return outcome, true
}

func (q *Queue) record(ctx context.Context, job domain.NotificationJob, outcome domain.AttemptOutcome, attemptNo int, receipt domain.DeliveryReceipt, sendErr error) {
	if q.recorder == nil {
		return
	}
	entry := &domain.JournalEntry{
		ID:         util.GenerateUUID(),
		JobID:      job.ID,
		Outcome:    outcome,
		Attempt:    attemptNo,
		MessageID:  receipt.MessageID,
		RecordedAt: q.now(),
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	// The attempt is over even if ctx was cancelled mid-send.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := q.recorder.Append(recordCtx, entry); err != nil {
		q.logger.Warn("Failed to journal delivery attempt", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (q *Queue) prune() {
	if q.cfg.Retention <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := q.now().Add(-q.cfg.Retention)
	kept := q.order[:0]
	for _, id := range q.order {
		job := q.jobs[id]
		if job.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			delete(q.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}

func (q *Queue) moveToBack(id string) {
	for i, existing := range q.order {
		if existing == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	q.order = append(q.order, id)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
