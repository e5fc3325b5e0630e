package webhook_http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/app/notifications"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain/event"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/session"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/util"
)

const maxBodyBytes = 1 << 20

type Dispatcher interface {
	Enqueue(ctx context.Context, message, jobID string) (domain.NotificationJob, bool, error)
	SendNow(ctx context.Context, message, jobID string) (domain.NotificationJob, error)
	Job(id string) (domain.NotificationJob, bool)
	JobsInState(state domain.JobState) []domain.NotificationJob
}

type SessionController interface {
	Status() session.Status
	Connect(ctx context.Context) error
}

type JournalReader interface {
	ListByJob(ctx context.Context, jobID string) ([]domain.JournalEntry, error)
}

type WebhookHandler struct {
	dispatcher Dispatcher
	session    SessionController
	journal    JournalReader
	logger     *zap.Logger
}

func NewWebhookHandler(d Dispatcher, s SessionController, j JournalReader, l *zap.Logger) *WebhookHandler {
	return &WebhookHandler{dispatcher: d, session: s, journal: j, logger: l}
}

type NotificationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// OrderCreatedHandler accepts a Shopify orders/create webhook and queues the
// WhatsApp notification. It answers as soon as the job is queued.
func (h *WebhookHandler) OrderCreatedHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Webhook body too large", zap.Int64("limit", tooLarge.Limit))
			writeJSON(w, http.StatusRequestEntityTooLarge, NotificationResponse{Message: "Request body too large"}, h.logger)
			return
		}
		h.logger.Error("Failed to read webhook body", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, NotificationResponse{Message: "Error processing order notification"}, h.logger)
		return
	}

	evt, err := event.DecodeOrderCreated(body)
	if err != nil {
		h.logger.Error("Rejecting malformed order webhook", zap.Error(err), zap.Int("body_bytes", len(body)))
		writeJSON(w, http.StatusInternalServerError, NotificationResponse{Message: "Error processing order notification"}, h.logger)
		return
	}

	notice := notifications.Normalize(evt)
	jobID := notifications.JobID(notice, body)
	message := notifications.Format(notice)

	h.logger.Info("New order received", zap.String("order_id", notice.OrderID), zap.String("job_id", jobID))

	job, created, err := h.dispatcher.Enqueue(r.Context(), message, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrQueueFull) {
			h.logger.Warn("Notification rejected, queue full", zap.String("job_id", jobID))
		} else {
			h.logger.Error("Failed to queue notification", zap.String("job_id", jobID), zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, NotificationResponse{Message: "Failed to queue WhatsApp notification", JobID: jobID}, h.logger)
		return
	}

	msg := "Notification queued"
	if !created {
		msg = "Notification already " + stateWord(job.State)
	}
	writeJSON(w, http.StatusOK, NotificationResponse{Success: true, Message: msg, JobID: jobID}, h.logger)
}

func (h *WebhookHandler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  "Server is running",
		Message: "Shopify to WhatsApp notification service is active",
	}, h.logger)
}

// TestMessageHandler sends a fixed test message right away.
func (h *WebhookHandler) TestMessageHandler(w http.ResponseWriter, r *http.Request) {
	jobID := util.PrefixedID("test")
	job, err := h.dispatcher.SendNow(r.Context(), notifications.TestMessage, jobID)
	if err != nil {
		h.logger.Warn("Test message not sent", zap.String("job_id", jobID), zap.String("state", string(job.State)), zap.Error(err))
		writeJSON(w, http.StatusOK, NotificationResponse{Message: "Failed to send test message", JobID: jobID}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, NotificationResponse{Success: true, Message: "Test message sent!", JobID: jobID}, h.logger)
}

func (h *WebhookHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	state := domain.JobState(r.URL.Query().Get("state"))
	switch state {
	case "", domain.JobStatePending, domain.JobStateSending, domain.JobStateDelivered, domain.JobStateFailed:
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unknown job state " + string(state)}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, h.dispatcher.JobsInState(state), h.logger)
}

func (h *WebhookHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := h.dispatcher.Job(jobID)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: domain.ErrJobNotFound.Error()}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, job, h.logger)
}

func (h *WebhookHandler) JobJournalHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	entries, err := h.journal.ListByJob(r.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to read delivery journal", zap.String("job_id", jobID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"}, h.logger)
		return
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries, h.logger)
}

func (h *WebhookHandler) SessionStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status(), h.logger)
}

// ConnectSessionHandler asks the transport to pair again, e.g. after the
// phone logged the session out.
func (h *WebhookHandler) ConnectSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Connect(r.Context()); err != nil {
		switch {
		case errors.Is(err, domain.ErrAuthFailure):
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()}, h.logger)
		case errors.Is(err, session.ErrTornDown):
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()}, h.logger)
		default:
			h.logger.Error("Failed to reconnect session", zap.Error(err))
			writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()}, h.logger)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, h.session.Status(), h.logger)
}

func stateWord(state domain.JobState) string {
	switch state {
	case domain.JobStateDelivered:
		return "delivered"
	case domain.JobStateSending:
		return "sending"
	default:
		return "queued"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
