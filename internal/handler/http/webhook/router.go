package webhook_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const OrderCreatedPath = "/webhook/orders/create"

// RegisterRoutes mounts the webhook, liveness and admin routes. journal may be
// nil, in which case the journal route is not mounted.
func RegisterRoutes(r chi.Router, d Dispatcher, s SessionController, j JournalReader, l *zap.Logger) {
	handler := NewWebhookHandler(d, s, j, l.With(zap.String("component", "WebhookHTTPHandler")))

	r.Get("/", handler.LivenessHandler)
	r.Get("/test", handler.TestMessageHandler)
	r.Post(OrderCreatedPath, handler.OrderCreatedHandler)

	r.Route("/admin", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", handler.ListJobsHandler)
			r.Get("/{jobID}", handler.GetJobHandler)
			if j != nil {
				r.Get("/{jobID}/journal", handler.JobJournalHandler)
			}
		})
		r.Get("/session", handler.SessionStatusHandler)
		r.Post("/session/connect", handler.ConnectSessionHandler)
	})
}
