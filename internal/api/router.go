package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dentaflow/clinic/internal/appointment"
	"github.com/dentaflow/clinic/internal/auth"
	"github.com/dentaflow/clinic/internal/availability"
	"github.com/dentaflow/clinic/internal/billing"
	"github.com/dentaflow/clinic/internal/catalog"
	"github.com/dentaflow/clinic/internal/payment"
	"github.com/dentaflow/clinic/internal/queue"
	redisclient "github.com/dentaflow/clinic/internal/redis"
)

type RouterConfig struct {
	Catalog      *catalog.Catalog
	Availability *availability.Calculator
	Appointments *appointment.Service
	Queue        *queue.Engine
	Billing      *billing.Service
	Payments     *payment.Service
	Feed         *redisclient.Feed

	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret []byte
	Env       string
	Version   string
	Logger    zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Public reads
	r.Get("/services", listServicesHandler(cfg.Catalog))
	r.Get("/availability", availabilityHandler(cfg.Availability))
	r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
	r.Get("/queue/today", listTodayQueueHandler(cfg.Queue))
	r.Get("/queue/feed", queueFeedHandler(cfg.Feed))
	r.Get("/invoices", listInvoicesHandler(cfg.Billing))
	r.Get("/invoices/{id}", getInvoiceHandler(cfg.Billing))

	// Authenticated writes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.JWTSecret))

		r.Post("/appointments", createAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/duration", setDurationHandler(cfg.Appointments))

		r.Post("/queue", enqueueHandler(cfg.Queue))
		r.Post("/queue/call-next", callNextHandler(cfg.Queue))
		r.Post("/queue/{id}/call", callSpecificHandler(cfg.Queue))
		r.Post("/queue/{id}/complete", completeQueueHandler(cfg.Queue))
		r.Post("/queue/{id}/cancel", cancelQueueHandler(cfg.Queue))
		r.Post("/queue/{id}/invoice", generateInvoiceHandler(cfg.Queue, cfg.Billing))

		r.Post("/payment-confirmations", submitConfirmationHandler(cfg.Payments))
		r.Post("/payment-confirmations/{id}/resolve", resolveConfirmationHandler(cfg.Payments))
		r.Get("/payment-confirmations/pending", listPendingConfirmationsHandler(cfg.Payments))
	})

	return r
}
