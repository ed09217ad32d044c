package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"

	"github.com/serantau/payflow/internal/allocation"
	"github.com/serantau/payflow/internal/disbursement"
	"github.com/serantau/payflow/internal/ingestion"
	"github.com/serantau/payflow/internal/payment"
	"github.com/serantau/payflow/internal/reconciliation"
	"github.com/serantau/payflow/internal/repository"
	"github.com/serantau/payflow/internal/settlement"
)

// RouterConfig carries the router's collaborators. Redis is optional:
// when nil, the response-cache idempotency middleware is not mounted and
// idempotency relies on the store-level key constraint alone.
type RouterConfig struct {
	Payments       *payment.Manager
	Disbursements  *disbursement.Manager
	Settlements    *settlement.Service
	Engine         *allocation.Engine
	PaymentRepo    *repository.PaymentRepo
	Importer       *ingestion.Service
	Verifier       *reconciliation.Service
	Redis          *redis.Client
	IdempotencyTTL time.Duration
}

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(cfg RouterConfig) http.Handler {
	h := &Handlers{
		payments:      cfg.Payments,
		disbursements: cfg.Disbursements,
		settlements:   cfg.Settlements,
		engine:        cfg.Engine,
		paymentRepo:   cfg.PaymentRepo,
		importer:      cfg.Importer,
		verifier:      cfg.Verifier,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))
	if cfg.Redis != nil {
		ttl := cfg.IdempotencyTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		r.Use(Idempotency(cfg.Redis, ttl))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Payments.
		r.Post("/payments", h.CreatePayment)
		r.Post("/payments/import", h.ImportPayments)
		r.Get("/payments", h.ListPayments)
		r.Get("/payments/{id}", h.GetPayment)
		r.Get("/payments/{id}/status", h.GetPaymentStatus)
		r.Post("/payments/{id}/activate", h.ActivatePayment)
		r.Post("/payments/{id}/execute", h.ExecutePayment)
		r.Post("/payments/{id}/retry", h.RetryPayment)
		r.Post("/payments/{id}/cancel", h.CancelPayment)
		r.Post("/payments/{id}/reverse", h.ReversePayment)

		// Allocations.
		r.Post("/allocations/preview", h.PreviewAllocation)
		r.Post("/allocations/validate", h.ValidateAllocation)
		r.Post("/allocations", h.Allocate)

		// Disbursements.
		r.Post("/disbursements", h.CreateDisbursement)
		r.Get("/disbursements/pending-approvals", h.ListPendingApprovals)
		r.Get("/disbursements/ready-for-processing", h.ListReadyForProcessing)
		r.Get("/disbursements/{id}", h.GetDisbursement)
		r.Post("/disbursements/{id}/submit", h.SubmitDisbursement)
		r.Post("/disbursements/{id}/approve", h.ApproveDisbursement)
		r.Post("/disbursements/{id}/reject", h.RejectDisbursement)
		r.Post("/disbursements/{id}/process", h.ProcessDisbursement)
		r.Post("/disbursements/{id}/cancel", h.CancelDisbursement)
		r.Post("/disbursements/{id}/schedule", h.ScheduleDisbursement)

		// Settlement batches.
		r.Post("/settlement-batches", h.OpenBatch)
		r.Get("/settlement-batches/{id}", h.GetBatch)
		r.Post("/settlement-batches/{id}/payments", h.AddBatchPayment)
		r.Post("/settlement-batches/{id}/close", h.CloseBatch)
		r.Post("/settlement-batches/{id}/reconcile", h.ReconcileBatch)
		r.Get("/settlement-batches/{id}/verification", h.VerifyBatch)

		// Dashboard.
		r.Get("/dashboard", h.GetDashboard)
	})

	return r
}
