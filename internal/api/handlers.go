package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/serantau/payflow/internal/allocation"
	"github.com/serantau/payflow/internal/disbursement"
	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/ingestion"
	"github.com/serantau/payflow/internal/money"
	"github.com/serantau/payflow/internal/payment"
	"github.com/serantau/payflow/internal/reconciliation"
	"github.com/serantau/payflow/internal/repository"
	"github.com/serantau/payflow/internal/settlement"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	payments      *payment.Manager
	disbursements *disbursement.Manager
	settlements   *settlement.Service
	engine        *allocation.Engine
	paymentRepo   *repository.PaymentRepo
	importer      *ingestion.Service
	verifier      *reconciliation.Service
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the typed error taxonomy onto HTTP statuses:
// missing entities are 404, state and duplicate conflicts 409, validation
// failures 422, anything else 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		paymentNotFound      *domain.PaymentNotFoundError
		disbursementNotFound *domain.DisbursementNotFoundError
		batchNotFound        *domain.BatchNotFoundError
		duplicate            *domain.DuplicatePaymentError
		paymentStatus        *domain.InvalidPaymentStatusError
		disbursementStatus   *domain.InvalidDisbursementStatusError
		batchStatus          *domain.InvalidBatchStatusError
		validation           *domain.PaymentValidationError
		method               *domain.InvalidPaymentMethodError
		recipient            *domain.InvalidRecipientInfoError
		alloc                *domain.AllocationError
		mismatch             *money.CurrencyMismatchError
	)

	switch {
	case errors.As(err, &paymentNotFound), errors.As(err, &disbursementNotFound),
		errors.As(err, &batchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &duplicate):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":       err.Error(),
			"existing_id": duplicate.ExistingID,
		})
	case errors.As(err, &paymentStatus), errors.As(err, &disbursementStatus),
		errors.As(err, &batchStatus), errors.Is(err, domain.ErrPaymentAlreadyBatched):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &validation), errors.As(err, &method),
		errors.As(err, &recipient), errors.As(err, &alloc), errors.As(err, &mismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil
		}
	}
	return &t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// --- payments ---

type createPaymentRequest struct {
	TenantID       string            `json:"tenant_id"`
	Reference      string            `json:"reference"`
	Direction      string            `json:"direction"`
	Amount         money.Money       `json:"amount"`
	MethodType     string            `json:"method_type"`
	PayerID        string            `json:"payer_id"`
	PayeeID        string            `json:"payee_id"`
	Metadata       map[string]string `json:"metadata"`
	IdempotencyKey string            `json:"idempotency_key"`
	Draft          bool              `json:"draft"`
}

func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.payments.Create(payment.CreateParams{
		TenantID:       req.TenantID,
		Reference:      req.Reference,
		Direction:      domain.PaymentDirection(req.Direction),
		Amount:         req.Amount,
		MethodType:     domain.PaymentMethodType(req.MethodType),
		PayerID:        req.PayerID,
		PayeeID:        req.PayeeID,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
		Draft:          req.Draft,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.payments.FindOrFail(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.payments.GetStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.PaymentFilter{
		TenantID:  q.Get("tenant_id"),
		Status:    q.Get("status"),
		Direction: q.Get("direction"),
		Currency:  q.Get("currency"),
		From:      parseTime(q.Get("from")),
		To:        parseTime(q.Get("to")),
		Page:      parseIntDefault(q.Get("page"), 1),
		Limit:     parseIntDefault(q.Get("limit"), 50),
	}

	payments, total, err := h.paymentRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payments": payments,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	})
}

func (h *Handlers) ImportPayments(w http.ResponseWriter, r *http.Request) {
	// Accept multipart form.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	format := r.FormValue("format")
	if format == "" {
		writeError(w, http.StatusBadRequest, "format is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return
	}

	result, err := h.importer.ImportPayments(data, format)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) ActivatePayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.payments.Activate(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) ExecutePayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.payments.Execute(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) RetryPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.payments.Retry(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) CancelPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason      string `json:"reason"`
		CancelledBy string `json:"cancelled_by"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.payments.Cancel(chi.URLParam(r, "id"), req.Reason, req.CancelledBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) ReversePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount *money.Money `json:"amount"`
		Reason string       `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.payments.Reverse(chi.URLParam(r, "id"), req.Amount, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- allocations ---

// allocationDocument is the inline document payload accepted by the
// allocation endpoints. It satisfies allocation.Document.
type allocationDocument struct {
	ID          string      `json:"id"`
	Outstanding money.Money `json:"outstanding_amount"`
	Original    money.Money `json:"original_amount"`
	DocDate     time.Time   `json:"document_date"`
	Due         time.Time   `json:"due_date"`
}

func (d allocationDocument) DocumentID() string             { return d.ID }
func (d allocationDocument) OutstandingAmount() money.Money { return d.Outstanding }
func (d allocationDocument) OriginalAmount() money.Money    { return d.Original }
func (d allocationDocument) DocumentDate() time.Time        { return d.DocDate }
func (d allocationDocument) DueDate() time.Time             { return d.Due }

type allocationRequest struct {
	Payment   money.Money            `json:"payment"`
	Method    string                 `json:"method"`
	Documents []allocationDocument   `json:"documents"`
	Manual    map[string]money.Money `json:"manual_allocations"`
}

func (h *Handlers) runAllocation(w http.ResponseWriter, r *http.Request, preview bool) {
	var req allocationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	docs := make([]allocation.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = d
	}

	var result *allocation.Result
	var err error
	if preview {
		result, err = h.engine.Preview(req.Payment, docs, allocation.Method(req.Method), req.Manual)
	} else {
		result, err = h.engine.Allocate(req.Payment, docs, allocation.Method(req.Method), req.Manual)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) PreviewAllocation(w http.ResponseWriter, r *http.Request) {
	h.runAllocation(w, r, true)
}

func (h *Handlers) Allocate(w http.ResponseWriter, r *http.Request) {
	h.runAllocation(w, r, false)
}

func (h *Handlers) ValidateAllocation(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	docs := make([]allocation.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = d
	}

	violations := h.engine.Validate(req.Payment, docs, allocation.Method(req.Method), req.Manual)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":      len(violations) == 0,
		"violations": violations,
	})
}

// --- disbursements ---

type createDisbursementRequest struct {
	TenantID          string               `json:"tenant_id"`
	Amount            money.Money          `json:"amount"`
	Recipient         domain.RecipientInfo `json:"recipient"`
	SourceDocumentIDs []string             `json:"source_document_ids"`
	ScheduledDate     *time.Time           `json:"scheduled_date"`
}

func (h *Handlers) CreateDisbursement(w http.ResponseWriter, r *http.Request) {
	var req createDisbursementRequest
	if !decodeBody(w, r, &req) {
		return
	}

	d, err := h.disbursements.Create(disbursement.CreateParams{
		TenantID:          req.TenantID,
		Amount:            req.Amount,
		Recipient:         req.Recipient,
		SourceDocumentIDs: req.SourceDocumentIDs,
		ScheduledDate:     req.ScheduledDate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

func (h *Handlers) GetDisbursement(w http.ResponseWriter, r *http.Request) {
	d, err := h.disbursements.FindOrFail(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) SubmitDisbursement(w http.ResponseWriter, r *http.Request) {
	d, err := h.disbursements.Submit(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) ApproveDisbursement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApproverID string `json:"approver_id"`
		Comment    string `json:"comment"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	d, err := h.disbursements.Approve(chi.URLParam(r, "id"), req.ApproverID, req.Comment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) RejectDisbursement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RejectorID string `json:"rejector_id"`
		Reason     string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	d, err := h.disbursements.Reject(chi.URLParam(r, "id"), req.RejectorID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) ProcessDisbursement(w http.ResponseWriter, r *http.Request) {
	d, err := h.disbursements.Process(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) CancelDisbursement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActorID string `json:"actor_id"`
		Reason  string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	d, err := h.disbursements.Cancel(chi.URLParam(r, "id"), req.ActorID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) ScheduleDisbursement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScheduledDate time.Time `json:"scheduled_date"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	d, err := h.disbursements.Schedule(chi.URLParam(r, "id"), req.ScheduledDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	queue, err := h.disbursements.PendingApprovals(tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"disbursements": queue,
		"total":         len(queue),
	})
}

func (h *Handlers) ListReadyForProcessing(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	queue, err := h.disbursements.ReadyForProcessing(tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"disbursements": queue,
		"total":         len(queue),
	})
}

// --- settlement batches ---

func (h *Handlers) OpenBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currency"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	b, err := h.settlements.Open(req.Currency)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handlers) GetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.settlements.FindOrFail(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ids, err := h.settlements.PaymentIDs(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"batch":       b,
		"payment_ids": ids,
	})
}

func (h *Handlers) AddBatchPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentID string `json:"payment_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	b, err := h.settlements.AddPayment(chi.URLParam(r, "id"), req.PaymentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) CloseBatch(w http.ResponseWriter, r *http.Request) {
	b, err := h.settlements.Close(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) ReconcileBatch(w http.ResponseWriter, r *http.Request) {
	b, err := h.settlements.Reconcile(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) VerifyBatch(w http.ResponseWriter, r *http.Request) {
	report, err := h.verifier.VerifyBatch(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- dashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	byStatus, err := h.paymentRepo.GetVolumeByStatus(tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	byCurrency, err := h.paymentRepo.GetVolumeByCurrency(tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var total, completed, failed int
	for _, sv := range byStatus {
		total += sv.Count
		switch sv.Status {
		case string(domain.PaymentStatusCompleted):
			completed = sv.Count
		case string(domain.PaymentStatusFailed):
			failed = sv.Count
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payments": map[string]int{
			"total":     total,
			"completed": completed,
			"failed":    failed,
		},
		"by_status":   byStatus,
		"by_currency": byCurrency,
	})
}
