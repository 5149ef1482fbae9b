package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/ponselpay/financing-engine/internal/amortization"
	"github.com/ponselpay/financing-engine/internal/domain"
	"github.com/ponselpay/financing-engine/internal/service"
	"github.com/ponselpay/financing-engine/pkg/response"
)

// ActorHeader carries the pre-authorized caller's identity. Authentication
// and authorization live in front of this service.
const ActorHeader = "X-Actor-ID"

type FinancingHandler struct {
	loanService    *service.LoanService
	paymentService *service.PaymentService
	validator      *validator.Validate
}

func NewFinancingHandler(loanService *service.LoanService, paymentService *service.PaymentService) *FinancingHandler {
	return &FinancingHandler{
		loanService:    loanService,
		paymentService: paymentService,
		validator:      validator.New(),
	}
}

type quoteRequest struct {
	PhonePrice     decimal.Decimal `json:"phone_price" validate:"required"`
	DownPaymentPct int             `json:"down_payment_pct" validate:"required"`
	Term           int             `json:"term" validate:"required"`
	DateOfBirth    time.Time       `json:"date_of_birth" validate:"required"`
	StartDate      time.Time       `json:"start_date" validate:"required"`
}

// Quote computes an installment plan without persisting anything.
func (h *FinancingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "missing required fields", err)
		return
	}

	plan, violations := h.loanService.GenerateSchedule(amortization.Input{
		PhonePrice:     req.PhonePrice,
		DownPaymentPct: req.DownPaymentPct,
		Term:           req.Term,
		DateOfBirth:    req.DateOfBirth,
		StartDate:      req.StartDate,
	})
	if len(violations) > 0 {
		response.ValidationFailed(w, violations)
		return
	}

	response.Success(w, plan)
}

// FinalizeLoan creates the loan, its installment ledger, and the collateral device.
func (h *FinancingHandler) FinalizeLoan(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req domain.FinalizeLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "missing required fields", err)
		return
	}

	result, violations, err := h.loanService.FinalizeLoan(r.Context(), &req, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(violations) > 0 {
		response.ValidationFailed(w, violations)
		return
	}

	response.Created(w, result)
}

// GetSchedule returns a loan and its installments.
func (h *FinancingHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	result, err := h.loanService.GetSchedule(r.Context(), loanID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, result)
}

// CancelLoan cancels a loan and its open installments.
func (h *FinancingHandler) CancelLoan(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	if err := h.loanService.CancelLoan(r.Context(), loanID, actor); err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, map[string]string{"status": domain.LoanStatusCancelled})
}

// SubmitPayment records a receipt awaiting verification.
func (h *FinancingHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req domain.SubmitPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "invalid payment request", err)
		return
	}
	if !req.Amount.IsPositive() {
		response.BadRequest(w, "payment amount must be positive", nil)
		return
	}

	payment, err := h.paymentService.SubmitPayment(r.Context(), &req, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Created(w, payment)
}

// VerifyPayment verifies a pending payment and allocates it.
func (h *FinancingHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	paymentID, ok := pathUUID(w, r, "paymentId")
	if !ok {
		return
	}

	result, err := h.paymentService.VerifyPayment(r.Context(), paymentID, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, result)
}

// RejectPayment rejects a payment and reverses its allocations.
func (h *FinancingHandler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	paymentID, ok := pathUUID(w, r, "paymentId")
	if !ok {
		return
	}

	if err := h.paymentService.RejectPayment(r.Context(), paymentID, actor); err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, map[string]string{"verification_status": domain.VerificationRejected})
}

// AllocatePayment re-runs allocation for a verified payment, optionally
// starting at ?from=<sequence>.
func (h *FinancingHandler) AllocatePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	paymentID, ok := pathUUID(w, r, "paymentId")
	if !ok {
		return
	}

	fromSequence := 1
	if from := r.URL.Query().Get("from"); from != "" {
		parsed, err := strconv.Atoi(from)
		if err != nil || parsed < 1 {
			response.BadRequest(w, "from must be a positive sequence number", err)
			return
		}
		fromSequence = parsed
	}

	result, err := h.paymentService.Allocate(r.Context(), paymentID, fromSequence, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, result)
}

// MarkInstallmentPaid settles one installment through the privileged fast path.
func (h *FinancingHandler) MarkInstallmentPaid(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	installmentID, ok := pathUUID(w, r, "installmentId")
	if !ok {
		return
	}

	result, err := h.paymentService.MarkInstallmentPaid(r.Context(), installmentID, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *FinancingHandler) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	id := r.Header.Get(ActorHeader)
	if id == "" {
		response.BadRequest(w, ActorHeader+" header is required", nil)
		return domain.Actor{}, false
	}
	return domain.HumanActor(id), true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}
