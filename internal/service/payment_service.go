package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ponselpay/financing-engine/internal/audit"
	"github.com/ponselpay/financing-engine/internal/domain"
	"github.com/ponselpay/financing-engine/internal/notification"
	"github.com/ponselpay/financing-engine/internal/repository"
	customError "github.com/ponselpay/financing-engine/pkg/errors"
)

// AllocationResult reports what one allocation run did. UnallocatedAmount
// is the overage left after every target installment was satisfied; it is
// the caller's to refund or carry forward, never silently dropped.
type AllocationResult struct {
	Payment           *domain.Payment             `json:"payment"`
	Allocations       []*domain.PaymentAllocation `json:"allocations"`
	UnallocatedAmount decimal.Decimal             `json:"unallocated_amount"`
}

type PaymentService struct {
	loanRepo    repository.LoanRepository
	paymentRepo repository.PaymentRepository
	tx          repository.Transactor
	audit       audit.Sink
	notifier    notification.Dispatcher
	logger      *zap.Logger
}

func NewPaymentService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	tx repository.Transactor,
	auditSink audit.Sink,
	notifier notification.Dispatcher,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		loanRepo:    loanRepo,
		paymentRepo: paymentRepo,
		tx:          tx,
		audit:       auditSink,
		notifier:    notifier,
		logger:      logger,
	}
}

// SubmitPayment records a money receipt awaiting verification. Nothing is
// allocated until a human verifies it.
func (s *PaymentService) SubmitPayment(ctx context.Context, req *domain.SubmitPaymentRequest, actor domain.Actor) (*domain.Payment, error) {
	if _, err := s.loanRepo.GetLoan(ctx, req.LoanID); err != nil {
		return nil, customError.WrapLoanNotFound(req.LoanID)
	}

	now := time.Now()
	payment := &domain.Payment{
		ID:                 uuid.New(),
		LoanID:             req.LoanID,
		Amount:             req.Amount,
		PaymentDate:        req.PaymentDate,
		Method:             req.Method,
		VerificationStatus: domain.VerificationPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.paymentRepo.CreatePayment(ctx, payment); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.audit.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "payment.submitted",
		ResourceType: "payment",
		ResourceID:   payment.ID.String(),
		Detail:       fmt.Sprintf("%s via %s", payment.Amount, payment.Method),
	})

	return payment, nil
}

// Allocate spreads an already-verified payment across the loan's unpaid
// installments, starting at fromSequence and walking forward. The whole
// run, including installment and loan status recomputation, is one
// transaction.
func (s *PaymentService) Allocate(ctx context.Context, paymentID uuid.UUID, fromSequence int, actor domain.Actor) (*AllocationResult, error) {
	payment, err := s.paymentRepo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, customError.WrapPaymentNotFound(paymentID)
	}
	if !payment.IsVerified() {
		return nil, customError.WrapPaymentNotVerified(paymentID)
	}

	var result *AllocationResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var txErr error
		result, txErr = s.allocateLocked(ctx, payment, fromSequence)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.recordAllocations(ctx, result, actor)
	return result, nil
}

// VerifyPayment marks a pending payment as verified and immediately
// allocates it from the loan's first unpaid installment forward, atomically.
func (s *PaymentService) VerifyPayment(ctx context.Context, paymentID uuid.UUID, actor domain.Actor) (*AllocationResult, error) {
	payment, err := s.paymentRepo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, customError.WrapPaymentNotFound(paymentID)
	}
	if payment.VerificationStatus != domain.VerificationPending {
		return nil, customError.WrapPaymentNotPending(paymentID, payment.VerificationStatus)
	}

	now := time.Now()
	actorRef := actor.String()

	var result *AllocationResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.paymentRepo.UpdateVerification(ctx, paymentID, domain.VerificationVerified, actorRef, now); err != nil {
			return customError.WrapDatabaseError(err)
		}

		payment.VerificationStatus = domain.VerificationVerified
		payment.VerifiedBy = &actorRef
		payment.VerifiedAt = &now

		var txErr error
		result, txErr = s.allocateLocked(ctx, payment, 1)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.recordAllocations(ctx, result, actor)
	s.audit.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "payment.verified",
		ResourceType: "payment",
		ResourceID:   paymentID.String(),
	})
	s.notify(ctx, notification.EventPaymentVerified, payment)

	return result, nil
}

// RejectPayment downgrades a payment to rejected and reverses any effect
// its allocations had on the ledger.
func (s *PaymentService) RejectPayment(ctx context.Context, paymentID uuid.UUID, actor domain.Actor) error {
	payment, err := s.paymentRepo.GetPayment(ctx, paymentID)
	if err != nil {
		return customError.WrapPaymentNotFound(paymentID)
	}
	if payment.VerificationStatus == domain.VerificationRejected {
		return nil
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.paymentRepo.UpdateVerification(ctx, paymentID, domain.VerificationRejected, actor.String(), time.Now()); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return s.reverseLocked(ctx, payment)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "payment.rejected",
		ResourceType: "payment",
		ResourceID:   paymentID.String(),
	})
	s.notify(ctx, notification.EventPaymentRejected, payment)

	return nil
}

// ReverseOnReject recomputes every installment a rejected payment had
// touched from its remaining verified allocations. Running it again after
// it has already run changes nothing.
func (s *PaymentService) ReverseOnReject(ctx context.Context, paymentID uuid.UUID) error {
	payment, err := s.paymentRepo.GetPayment(ctx, paymentID)
	if err != nil {
		return customError.WrapPaymentNotFound(paymentID)
	}
	if payment.VerificationStatus != domain.VerificationRejected {
		return customError.WrapPaymentNotPending(paymentID, payment.VerificationStatus)
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.reverseLocked(ctx, payment)
	})
}

// MarkInstallmentPaid is the privileged fast path: it settles one
// installment's remaining amount with a payment that is born verified,
// flowing through the same allocation machinery as everything else. The
// installment is read under a row lock inside the transaction, so the
// settled amount is computed from what is actually there at commit time.
func (s *PaymentService) MarkInstallmentPaid(ctx context.Context, installmentID uuid.UUID, actor domain.Actor) (*AllocationResult, error) {
	now := time.Now()
	actorRef := actor.String()

	var result *AllocationResult
	var remaining decimal.Decimal
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inst, err := s.loanRepo.GetInstallmentForUpdate(ctx, installmentID)
		if err != nil {
			return customError.WrapInstallmentNotFound(installmentID)
		}

		remaining = inst.Remaining()
		if !remaining.IsPositive() {
			return customError.WrapInstallmentSettled(installmentID)
		}

		payment := &domain.Payment{
			ID:                 uuid.New(),
			LoanID:             inst.LoanID,
			Amount:             remaining,
			PaymentDate:        now,
			Method:             domain.PaymentMethodAdjustment,
			VerificationStatus: domain.VerificationVerified,
			VerifiedBy:         &actorRef,
			VerifiedAt:         &now,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.paymentRepo.CreatePayment(ctx, payment); err != nil {
			return customError.WrapDatabaseError(err)
		}

		var txErr error
		result, txErr = s.applyAllocations(ctx, payment, []*domain.Installment{inst})
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.recordAllocations(ctx, result, actor)
	s.audit.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "installment.marked_paid",
		ResourceType: "installment",
		ResourceID:   installmentID.String(),
		Detail:       fmt.Sprintf("settled %s", remaining),
	})
	s.notify(ctx, notification.EventPaymentVerified, result.Payment)

	return result, nil
}

// allocateLocked runs the allocation walk for a verified payment inside
// the caller's transaction, targeting unpaid installments from the given
// sequence forward.
func (s *PaymentService) allocateLocked(ctx context.Context, payment *domain.Payment, fromSequence int) (*AllocationResult, error) {
	installments, err := s.loanRepo.UnpaidInstallmentsFrom(ctx, payment.LoanID, fromSequence)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return s.applyAllocations(ctx, payment, installments)
}

func (s *PaymentService) applyAllocations(ctx context.Context, payment *domain.Payment, installments []*domain.Installment) (*AllocationResult, error) {
	for _, inst := range installments {
		if inst.LoanID != payment.LoanID {
			return nil, customError.WrapLoanMismatch(payment.ID, inst.ID)
		}
	}

	// Conservation guard: never hand out more than the payment still has.
	allocated, err := s.paymentRepo.AllocatedTotal(ctx, payment.ID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	available := payment.Amount.Sub(allocated)
	if available.IsNegative() {
		return nil, customError.WrapOverAllocation(payment.ID)
	}

	planned, unallocated := domain.PlanAllocations(available, installments)

	now := time.Now()
	allocations := make([]*domain.PaymentAllocation, 0, len(planned))
	for _, p := range planned {
		if p.NewPaid.GreaterThan(p.Installment.Amount) {
			return nil, customError.WrapOverAllocation(p.Installment.ID)
		}

		allocation := &domain.PaymentAllocation{
			ID:            uuid.New(),
			PaymentID:     payment.ID,
			InstallmentID: p.Installment.ID,
			Amount:        p.Amount,
			CreatedAt:     now,
		}
		if err := s.paymentRepo.CreateAllocation(ctx, allocation); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}

		status := domain.DeriveInstallmentStatus(p.NewPaid, p.Installment.Amount, p.Installment.DueDate, now)
		if err := s.loanRepo.UpdateInstallmentProgress(ctx, p.Installment.ID, p.NewPaid, status); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}

		allocations = append(allocations, allocation)
	}

	if len(allocations) > 0 {
		if err := recomputeLoanStatus(ctx, s.loanRepo, payment.LoanID); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
	}

	return &AllocationResult{
		Payment:           payment,
		Allocations:       allocations,
		UnallocatedAmount: unallocated,
	}, nil
}

// reverseLocked deletes the payment's allocations and rebuilds each touched
// installment's paid amount from the verified allocations that remain.
func (s *PaymentService) reverseLocked(ctx context.Context, payment *domain.Payment) error {
	allocations, err := s.paymentRepo.AllocationsByPayment(ctx, payment.ID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if len(allocations) == 0 {
		return nil
	}

	if err := s.paymentRepo.DeleteAllocationsByPayment(ctx, payment.ID); err != nil {
		return customError.WrapDatabaseError(err)
	}

	now := time.Now()
	touched := make(map[uuid.UUID]struct{}, len(allocations))
	for _, allocation := range allocations {
		if _, seen := touched[allocation.InstallmentID]; seen {
			continue
		}
		touched[allocation.InstallmentID] = struct{}{}

		inst, err := s.loanRepo.GetInstallmentForUpdate(ctx, allocation.InstallmentID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}

		verified, err := s.paymentRepo.VerifiedAllocationSum(ctx, inst.ID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}

		status := inst.Status
		if status != domain.InstallmentStatusCancelled {
			status = domain.DeriveInstallmentStatus(verified, inst.Amount, inst.DueDate, now)
		}
		if err := s.loanRepo.UpdateInstallmentProgress(ctx, inst.ID, verified, status); err != nil {
			return customError.WrapDatabaseError(err)
		}
	}

	if err := recomputeLoanStatus(ctx, s.loanRepo, payment.LoanID); err != nil {
		return customError.WrapDatabaseError(err)
	}

	s.logger.Info("payment allocations reversed",
		zap.String("payment_id", payment.ID.String()),
		zap.Int("installments_touched", len(touched)),
	)

	return nil
}

func (s *PaymentService) recordAllocations(ctx context.Context, result *AllocationResult, actor domain.Actor) {
	for _, allocation := range result.Allocations {
		s.audit.Record(ctx, audit.Entry{
			Actor:        actor,
			Action:       "payment.allocated",
			ResourceType: "installment",
			ResourceID:   allocation.InstallmentID.String(),
			Detail:       fmt.Sprintf("%s from payment %s", allocation.Amount, allocation.PaymentID),
		})
	}
	if result.UnallocatedAmount.IsPositive() {
		s.logger.Warn("payment overage left unallocated",
			zap.String("payment_id", result.Payment.ID.String()),
			zap.String("unallocated_amount", result.UnallocatedAmount.String()),
		)
	}
}

func (s *PaymentService) notify(ctx context.Context, eventType string, payment *domain.Payment) {
	paymentID := payment.ID
	s.notifier.Dispatch(ctx, notification.Event{
		Type:      eventType,
		LoanID:    payment.LoanID,
		PaymentID: &paymentID,
		Detail:    payment.Amount.String(),
	})
}
