package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ponselpay/financing-engine/internal/amortization"
	"github.com/ponselpay/financing-engine/internal/audit"
	"github.com/ponselpay/financing-engine/internal/domain"
	"github.com/ponselpay/financing-engine/internal/repository"
	customError "github.com/ponselpay/financing-engine/pkg/errors"
)

type LoanService struct {
	loanRepo   repository.LoanRepository
	deviceRepo repository.DeviceRepository
	tx         repository.Transactor
	audit      audit.Sink
	logger     *zap.Logger
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	deviceRepo repository.DeviceRepository,
	tx repository.Transactor,
	auditSink audit.Sink,
	logger *zap.Logger,
) *LoanService {
	return &LoanService{
		loanRepo:   loanRepo,
		deviceRepo: deviceRepo,
		tx:         tx,
		audit:      auditSink,
		logger:     logger,
	}
}

// GenerateSchedule quotes an installment plan without persisting anything.
// Policy violations come back as data.
func (s *LoanService) GenerateSchedule(in amortization.Input) (*amortization.Plan, []amortization.Violation) {
	return amortization.Calculate(in)
}

// FinalizeLoan turns an approved application into a loan, its installment
// ledger, and the registered collateral device, all in one transaction.
func (s *LoanService) FinalizeLoan(ctx context.Context, req *domain.FinalizeLoanRequest, actor domain.Actor) (*domain.FinalizeLoanResponse, []amortization.Violation, error) {
	plan, violations := amortization.Calculate(amortization.Input{
		PhonePrice:     req.PhonePrice,
		DownPaymentPct: req.DownPaymentPct,
		Term:           req.TermCount,
		DateOfBirth:    req.DateOfBirth,
		StartDate:      req.StartDate,
	})
	if req.ApprovedCeiling.LessThan(req.PhonePrice) {
		violations = append(violations, amortization.Violation{
			Field:   "approved_ceiling",
			Code:    amortization.CodeCeilingExceeded,
			Message: "approved ceiling must cover the phone price",
		})
	}
	if len(violations) > 0 {
		return nil, violations, nil
	}

	now := time.Now()
	loan := &domain.Loan{
		ID:                uuid.New(),
		TotalAmount:       req.PhonePrice,
		ApprovedCeiling:   req.ApprovedCeiling,
		DownPaymentPct:    req.DownPaymentPct,
		DownPaymentAmount: plan.DownPaymentAmount,
		FinancedAmount:    plan.FinancedAmount,
		InterestRate:      plan.Rate,
		TermCount:         req.TermCount,
		StartDate:         req.StartDate,
		Status:            domain.LoanStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	installments := make([]*domain.Installment, 0, len(plan.Entries))
	for _, entry := range plan.Entries {
		installments = append(installments, &domain.Installment{
			ID:         uuid.New(),
			LoanID:     loan.ID,
			Sequence:   entry.Sequence,
			DueDate:    entry.DueDate,
			Amount:     entry.Amount,
			PaidAmount: decimal.Zero,
			Status:     domain.InstallmentStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	device := &domain.Device{
		ID:        uuid.New(),
		LoanID:    loan.ID,
		Brand:     req.DeviceBrand,
		Model:     req.DeviceModel,
		IMEI:      req.DeviceIMEI,
		CreatedAt: now,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.loanRepo.CreateLoan(ctx, loan); err != nil {
			return customError.WrapDatabaseError(err)
		}
		if err := s.loanRepo.CreateInstallments(ctx, installments); err != nil {
			return customError.WrapDatabaseError(err)
		}
		if err := s.deviceRepo.CreateDevice(ctx, device); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "loan.finalized",
		ResourceType: "loan",
		ResourceID:   loan.ID.String(),
		Detail:       fmt.Sprintf("%d installments of %s", loan.TermCount, plan.InstallmentAmount),
	})
	s.logger.Info("loan finalized",
		zap.String("loan_id", loan.ID.String()),
		zap.Int("term_count", loan.TermCount),
		zap.String("financed_amount", plan.FinancedAmount.String()),
	)

	return &domain.FinalizeLoanResponse{
		Loan:         loan,
		Installments: installments,
		Device:       device,
	}, nil, nil
}

// GetSchedule returns a loan and its installment ledger.
func (s *LoanService) GetSchedule(ctx context.Context, loanID uuid.UUID) (*domain.LoanScheduleResponse, error) {
	loan, err := s.loanRepo.GetLoan(ctx, loanID)
	if err != nil {
		return nil, customError.WrapLoanNotFound(loanID)
	}

	installments, err := s.loanRepo.InstallmentsByLoan(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.LoanScheduleResponse{Loan: loan, Installments: installments}, nil
}

// CancelLoan cancels a loan and its open installments. Paid loans stay paid.
func (s *LoanService) CancelLoan(ctx context.Context, loanID uuid.UUID, actor domain.Actor) error {
	loan, err := s.loanRepo.GetLoan(ctx, loanID)
	if err != nil {
		return customError.WrapLoanNotFound(loanID)
	}

	switch loan.Status {
	case domain.LoanStatusCancelled:
		return nil
	case domain.LoanStatusPaid:
		return customError.WrapLoanNotCancellable(loanID, loan.Status)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.loanRepo.CancelOpenInstallments(ctx, loanID); err != nil {
			return customError.WrapDatabaseError(err)
		}
		if err := s.loanRepo.UpdateLoanStatus(ctx, loanID, domain.LoanStatusCancelled); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "loan.cancelled",
		ResourceType: "loan",
		ResourceID:   loanID.String(),
	})

	return nil
}
