package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ponselpay/financing-engine/internal/domain"
	"github.com/ponselpay/financing-engine/internal/repository"
)

// recomputeLoanStatus re-derives a loan's status from its installment set
// and persists it when it changed. Draft and cancelled loans are left
// alone: those statuses are set explicitly, never derived.
func recomputeLoanStatus(ctx context.Context, loanRepo repository.LoanRepository, loanID uuid.UUID) error {
	loan, err := loanRepo.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}

	if loan.Status == domain.LoanStatusDraft || loan.Status == domain.LoanStatusCancelled {
		return nil
	}

	installments, err := loanRepo.InstallmentsByLoan(ctx, loanID)
	if err != nil {
		return err
	}

	derived := domain.DeriveLoanStatus(installments)
	if derived == loan.Status {
		return nil
	}

	return loanRepo.UpdateLoanStatus(ctx, loanID, derived)
}
