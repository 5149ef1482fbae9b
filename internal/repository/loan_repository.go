package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ponselpay/financing-engine/internal/domain"
)

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (id, total_amount, approved_ceiling, down_payment_pct, down_payment_amount,
			financed_amount, interest_rate, term_count, start_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		loan.ID,
		loan.TotalAmount,
		loan.ApprovedCeiling,
		loan.DownPaymentPct,
		loan.DownPaymentAmount,
		loan.FinancedAmount,
		loan.InterestRate,
		loan.TermCount,
		loan.StartDate,
		loan.Status,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return err
}

func (r *loanRepository) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := `
		SELECT id, total_amount, approved_ceiling, down_payment_pct, down_payment_amount,
			financed_amount, interest_rate, term_count, start_date, status, created_at, updated_at
		FROM loans
		WHERE id = $1
	`

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &loan, query, id); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) UpdateLoanStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `
		UPDATE loans
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	_, err := ext(ctx, r.db).ExecContext(ctx, query, id, status, time.Now())
	return err
}

func (r *loanRepository) CreateInstallments(ctx context.Context, installments []*domain.Installment) error {
	query := `
		INSERT INTO installments (id, loan_id, sequence, due_date, amount, paid_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	e := ext(ctx, r.db)
	for _, inst := range installments {
		_, err := e.ExecContext(ctx, query,
			inst.ID,
			inst.LoanID,
			inst.Sequence,
			inst.DueDate,
			inst.Amount,
			inst.PaidAmount,
			inst.Status,
			inst.CreatedAt,
			inst.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *loanRepository) GetInstallmentForUpdate(ctx context.Context, id uuid.UUID) (*domain.Installment, error) {
	if txFrom(ctx) == nil {
		return nil, fmt.Errorf("locking read of installment %s requires a transaction", id)
	}

	query := `
		SELECT id, loan_id, sequence, due_date, amount, paid_amount, status, created_at, updated_at
		FROM installments
		WHERE id = $1
		FOR UPDATE
	`

	var inst domain.Installment
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &inst, query, id); err != nil {
		return nil, err
	}

	return &inst, nil
}

func (r *loanRepository) InstallmentsByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	query := `
		SELECT id, loan_id, sequence, due_date, amount, paid_amount, status, created_at, updated_at
		FROM installments
		WHERE loan_id = $1
		ORDER BY sequence
	`

	var installments []*domain.Installment
	if err := sqlx.SelectContext(ctx, ext(ctx, r.db), &installments, query, loanID); err != nil {
		return nil, err
	}

	return installments, nil
}

// UnpaidInstallmentsFrom locks the selected rows so concurrent allocation
// runs against the same loan serialize instead of both planning from the
// same stale paid amounts.
func (r *loanRepository) UnpaidInstallmentsFrom(ctx context.Context, loanID uuid.UUID, fromSequence int) ([]*domain.Installment, error) {
	if txFrom(ctx) == nil {
		return nil, fmt.Errorf("locking read of loan %s installments requires a transaction", loanID)
	}

	query := `
		SELECT id, loan_id, sequence, due_date, amount, paid_amount, status, created_at, updated_at
		FROM installments
		WHERE loan_id = $1 AND sequence >= $2 AND status IN ('pending', 'overdue')
		ORDER BY sequence
		FOR UPDATE
	`

	var installments []*domain.Installment
	if err := sqlx.SelectContext(ctx, ext(ctx, r.db), &installments, query, loanID, fromSequence); err != nil {
		return nil, err
	}

	return installments, nil
}

func (r *loanRepository) UpdateInstallmentProgress(ctx context.Context, id uuid.UUID, paidAmount decimal.Decimal, status string) error {
	query := `
		UPDATE installments
		SET paid_amount = $2, status = $3, updated_at = $4
		WHERE id = $1
	`

	_, err := ext(ctx, r.db).ExecContext(ctx, query, id, paidAmount, status, time.Now())
	return err
}

func (r *loanRepository) CancelOpenInstallments(ctx context.Context, loanID uuid.UUID) error {
	query := `
		UPDATE installments
		SET status = 'cancelled', updated_at = $2
		WHERE loan_id = $1 AND status IN ('pending', 'overdue')
	`

	_, err := ext(ctx, r.db).ExecContext(ctx, query, loanID, time.Now())
	return err
}

func (r *loanRepository) DuePendingInstallments(ctx context.Context, asOf time.Time) ([]*domain.Installment, error) {
	query := `
		SELECT id, loan_id, sequence, due_date, amount, paid_amount, status, created_at, updated_at
		FROM installments
		WHERE status = 'pending' AND due_date < $1
		ORDER BY loan_id, sequence
	`

	var installments []*domain.Installment
	if err := sqlx.SelectContext(ctx, ext(ctx, r.db), &installments, query, asOf); err != nil {
		return nil, err
	}

	return installments, nil
}
