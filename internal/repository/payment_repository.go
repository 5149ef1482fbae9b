package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ponselpay/financing-engine/internal/domain"
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, loan_id, amount, payment_date, method, verification_status,
			verified_by, verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		payment.ID,
		payment.LoanID,
		payment.Amount,
		payment.PaymentDate,
		payment.Method,
		payment.VerificationStatus,
		payment.VerifiedBy,
		payment.VerifiedAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return err
}

func (r *paymentRepository) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `
		SELECT id, loan_id, amount, payment_date, method, verification_status,
			verified_by, verified_at, created_at, updated_at
		FROM payments
		WHERE id = $1
	`

	var payment domain.Payment
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &payment, query, id); err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) UpdateVerification(ctx context.Context, id uuid.UUID, status, verifiedBy string, verifiedAt time.Time) error {
	query := `
		UPDATE payments
		SET verification_status = $2, verified_by = $3, verified_at = $4, updated_at = $5
		WHERE id = $1
	`

	_, err := ext(ctx, r.db).ExecContext(ctx, query, id, status, verifiedBy, verifiedAt, time.Now())
	return err
}

func (r *paymentRepository) CreateAllocation(ctx context.Context, allocation *domain.PaymentAllocation) error {
	query := `
		INSERT INTO payment_allocations (id, payment_id, installment_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		allocation.ID,
		allocation.PaymentID,
		allocation.InstallmentID,
		allocation.Amount,
		allocation.CreatedAt,
	)

	return err
}

func (r *paymentRepository) AllocationsByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.PaymentAllocation, error) {
	query := `
		SELECT id, payment_id, installment_id, amount, created_at
		FROM payment_allocations
		WHERE payment_id = $1
		ORDER BY created_at
	`

	var allocations []*domain.PaymentAllocation
	if err := sqlx.SelectContext(ctx, ext(ctx, r.db), &allocations, query, paymentID); err != nil {
		return nil, err
	}

	return allocations, nil
}

func (r *paymentRepository) DeleteAllocationsByPayment(ctx context.Context, paymentID uuid.UUID) error {
	query := `DELETE FROM payment_allocations WHERE payment_id = $1`

	_, err := ext(ctx, r.db).ExecContext(ctx, query, paymentID)
	return err
}

func (r *paymentRepository) AllocatedTotal(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payment_allocations
		WHERE payment_id = $1
	`

	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &total, query, paymentID); err != nil {
		return decimal.Zero, err
	}

	return total, nil
}

func (r *paymentRepository) VerifiedAllocationSum(ctx context.Context, installmentID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(pa.amount), 0)
		FROM payment_allocations pa
		JOIN payments p ON p.id = pa.payment_id
		WHERE pa.installment_id = $1 AND p.verification_status = 'verified'
	`

	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &total, query, installmentID); err != nil {
		return decimal.Zero, err
	}

	return total, nil
}
