package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ponselpay/financing-engine/pkg/utils"
)

const (
	InstallmentStatusPending   = "pending"
	InstallmentStatusPaid      = "paid"
	InstallmentStatusOverdue   = "overdue"
	InstallmentStatusCancelled = "cancelled"
)

// Installment is one scheduled bi-weekly obligation within a loan.
// PaidAmount is always the sum of verified allocations against it.
type Installment struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	LoanID     uuid.UUID       `json:"loan_id" db:"loan_id"`
	Sequence   int             `json:"sequence" db:"sequence"`
	DueDate    time.Time       `json:"due_date" db:"due_date"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	PaidAmount decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	Status     string          `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// Remaining returns the unpaid portion of the installment.
func (i *Installment) Remaining() decimal.Decimal {
	remaining := i.Amount.Sub(i.PaidAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// DeriveInstallmentStatus computes an installment's status from its paid
// amount and due date. A past-due date moves pending to overdue, and a due
// date restored to the future moves overdue back to pending. Cancelled
// installments keep their status.
func DeriveInstallmentStatus(paidAmount, amount decimal.Decimal, dueDate, now time.Time) string {
	if paidAmount.GreaterThanOrEqual(amount) {
		return InstallmentStatusPaid
	}
	if utils.IsPastDue(dueDate, now) {
		return InstallmentStatusOverdue
	}
	return InstallmentStatusPending
}
