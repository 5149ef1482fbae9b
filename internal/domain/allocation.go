package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentAllocation credits a portion of one payment to one installment.
type PaymentAllocation struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	PaymentID     uuid.UUID       `json:"payment_id" db:"payment_id"`
	InstallmentID uuid.UUID       `json:"installment_id" db:"installment_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// PlannedAllocation is one step of an allocation walk before it is written.
type PlannedAllocation struct {
	Installment *Installment
	Amount      decimal.Decimal
	NewPaid     decimal.Decimal
}

// PlanAllocations walks installments in the given order and assigns
// min(remaining payment, remaining installment) to each until the available
// amount is exhausted. Already-satisfied installments are skipped. The
// second return value is the overage left after every target installment is
// satisfied; callers must surface it, not drop it.
func PlanAllocations(available decimal.Decimal, installments []*Installment) ([]PlannedAllocation, decimal.Decimal) {
	planned := make([]PlannedAllocation, 0, len(installments))

	for _, inst := range installments {
		if !available.IsPositive() {
			break
		}
		if inst.Status == InstallmentStatusCancelled {
			continue
		}

		portion := decimal.Min(available, inst.Remaining())
		if !portion.IsPositive() {
			continue
		}

		planned = append(planned, PlannedAllocation{
			Installment: inst,
			Amount:      portion,
			NewPaid:     inst.PaidAmount.Add(portion),
		})
		available = available.Sub(portion)
	}

	return planned, available
}
