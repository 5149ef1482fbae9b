package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func openInstallment(sequence int, amount, paid int64) *Installment {
	return &Installment{
		ID:         uuid.New(),
		LoanID:     uuid.New(),
		Sequence:   sequence,
		DueDate:    time.Now().AddDate(0, 0, 14*sequence),
		Amount:     decimal.NewFromInt(amount),
		PaidAmount: decimal.NewFromInt(paid),
		Status:     InstallmentStatusPending,
	}
}

func TestPlanAllocationsCascades(t *testing.T) {
	third := openInstallment(3, 100, 50)
	fourth := openInstallment(4, 60, 0)
	fifth := openInstallment(5, 60, 0)

	planned, overage := PlanAllocations(decimal.NewFromInt(120),
		[]*Installment{third, fourth, fifth})

	assert.Len(t, planned, 3)
	assert.True(t, planned[0].Amount.Equal(decimal.NewFromInt(50)))
	assert.True(t, planned[0].NewPaid.Equal(decimal.NewFromInt(100)))
	assert.True(t, planned[1].Amount.Equal(decimal.NewFromInt(60)))
	assert.True(t, planned[2].Amount.Equal(decimal.NewFromInt(10)), "remainder goes to the next installment")
	assert.True(t, planned[2].NewPaid.Equal(decimal.NewFromInt(10)))
	assert.True(t, overage.IsZero())
}

func TestPlanAllocationsReturnsOverage(t *testing.T) {
	last := openInstallment(6, 40, 0)

	planned, overage := PlanAllocations(decimal.NewFromInt(100), []*Installment{last})

	assert.Len(t, planned, 1)
	assert.True(t, planned[0].Amount.Equal(decimal.NewFromInt(40)))
	assert.True(t, overage.Equal(decimal.NewFromInt(60)))
}

func TestPlanAllocationsSkipsSettledAndCancelled(t *testing.T) {
	settled := openInstallment(1, 100, 100)
	cancelled := openInstallment(2, 100, 0)
	cancelled.Status = InstallmentStatusCancelled
	open := openInstallment(3, 100, 0)

	planned, overage := PlanAllocations(decimal.NewFromInt(50),
		[]*Installment{settled, cancelled, open})

	assert.Len(t, planned, 1)
	assert.Equal(t, open.ID, planned[0].Installment.ID)
	assert.True(t, planned[0].Amount.Equal(decimal.NewFromInt(50)))
	assert.True(t, overage.IsZero())
}

func TestPlanAllocationsNothingAvailable(t *testing.T) {
	planned, overage := PlanAllocations(decimal.Zero, []*Installment{openInstallment(1, 100, 0)})

	assert.Empty(t, planned)
	assert.True(t, overage.IsZero())
}

func TestActorString(t *testing.T) {
	assert.Equal(t, "system", SystemActor().String())
	assert.Equal(t, "user:admin-1", HumanActor("admin-1").String())
	assert.True(t, SystemActor().IsSystem())
	assert.False(t, HumanActor("admin-1").IsSystem())
}

func TestInstallmentRemaining(t *testing.T) {
	inst := openInstallment(1, 100, 30)
	assert.True(t, inst.Remaining().Equal(decimal.NewFromInt(70)))

	inst.PaidAmount = decimal.NewFromInt(130)
	assert.True(t, inst.Remaining().IsZero(), "overpayment never yields a negative remainder")
}
