package amortization

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validInput() Input {
	return Input{
		PhonePrice:     decimal.NewFromInt(3000),
		DownPaymentPct: 30,
		Term:           6,
		DateOfBirth:    time.Date(1990, 5, 10, 0, 0, 0, 0, time.UTC),
		StartDate:      time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCalculateProducesBiweeklyPlan(t *testing.T) {
	in := validInput()

	plan, violations := Calculate(in)

	assert.Empty(t, violations)
	assert.True(t, plan.DownPaymentAmount.Equal(decimal.NewFromInt(900)),
		"down payment %s", plan.DownPaymentAmount)
	assert.True(t, plan.FinancedAmount.Equal(decimal.NewFromInt(2100)),
		"financed %s", plan.FinancedAmount)
	assert.True(t, plan.Rate.Equal(decimal.NewFromFloat(0.140)))
	assert.True(t, plan.InstallmentAmount.Equal(decimal.NewFromFloat(540.03)),
		"installment %s", plan.InstallmentAmount)

	assert.Len(t, plan.Entries, 6)
	for i, entry := range plan.Entries {
		assert.Equal(t, i+1, entry.Sequence)
		wantDue := in.StartDate.AddDate(0, 0, 14*(i+1))
		assert.True(t, entry.DueDate.Equal(wantDue), "entry %d due %s, want %s", entry.Sequence, entry.DueDate, wantDue)
		assert.True(t, entry.Amount.Equal(plan.InstallmentAmount))
		assert.Equal(t, "pending", entry.Status)
	}
}

func TestCalculateViolations(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Input)
		wantCode string
	}{
		{
			name:     "non-positive price",
			mutate:   func(in *Input) { in.PhonePrice = decimal.Zero },
			wantCode: CodeInvalidPrice,
		},
		{
			name:     "unsupported down payment",
			mutate:   func(in *Input) { in.DownPaymentPct = 35 },
			wantCode: CodeInvalidDownPayment,
		},
		{
			name:     "unsupported term",
			mutate:   func(in *Input) { in.Term = 7 },
			wantCode: CodeInvalidTerm,
		},
		{
			name: "applicant too young",
			mutate: func(in *Input) {
				in.DateOfBirth = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
			},
			wantCode: CodeAgeOutOfBand,
		},
		{
			name: "applicant too old",
			mutate: func(in *Input) {
				in.DateOfBirth = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)
			},
			wantCode: CodeAgeOutOfBand,
		},
		{
			name: "senior with low down payment",
			mutate: func(in *Input) {
				in.DateOfBirth = time.Date(1968, 1, 15, 0, 0, 0, 0, time.UTC)
				in.DownPaymentPct = 30
				in.Term = 6
			},
			wantCode: CodeCombinationBarred,
		},
		{
			name: "senior with long term",
			mutate: func(in *Input) {
				in.DateOfBirth = time.Date(1968, 1, 15, 0, 0, 0, 0, time.UTC)
				in.DownPaymentPct = 40
				in.Term = 12
			},
			wantCode: CodeCombinationBarred,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			plan, violations := Calculate(in)

			assert.Nil(t, plan)
			assert.NotEmpty(t, violations)
			assert.Equal(t, tt.wantCode, violations[0].Code)
		})
	}
}

func TestCalculateSeniorAllowedCombination(t *testing.T) {
	in := validInput()
	in.DateOfBirth = time.Date(1968, 1, 15, 0, 0, 0, 0, time.UTC)
	in.DownPaymentPct = 40
	in.Term = 8

	plan, violations := Calculate(in)

	assert.Empty(t, violations)
	assert.NotNil(t, plan)
	assert.True(t, plan.Rate.Equal(decimal.NewFromFloat(0.135)))
}

func TestCalculateYoungApplicantCeiling(t *testing.T) {
	in := validInput()
	// 20 at the start date, so the financed amount is capped at 2500.
	in.DateOfBirth = time.Date(2006, 3, 1, 0, 0, 0, 0, time.UTC)
	in.PhonePrice = decimal.NewFromInt(4000)

	plan, violations := Calculate(in)

	assert.Nil(t, plan)
	assert.Len(t, violations, 1)
	assert.Equal(t, CodeCeilingExceeded, violations[0].Code)
}

func TestCalculateYoungApplicantWithinCeiling(t *testing.T) {
	in := validInput()
	in.DateOfBirth = time.Date(2006, 3, 1, 0, 0, 0, 0, time.UTC)
	in.PhonePrice = decimal.NewFromInt(3000) // financed 2100, under 2500

	plan, violations := Calculate(in)

	assert.Empty(t, violations)
	assert.NotNil(t, plan)
}

func TestCalculateDefaultCeiling(t *testing.T) {
	in := validInput()
	in.PhonePrice = decimal.NewFromInt(20000)

	plan, violations := Calculate(in)

	assert.Nil(t, plan)
	assert.Len(t, violations, 1)
	assert.Equal(t, CodeCeilingExceeded, violations[0].Code)
}

func TestAnnuityPaymentZeroRateIsEvenSplit(t *testing.T) {
	got := annuityPayment(decimal.NewFromInt(1200), decimal.Zero, 6)
	assert.True(t, got.Equal(decimal.NewFromInt(200)), "got %s", got)
}
