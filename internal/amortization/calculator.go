// Package amortization computes bi-weekly installment plans for financed
// phones. Policy violations are returned as data, never as errors: a bad
// request is a validation result, not an exceptional control path.
package amortization

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ponselpay/financing-engine/pkg/utils"
)

// Violation codes
const (
	CodeInvalidPrice       = "INVALID_PRICE"
	CodeInvalidDownPayment = "INVALID_DOWN_PAYMENT_PCT"
	CodeInvalidTerm        = "INVALID_TERM"
	CodeAgeOutOfBand       = "AGE_OUT_OF_BAND"
	CodeCombinationBarred  = "COMBINATION_RESTRICTED"
	CodeCeilingExceeded    = "FINANCING_CEILING_EXCEEDED"
)

// Age policy. Applicants between seniorAgeMin and ageMax only qualify for
// the lower-risk combinations, and younger applicants carry a reduced
// financing ceiling.
const (
	ageMin       = 18
	ageMax       = 60
	seniorAgeMin = 55

	seniorMinDownPct = 40
	seniorMaxTerm    = 8

	youngAgeMax = 21
)

var (
	youngFinancedCeiling   = decimal.NewFromInt(2500)
	defaultFinancedCeiling = decimal.NewFromInt(10000)
)

type rateKey struct {
	DownPaymentPct int
	Term           int
}

// Bi-weekly rates by (down payment %, term). Rates rise with term and fall
// with the down payment share.
var rateTable = map[rateKey]decimal.Decimal{
	{30, 6}:  decimal.NewFromFloat(0.140),
	{30, 8}:  decimal.NewFromFloat(0.150),
	{30, 10}: decimal.NewFromFloat(0.160),
	{30, 12}: decimal.NewFromFloat(0.170),
	{40, 6}:  decimal.NewFromFloat(0.125),
	{40, 8}:  decimal.NewFromFloat(0.135),
	{40, 10}: decimal.NewFromFloat(0.145),
	{40, 12}: decimal.NewFromFloat(0.155),
	{50, 6}:  decimal.NewFromFloat(0.110),
	{50, 8}:  decimal.NewFromFloat(0.120),
	{50, 10}: decimal.NewFromFloat(0.130),
	{50, 12}: decimal.NewFromFloat(0.140),
}

// Violation describes one policy constraint the input failed.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Input struct {
	PhonePrice     decimal.Decimal
	DownPaymentPct int
	Term           int
	DateOfBirth    time.Time
	StartDate      time.Time
}

// Entry is one scheduled installment of a computed plan.
type Entry struct {
	Sequence int             `json:"sequence"`
	DueDate  time.Time       `json:"due_date"`
	Amount   decimal.Decimal `json:"amount"`
	Status   string          `json:"status"`
}

// Plan is the full amortization result for a valid input.
type Plan struct {
	DownPaymentAmount decimal.Decimal `json:"down_payment_amount"`
	FinancedAmount    decimal.Decimal `json:"financed_amount"`
	Rate              decimal.Decimal `json:"rate"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	Entries           []Entry         `json:"entries"`
}

// Calculate validates the input against the financing policy and, when
// clean, produces the bi-weekly plan. A non-empty violation list means no
// plan was computed.
func Calculate(in Input) (*Plan, []Violation) {
	violations := validate(in)
	if len(violations) > 0 {
		return nil, violations
	}

	downPayment := in.PhonePrice.Mul(decimal.NewFromInt(int64(in.DownPaymentPct))).
		Div(decimal.NewFromInt(100)).Round(2)
	financed := in.PhonePrice.Sub(downPayment)

	if v := checkCeiling(financed, utils.AgeAt(in.DateOfBirth, in.StartDate)); v != nil {
		return nil, []Violation{*v}
	}

	rate := rateTable[rateKey{in.DownPaymentPct, in.Term}]
	installment := annuityPayment(financed, rate, in.Term)

	entries := make([]Entry, 0, in.Term)
	for seq := 1; seq <= in.Term; seq++ {
		entries = append(entries, Entry{
			Sequence: seq,
			DueDate:  utils.BiweeklyDueDate(in.StartDate, seq),
			Amount:   installment,
			Status:   "pending",
		})
	}

	return &Plan{
		DownPaymentAmount: downPayment,
		FinancedAmount:    financed,
		Rate:              rate,
		InstallmentAmount: installment,
		Entries:           entries,
	}, nil
}

func validate(in Input) []Violation {
	var violations []Violation

	if !in.PhonePrice.IsPositive() {
		violations = append(violations, Violation{
			Field:   "phone_price",
			Code:    CodeInvalidPrice,
			Message: "phone price must be positive",
		})
	}

	if _, ok := rateTable[rateKey{in.DownPaymentPct, in.Term}]; !ok {
		switch {
		case in.DownPaymentPct != 30 && in.DownPaymentPct != 40 && in.DownPaymentPct != 50:
			violations = append(violations, Violation{
				Field:   "down_payment_pct",
				Code:    CodeInvalidDownPayment,
				Message: fmt.Sprintf("down payment of %d%% is not offered", in.DownPaymentPct),
			})
		default:
			violations = append(violations, Violation{
				Field:   "term",
				Code:    CodeInvalidTerm,
				Message: fmt.Sprintf("term of %d installments is not offered", in.Term),
			})
		}
	}

	age := utils.AgeAt(in.DateOfBirth, in.StartDate)
	switch {
	case age < ageMin || age > ageMax:
		violations = append(violations, Violation{
			Field:   "date_of_birth",
			Code:    CodeAgeOutOfBand,
			Message: fmt.Sprintf("applicant age %d is outside the allowed %d-%d band", age, ageMin, ageMax),
		})
	case age >= seniorAgeMin && (in.DownPaymentPct < seniorMinDownPct || in.Term > seniorMaxTerm):
		violations = append(violations, Violation{
			Field:   "term",
			Code:    CodeCombinationBarred,
			Message: fmt.Sprintf("applicants aged %d+ require a down payment of at least %d%% and a term of at most %d",
				seniorAgeMin, seniorMinDownPct, seniorMaxTerm),
		})
	}

	return violations
}

func checkCeiling(financed decimal.Decimal, age int) *Violation {
	ceiling := defaultFinancedCeiling
	if age < youngAgeMax {
		ceiling = youngFinancedCeiling
	}

	if financed.GreaterThan(ceiling) {
		return &Violation{
			Field:   "phone_price",
			Code:    CodeCeilingExceeded,
			Message: fmt.Sprintf("financed amount %s exceeds the ceiling of %s for this applicant", financed, ceiling),
		}
	}
	return nil
}

// annuityPayment computes PMT = P*r*(1+r)^n / ((1+r)^n - 1), rounded to
// cents. With a zero rate the plan is an even split.
func annuityPayment(principal, rate decimal.Decimal, term int) decimal.Decimal {
	n := decimal.NewFromInt(int64(term))
	if rate.IsZero() {
		return principal.Div(n).Round(2)
	}

	factor := decimal.NewFromInt(1).Add(rate).Pow(n)
	return principal.Mul(rate).Mul(factor).
		Div(factor.Sub(decimal.NewFromInt(1))).
		Round(2)
}
