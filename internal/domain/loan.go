package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LoanStatusDraft     = "draft"
	LoanStatusActive    = "active"
	LoanStatusPaid      = "paid"
	LoanStatusOverdue   = "overdue"
	LoanStatusCancelled = "cancelled"
)

// Loan represents one financed phone purchase.
type Loan struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	TotalAmount       decimal.Decimal `json:"total_amount" db:"total_amount"`
	ApprovedCeiling   decimal.Decimal `json:"approved_ceiling" db:"approved_ceiling"`
	DownPaymentPct    int             `json:"down_payment_pct" db:"down_payment_pct"`
	DownPaymentAmount decimal.Decimal `json:"down_payment_amount" db:"down_payment_amount"`
	FinancedAmount    decimal.Decimal `json:"financed_amount" db:"financed_amount"`
	InterestRate      decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	TermCount         int             `json:"term_count" db:"term_count"`
	StartDate         time.Time       `json:"start_date" db:"start_date"`
	Status            string          `json:"status" db:"status"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// DeriveLoanStatus computes a loan's status from its installment set.
// Cancelled installments carry no weight; a loan with nothing outstanding
// is paid. Draft and cancelled loans never pass through here.
func DeriveLoanStatus(installments []*Installment) string {
	var pending, overdue int
	for _, inst := range installments {
		switch inst.Status {
		case InstallmentStatusOverdue:
			overdue++
		case InstallmentStatusPending:
			pending++
		}
	}

	if overdue > 0 {
		return LoanStatusOverdue
	}
	if pending > 0 {
		return LoanStatusActive
	}
	return LoanStatusPaid
}

// DTOs for requests and responses

type FinalizeLoanRequest struct {
	PhonePrice      decimal.Decimal `json:"phone_price" validate:"required"`
	ApprovedCeiling decimal.Decimal `json:"approved_ceiling" validate:"required"`
	DownPaymentPct  int             `json:"down_payment_pct" validate:"required"`
	TermCount       int             `json:"term_count" validate:"required"`
	DateOfBirth     time.Time       `json:"date_of_birth" validate:"required"`
	StartDate       time.Time       `json:"start_date" validate:"required"`
	DeviceBrand     string          `json:"device_brand" validate:"required"`
	DeviceModel     string          `json:"device_model" validate:"required"`
	DeviceIMEI      string          `json:"device_imei" validate:"required"`
}

type FinalizeLoanResponse struct {
	Loan         *Loan          `json:"loan"`
	Installments []*Installment `json:"installments"`
	Device       *Device        `json:"device"`
}

type LoanScheduleResponse struct {
	Loan         *Loan          `json:"loan"`
	Installments []*Installment `json:"installments"`
}
