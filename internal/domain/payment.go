package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

const (
	PaymentMethodCash     = "cash"
	PaymentMethodDeposit  = "deposit"
	PaymentMethodTransfer = "transfer"
	// PaymentMethodAdjustment marks payments created by the privileged
	// mark-paid fast path; they are born verified.
	PaymentMethodAdjustment = "adjustment"
)

// Payment is a money receipt. Only verified payments contribute to
// installment paid amounts.
type Payment struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	LoanID             uuid.UUID       `json:"loan_id" db:"loan_id"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate        time.Time       `json:"payment_date" db:"payment_date"`
	Method             string          `json:"method" db:"method"`
	VerificationStatus string          `json:"verification_status" db:"verification_status"`
	VerifiedBy         *string         `json:"verified_by,omitempty" db:"verified_by"`
	VerifiedAt         *time.Time      `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

func (p *Payment) IsVerified() bool {
	return p.VerificationStatus == VerificationVerified
}

type SubmitPaymentRequest struct {
	LoanID      uuid.UUID       `json:"loan_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	PaymentDate time.Time       `json:"payment_date" validate:"required"`
	Method      string          `json:"method" validate:"required,oneof=cash deposit transfer"`
}
