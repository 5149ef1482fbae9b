package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	LockStatusUnlocked = "unlocked"
	LockStatusPending  = "pending"
	LockStatusLocked   = "locked"
)

// Device is the collateral handset, one-to-one with its loan. Its observable
// lock status is not a column; it is derived from the lock-state history.
type Device struct {
	ID        uuid.UUID `json:"id" db:"id"`
	LoanID    uuid.UUID `json:"loan_id" db:"loan_id"`
	Brand     string    `json:"brand" db:"brand"`
	Model     string    `json:"model" db:"model"`
	IMEI      string    `json:"imei" db:"imei"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DeviceLockState is one immutable row of a device's lock history. The
// device's current state is the most recently created row; prior rows are
// never mutated and form the audit trail.
type DeviceLockState struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	DeviceID    uuid.UUID  `json:"device_id" db:"device_id"`
	Status      string     `json:"status" db:"status"`
	Reason      string     `json:"reason" db:"reason"`
	InitiatedBy string     `json:"initiated_by" db:"initiated_by"`
	InitiatedAt time.Time  `json:"initiated_at" db:"initiated_at"`
	ConfirmedBy *string    `json:"confirmed_by,omitempty" db:"confirmed_by"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

type LockTransitionRequest struct {
	Reason string `json:"reason" validate:"required"`
}
