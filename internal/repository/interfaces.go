package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ponselpay/financing-engine/internal/domain"
)

// LoanRepository defines the interface for loan and installment data operations
type LoanRepository interface {
	// CreateLoan creates a new loan
	CreateLoan(ctx context.Context, loan *domain.Loan) error

	// GetLoan retrieves a loan by id
	GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// UpdateLoanStatus updates a loan's status
	UpdateLoanStatus(ctx context.Context, id uuid.UUID, status string) error

	// CreateInstallments creates installment rows in bulk
	CreateInstallments(ctx context.Context, installments []*domain.Installment) error

	// GetInstallmentForUpdate retrieves an installment and locks its row
	// until the surrounding transaction ends; callers must be inside one
	GetInstallmentForUpdate(ctx context.Context, id uuid.UUID) (*domain.Installment, error)

	// InstallmentsByLoan retrieves all installments of a loan ordered by sequence
	InstallmentsByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error)

	// UnpaidInstallmentsFrom retrieves a loan's pending and overdue
	// installments with sequence >= fromSequence, ordered by sequence,
	// locking the rows until the surrounding transaction ends; callers
	// must be inside one
	UnpaidInstallmentsFrom(ctx context.Context, loanID uuid.UUID, fromSequence int) ([]*domain.Installment, error)

	// UpdateInstallmentProgress writes an installment's paid amount and status
	UpdateInstallmentProgress(ctx context.Context, id uuid.UUID, paidAmount decimal.Decimal, status string) error

	// CancelOpenInstallments moves a loan's pending and overdue installments to cancelled
	CancelOpenInstallments(ctx context.Context, loanID uuid.UUID) error

	// DuePendingInstallments retrieves pending installments across all loans
	// whose due date is strictly before asOf
	DuePendingInstallments(ctx context.Context, asOf time.Time) ([]*domain.Installment, error)
}

// PaymentRepository defines the interface for payment and allocation data operations
type PaymentRepository interface {
	// CreatePayment creates a new payment record
	CreatePayment(ctx context.Context, payment *domain.Payment) error

	// GetPayment retrieves a payment by id
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)

	// UpdateVerification sets a payment's verification status and auditor
	UpdateVerification(ctx context.Context, id uuid.UUID, status, verifiedBy string, verifiedAt time.Time) error

	// CreateAllocation writes one payment-to-installment allocation
	CreateAllocation(ctx context.Context, allocation *domain.PaymentAllocation) error

	// AllocationsByPayment retrieves a payment's allocations
	AllocationsByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.PaymentAllocation, error)

	// DeleteAllocationsByPayment removes every allocation of a payment
	DeleteAllocationsByPayment(ctx context.Context, paymentID uuid.UUID) error

	// AllocatedTotal returns the sum already allocated from a payment
	AllocatedTotal(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)

	// VerifiedAllocationSum returns the sum of allocations against an
	// installment whose payments are currently verified
	VerifiedAllocationSum(ctx context.Context, installmentID uuid.UUID) (decimal.Decimal, error)
}

// DeviceRepository defines the interface for device and lock-state data operations
type DeviceRepository interface {
	// CreateDevice registers the collateral device of a loan
	CreateDevice(ctx context.Context, device *domain.Device) error

	// GetDevice retrieves a device by id
	GetDevice(ctx context.Context, id uuid.UUID) (*domain.Device, error)

	// GetDeviceByLoan retrieves the device pledged on a loan
	GetDeviceByLoan(ctx context.Context, loanID uuid.UUID) (*domain.Device, error)

	// AcquireDeviceLock takes the per-device advisory lock for the duration
	// of the surrounding transaction; callers must be inside one
	AcquireDeviceLock(ctx context.Context, deviceID uuid.UUID) error

	// CurrentLockState returns the latest lock-state row, or nil when the
	// device has no history yet
	CurrentLockState(ctx context.Context, deviceID uuid.UUID) (*domain.DeviceLockState, error)

	// AppendLockState appends one immutable lock-state row
	AppendLockState(ctx context.Context, state *domain.DeviceLockState) error

	// LockHistory returns a device's full lock history, newest first
	LockHistory(ctx context.Context, deviceID uuid.UUID) ([]*domain.DeviceLockState, error)

	// AutoBlockCandidates returns devices whose loan has at least one
	// overdue installment due on or before the cutoff date
	AutoBlockCandidates(ctx context.Context, cutoff time.Time) ([]*domain.Device, error)
}
