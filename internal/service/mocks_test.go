package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/ponselpay/financing-engine/internal/audit"
	"github.com/ponselpay/financing-engine/internal/domain"
)

// fakeTransactor runs the unit of work without a database.
type fakeTransactor struct{}

func (fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// recordingSink captures audit entries for assertions.
type recordingSink struct {
	entries []audit.Entry
}

func (s *recordingSink) Record(_ context.Context, entry audit.Entry) {
	s.entries = append(s.entries, entry)
}

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) UpdateLoanStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockLoanRepository) CreateInstallments(ctx context.Context, installments []*domain.Installment) error {
	args := m.Called(ctx, installments)
	return args.Error(0)
}

func (m *MockLoanRepository) GetInstallmentForUpdate(ctx context.Context, id uuid.UUID) (*domain.Installment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Installment), args.Error(1)
}

func (m *MockLoanRepository) InstallmentsByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockLoanRepository) UnpaidInstallmentsFrom(ctx context.Context, loanID uuid.UUID, fromSequence int) ([]*domain.Installment, error) {
	args := m.Called(ctx, loanID, fromSequence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockLoanRepository) UpdateInstallmentProgress(ctx context.Context, id uuid.UUID, paidAmount decimal.Decimal, status string) error {
	args := m.Called(ctx, id, paidAmount, status)
	return args.Error(0)
}

func (m *MockLoanRepository) CancelOpenInstallments(ctx context.Context, loanID uuid.UUID) error {
	args := m.Called(ctx, loanID)
	return args.Error(0)
}

func (m *MockLoanRepository) DuePendingInstallments(ctx context.Context, asOf time.Time) ([]*domain.Installment, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) UpdateVerification(ctx context.Context, id uuid.UUID, status, verifiedBy string, verifiedAt time.Time) error {
	args := m.Called(ctx, id, status, verifiedBy, verifiedAt)
	return args.Error(0)
}

func (m *MockPaymentRepository) CreateAllocation(ctx context.Context, allocation *domain.PaymentAllocation) error {
	args := m.Called(ctx, allocation)
	return args.Error(0)
}

func (m *MockPaymentRepository) AllocationsByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.PaymentAllocation, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentAllocation), args.Error(1)
}

func (m *MockPaymentRepository) DeleteAllocationsByPayment(ctx context.Context, paymentID uuid.UUID) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}

func (m *MockPaymentRepository) AllocatedTotal(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPaymentRepository) VerifiedAllocationSum(ctx context.Context, installmentID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, installmentID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockDeviceRepository struct {
	mock.Mock
}

func (m *MockDeviceRepository) CreateDevice(ctx context.Context, device *domain.Device) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

func (m *MockDeviceRepository) GetDevice(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Device), args.Error(1)
}

func (m *MockDeviceRepository) GetDeviceByLoan(ctx context.Context, loanID uuid.UUID) (*domain.Device, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Device), args.Error(1)
}

func (m *MockDeviceRepository) AcquireDeviceLock(ctx context.Context, deviceID uuid.UUID) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

func (m *MockDeviceRepository) CurrentLockState(ctx context.Context, deviceID uuid.UUID) (*domain.DeviceLockState, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeviceLockState), args.Error(1)
}

func (m *MockDeviceRepository) AppendLockState(ctx context.Context, state *domain.DeviceLockState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockDeviceRepository) LockHistory(ctx context.Context, deviceID uuid.UUID) ([]*domain.DeviceLockState, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DeviceLockState), args.Error(1)
}

func (m *MockDeviceRepository) AutoBlockCandidates(ctx context.Context, cutoff time.Time) ([]*domain.Device, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Device), args.Error(1)
}
