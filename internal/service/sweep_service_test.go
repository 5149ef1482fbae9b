package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/ponselpay/financing-engine/internal/audit"
	"github.com/ponselpay/financing-engine/internal/domain"
	"github.com/ponselpay/financing-engine/internal/notification"
	"github.com/ponselpay/financing-engine/internal/service"
)

func newSweepService(loanRepo *MockLoanRepository, deviceRepo *MockDeviceRepository) *service.SweepService {
	lockSvc := service.NewDeviceLockService(
		deviceRepo,
		fakeTransactor{},
		audit.NopSink{},
		notification.NopDispatcher{},
		zap.NewNop(),
	)
	return service.NewSweepService(
		loanRepo,
		deviceRepo,
		lockSvc,
		fakeTransactor{},
		audit.NopSink{},
		time.UTC,
		zap.NewNop(),
	)
}

func TestSweepOverdueMarksPastDueInstallments(t *testing.T) {
	loanID := uuid.New()
	pastDue := time.Now().AddDate(0, 0, -2)

	first := &domain.Installment{
		ID:       uuid.New(),
		LoanID:   loanID,
		Sequence: 1,
		DueDate:  pastDue,
		Amount:   decimal.NewFromInt(100),
		Status:   domain.InstallmentStatusPending,
	}
	second := &domain.Installment{
		ID:       uuid.New(),
		LoanID:   loanID,
		Sequence: 2,
		DueDate:  pastDue,
		Amount:   decimal.NewFromInt(100),
		Status:   domain.InstallmentStatusPending,
	}

	loanRepo := &MockLoanRepository{}
	deviceRepo := &MockDeviceRepository{}
	loanRepo.On("DuePendingInstallments", mock.Anything, mock.Anything).
		Return([]*domain.Installment{first, second}, nil)

	for _, inst := range []*domain.Installment{first, second} {
		loanRepo.On("UpdateInstallmentProgress", mock.Anything, inst.ID,
			inst.PaidAmount, domain.InstallmentStatusOverdue).Return(nil)
	}
	loanRepo.On("GetLoan", mock.Anything, loanID).
		Return(&domain.Loan{ID: loanID, Status: domain.LoanStatusActive}, nil)
	loanRepo.On("InstallmentsByLoan", mock.Anything, loanID).Return([]*domain.Installment{
		{Status: domain.InstallmentStatusOverdue},
		{Status: domain.InstallmentStatusOverdue},
	}, nil)
	loanRepo.On("UpdateLoanStatus", mock.Anything, loanID, domain.LoanStatusOverdue).Return(nil)

	result, err := newSweepService(loanRepo, deviceRepo).SweepOverdue(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Marked)
	assert.Empty(t, result.Failures)
	loanRepo.AssertExpectations(t)
}

func TestSweepOverdueCutsAtBusinessDayBoundary(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)

	loanRepo := &MockLoanRepository{}
	deviceRepo := &MockDeviceRepository{}
	loanRepo.On("DuePendingInstallments", mock.Anything, mock.MatchedBy(func(asOf time.Time) bool {
		hour, minute, sec := asOf.Clock()
		return asOf.Location() == jakarta && hour == 0 && minute == 0 && sec == 0
	})).Return([]*domain.Installment{}, nil)

	lockSvc := service.NewDeviceLockService(
		deviceRepo, fakeTransactor{}, audit.NopSink{}, notification.NopDispatcher{}, zap.NewNop())
	svc := service.NewSweepService(
		loanRepo, deviceRepo, lockSvc, fakeTransactor{}, audit.NopSink{}, jakarta, zap.NewNop())

	_, err := svc.SweepOverdue(context.Background())

	assert.NoError(t, err)
	loanRepo.AssertExpectations(t)
}

func TestSweepOverdueSecondRunMarksNothing(t *testing.T) {
	loanRepo := &MockLoanRepository{}
	deviceRepo := &MockDeviceRepository{}
	loanRepo.On("DuePendingInstallments", mock.Anything, mock.Anything).
		Return([]*domain.Installment{}, nil)

	result, err := newSweepService(loanRepo, deviceRepo).SweepOverdue(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Marked)
	loanRepo.AssertNotCalled(t, "UpdateInstallmentProgress",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepOverdueIsolatesPerInstallmentFailures(t *testing.T) {
	loanA := uuid.New()
	loanB := uuid.New()
	pastDue := time.Now().AddDate(0, 0, -5)

	broken := &domain.Installment{
		ID:      uuid.New(),
		LoanID:  loanA,
		DueDate: pastDue,
		Amount:  decimal.NewFromInt(100),
		Status:  domain.InstallmentStatusPending,
	}
	healthy := &domain.Installment{
		ID:      uuid.New(),
		LoanID:  loanB,
		DueDate: pastDue,
		Amount:  decimal.NewFromInt(100),
		Status:  domain.InstallmentStatusPending,
	}

	loanRepo := &MockLoanRepository{}
	deviceRepo := &MockDeviceRepository{}
	loanRepo.On("DuePendingInstallments", mock.Anything, mock.Anything).
		Return([]*domain.Installment{broken, healthy}, nil)

	loanRepo.On("UpdateInstallmentProgress", mock.Anything, broken.ID,
		broken.PaidAmount, domain.InstallmentStatusOverdue).
		Return(errors.New("deadlock detected"))
	loanRepo.On("UpdateInstallmentProgress", mock.Anything, healthy.ID,
		healthy.PaidAmount, domain.InstallmentStatusOverdue).Return(nil)
	loanRepo.On("GetLoan", mock.Anything, loanB).
		Return(&domain.Loan{ID: loanB, Status: domain.LoanStatusOverdue}, nil)
	loanRepo.On("InstallmentsByLoan", mock.Anything, loanB).Return([]*domain.Installment{
		{Status: domain.InstallmentStatusOverdue},
	}, nil)

	result, err := newSweepService(loanRepo, deviceRepo).SweepOverdue(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Marked)
	assert.Len(t, result.Failures, 1)
	assert.Equal(t, broken.ID, result.Failures[0].ID)
	loanRepo.AssertExpectations(t)
}

func TestAutoBlockOverdueBlocksUnlockedDevices(t *testing.T) {
	loanID := uuid.New()
	device := &domain.Device{ID: uuid.New(), LoanID: loanID}

	loanRepo := &MockLoanRepository{}
	deviceRepo := &MockDeviceRepository{}
	deviceRepo.On("AutoBlockCandidates", mock.Anything, mock.Anything).
		Return([]*domain.Device{device}, nil)
	deviceRepo.On("GetDevice", mock.Anything, device.ID).Return(device, nil)
	deviceRepo.On("AcquireDeviceLock", mock.Anything, device.ID).Return(nil)

	// Candidate check, then the lock-request guard, see no history; the
	// confirm guard sees the pending row the request appended.
	deviceRepo.On("CurrentLockState", mock.Anything, device.ID).
		Return((*domain.DeviceLockState)(nil), nil).Twice()
	deviceRepo.On("CurrentLockState", mock.Anything, device.ID).
		Return(&domain.DeviceLockState{
			ID:          uuid.New(),
			DeviceID:    device.ID,
			Status:      domain.LockStatusPending,
			Reason:      "installment overdue for 30+ days",
			InitiatedBy: "system",
			InitiatedAt: time.Now(),
		}, nil).Once()

	deviceRepo.On("AppendLockState", mock.Anything, mock.MatchedBy(func(s *domain.DeviceLockState) bool {
		return s.Status == domain.LockStatusPending && s.InitiatedBy == "system"
	})).Return(nil).Once()
	deviceRepo.On("AppendLockState", mock.Anything, mock.MatchedBy(func(s *domain.DeviceLockState) bool {
		return s.Status == domain.LockStatusLocked
	})).Return(nil).Once()

	result, err := newSweepService(loanRepo, deviceRepo).AutoBlockOverdue(context.Background(), 30)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Blocked)
	assert.Equal(t, 0, result.Skipped)
	assert.Empty(t, result.Failures)
	deviceRepo.AssertExpectations(t)
}

func TestAutoBlockOverdueSkipsAlreadyLocked(t *testing.T) {
	device := &domain.Device{ID: uuid.New(), LoanID: uuid.New()}

	loanRepo := &MockLoanRepository{}
	deviceRepo := &MockDeviceRepository{}
	deviceRepo.On("AutoBlockCandidates", mock.Anything, mock.Anything).
		Return([]*domain.Device{device}, nil)
	deviceRepo.On("CurrentLockState", mock.Anything, device.ID).
		Return(&domain.DeviceLockState{DeviceID: device.ID, Status: domain.LockStatusLocked}, nil)

	result, err := newSweepService(loanRepo, deviceRepo).AutoBlockOverdue(context.Background(), 30)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Blocked)
	assert.Equal(t, 1, result.Skipped)
	deviceRepo.AssertNotCalled(t, "AppendLockState", mock.Anything, mock.Anything)
}

func TestAutoBlockOverdueTreatsRaceAsSkip(t *testing.T) {
	device := &domain.Device{ID: uuid.New(), LoanID: uuid.New()}

	loanRepo := &MockLoanRepository{}
	deviceRepo := &MockDeviceRepository{}
	deviceRepo.On("AutoBlockCandidates", mock.Anything, mock.Anything).
		Return([]*domain.Device{device}, nil)
	deviceRepo.On("GetDevice", mock.Anything, device.ID).Return(device, nil)
	deviceRepo.On("AcquireDeviceLock", mock.Anything, device.ID).Return(nil)

	// Unlocked at the candidate check, but someone else grabs the device
	// before our request-lock guard runs.
	deviceRepo.On("CurrentLockState", mock.Anything, device.ID).
		Return((*domain.DeviceLockState)(nil), nil).Once()
	deviceRepo.On("CurrentLockState", mock.Anything, device.ID).
		Return(&domain.DeviceLockState{DeviceID: device.ID, Status: domain.LockStatusPending}, nil).Once()

	result, err := newSweepService(loanRepo, deviceRepo).AutoBlockOverdue(context.Background(), 30)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Blocked)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Failures)
	deviceRepo.AssertNotCalled(t, "AppendLockState", mock.Anything, mock.Anything)
}
