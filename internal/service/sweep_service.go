package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ponselpay/financing-engine/internal/audit"
	"github.com/ponselpay/financing-engine/internal/domain"
	"github.com/ponselpay/financing-engine/internal/repository"
	customError "github.com/ponselpay/financing-engine/pkg/errors"
	"github.com/ponselpay/financing-engine/pkg/utils"
)

// EntityFailure names one record a batch run could not process.
type EntityFailure struct {
	ID  uuid.UUID `json:"id"`
	Err string    `json:"error"`
}

type SweepResult struct {
	Marked   int             `json:"marked"`
	Failures []EntityFailure `json:"failures,omitempty"`
}

type AutoBlockResult struct {
	Blocked  int             `json:"blocked"`
	Skipped  int             `json:"skipped"`
	Failures []EntityFailure `json:"failures,omitempty"`
}

// SweepService owns the two scheduled batch operations. Each entity gets
// its own transaction so one bad record never rolls back its neighbours.
// Day boundaries follow the configured business timezone, not the host's.
type SweepService struct {
	loanRepo   repository.LoanRepository
	deviceRepo repository.DeviceRepository
	lockSvc    *DeviceLockService
	tx         repository.Transactor
	audit      audit.Sink
	location   *time.Location
	logger     *zap.Logger
}

func NewSweepService(
	loanRepo repository.LoanRepository,
	deviceRepo repository.DeviceRepository,
	lockSvc *DeviceLockService,
	tx repository.Transactor,
	auditSink audit.Sink,
	location *time.Location,
	logger *zap.Logger,
) *SweepService {
	if location == nil {
		location = time.UTC
	}
	return &SweepService{
		loanRepo:   loanRepo,
		deviceRepo: deviceRepo,
		lockSvc:    lockSvc,
		tx:         tx,
		audit:      auditSink,
		location:   location,
		logger:     logger,
	}
}

// SweepOverdue promotes every pending installment whose due date has
// passed to overdue and recomputes the owning loan's status. Installments
// already overdue are not selected, so a second run in the same day marks
// nothing.
func (s *SweepService) SweepOverdue(ctx context.Context) (*SweepResult, error) {
	now := time.Now().In(s.location)
	due, err := s.loanRepo.DuePendingInstallments(ctx, utils.Today(now))
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	result := &SweepResult{}
	for _, inst := range due {
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			status := domain.DeriveInstallmentStatus(inst.PaidAmount, inst.Amount, inst.DueDate, now)
			if status == inst.Status {
				return nil
			}
			if err := s.loanRepo.UpdateInstallmentProgress(ctx, inst.ID, inst.PaidAmount, status); err != nil {
				return err
			}
			return recomputeLoanStatus(ctx, s.loanRepo, inst.LoanID)
		})
		if err != nil {
			s.logger.Error("overdue sweep: installment skipped",
				zap.String("installment_id", inst.ID.String()),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, EntityFailure{ID: inst.ID, Err: err.Error()})
			continue
		}

		result.Marked++
	}

	s.audit.Record(ctx, audit.Entry{
		Actor:        domain.SystemActor(),
		Action:       "sweep.overdue",
		ResourceType: "installment",
		ResourceID:   "batch",
		Detail:       fmt.Sprintf("marked %d, failed %d", result.Marked, len(result.Failures)),
	})
	s.logger.Info("overdue sweep finished",
		zap.Int("marked", result.Marked),
		zap.Int("failed", len(result.Failures)),
	)

	return result, nil
}

// AutoBlockOverdue locks the collateral of every loan that has an
// installment overdue by at least thresholdDays. Devices already pending
// or locked are skipped; per-device failures are logged and the batch
// moves on.
func (s *SweepService) AutoBlockOverdue(ctx context.Context, thresholdDays int) (*AutoBlockResult, error) {
	cutoff := utils.Today(time.Now().In(s.location)).AddDate(0, 0, -thresholdDays)
	candidates, err := s.deviceRepo.AutoBlockCandidates(ctx, cutoff)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	system := domain.SystemActor()
	reason := fmt.Sprintf("installment overdue for %d+ days", thresholdDays)

	result := &AutoBlockResult{}
	for _, device := range candidates {
		current, err := s.deviceRepo.CurrentLockState(ctx, device.ID)
		if err != nil {
			result.Failures = append(result.Failures, EntityFailure{ID: device.ID, Err: err.Error()})
			continue
		}
		if current != nil && current.Status != domain.LockStatusUnlocked {
			result.Skipped++
			continue
		}

		if err := s.blockDevice(ctx, device.ID, system, reason); err != nil {
			// A transition conflict means someone else moved the device
			// between our check and the lock attempt; treat it as a skip.
			var transitionErr *customError.InvalidTransitionError
			if errors.As(err, &transitionErr) {
				result.Skipped++
				continue
			}

			s.logger.Error("auto-block: device skipped",
				zap.String("device_id", device.ID.String()),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, EntityFailure{ID: device.ID, Err: err.Error()})
			continue
		}

		result.Blocked++
	}

	s.audit.Record(ctx, audit.Entry{
		Actor:        system,
		Action:       "sweep.auto_block",
		ResourceType: "device",
		ResourceID:   "batch",
		Detail:       fmt.Sprintf("blocked %d, skipped %d, failed %d", result.Blocked, result.Skipped, len(result.Failures)),
	})
	s.logger.Info("auto-block sweep finished",
		zap.Int("blocked", result.Blocked),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failures)),
	)

	return result, nil
}

func (s *SweepService) blockDevice(ctx context.Context, deviceID uuid.UUID, actor domain.Actor, reason string) error {
	if _, err := s.lockSvc.RequestLock(ctx, deviceID, actor, reason); err != nil {
		return err
	}
	_, err := s.lockSvc.ConfirmLock(ctx, deviceID, actor)
	return err
}
