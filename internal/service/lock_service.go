package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ponselpay/financing-engine/internal/audit"
	"github.com/ponselpay/financing-engine/internal/domain"
	"github.com/ponselpay/financing-engine/internal/notification"
	"github.com/ponselpay/financing-engine/internal/repository"
	customError "github.com/ponselpay/financing-engine/pkg/errors"
)

// DeviceLockService drives a device's remote-lock state machine:
// unlocked -> pending -> locked -> unlocked. Every successful transition
// appends an immutable row; the current state is always the latest row.
// Guard failures come back as InvalidTransitionError, not crashes.
type DeviceLockService struct {
	deviceRepo repository.DeviceRepository
	tx         repository.Transactor
	audit      audit.Sink
	notifier   notification.Dispatcher
	logger     *zap.Logger
}

func NewDeviceLockService(
	deviceRepo repository.DeviceRepository,
	tx repository.Transactor,
	auditSink audit.Sink,
	notifier notification.Dispatcher,
	logger *zap.Logger,
) *DeviceLockService {
	return &DeviceLockService{
		deviceRepo: deviceRepo,
		tx:         tx,
		audit:      auditSink,
		notifier:   notifier,
		logger:     logger,
	}
}

// RequestLock asks the MDM side to lock the device. Only an unlocked
// device accepts the request.
func (s *DeviceLockService) RequestLock(ctx context.Context, deviceID uuid.UUID, actor domain.Actor, reason string) (*domain.DeviceLockState, error) {
	now := time.Now()
	state, err := s.transition(ctx, deviceID, domain.LockStatusUnlocked, domain.LockStatusPending,
		func(*domain.DeviceLockState) *domain.DeviceLockState {
			return &domain.DeviceLockState{
				ID:          uuid.New(),
				DeviceID:    deviceID,
				Status:      domain.LockStatusPending,
				Reason:      reason,
				InitiatedBy: actor.String(),
				InitiatedAt: now,
				CreatedAt:   now,
			}
		})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "device.lock_requested",
		ResourceType: "device",
		ResourceID:   deviceID.String(),
		Detail:       reason,
	})

	return state, nil
}

// ConfirmLock records that the lock took effect on the handset. The
// pending row's reason and initiator carry over into the locked row.
func (s *DeviceLockService) ConfirmLock(ctx context.Context, deviceID uuid.UUID, actor domain.Actor) (*domain.DeviceLockState, error) {
	now := time.Now()
	actorRef := actor.String()
	state, err := s.transition(ctx, deviceID, domain.LockStatusPending, domain.LockStatusLocked,
		func(current *domain.DeviceLockState) *domain.DeviceLockState {
			return &domain.DeviceLockState{
				ID:          uuid.New(),
				DeviceID:    deviceID,
				Status:      domain.LockStatusLocked,
				Reason:      current.Reason,
				InitiatedBy: current.InitiatedBy,
				InitiatedAt: current.InitiatedAt,
				ConfirmedBy: &actorRef,
				ConfirmedAt: &now,
				CreatedAt:   now,
			}
		})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "device.lock_confirmed",
		ResourceType: "device",
		ResourceID:   deviceID.String(),
	})
	s.notifyLock(ctx, deviceID, notification.EventDeviceLocked, state.Reason)

	return state, nil
}

// Unlock releases a locked device. Authorization for who may unlock is the
// caller's concern; the machine only enforces the transition.
func (s *DeviceLockService) Unlock(ctx context.Context, deviceID uuid.UUID, actor domain.Actor, reason string) (*domain.DeviceLockState, error) {
	now := time.Now()
	state, err := s.transition(ctx, deviceID, domain.LockStatusLocked, domain.LockStatusUnlocked,
		func(*domain.DeviceLockState) *domain.DeviceLockState {
			return &domain.DeviceLockState{
				ID:          uuid.New(),
				DeviceID:    deviceID,
				Status:      domain.LockStatusUnlocked,
				Reason:      reason,
				InitiatedBy: actor.String(),
				InitiatedAt: now,
				CreatedAt:   now,
			}
		})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "device.unlocked",
		ResourceType: "device",
		ResourceID:   deviceID.String(),
		Detail:       reason,
	})
	s.notifyLock(ctx, deviceID, notification.EventDeviceUnlocked, reason)

	return state, nil
}

// CurrentLockState returns the device's observable lock status. A device
// with no history is unlocked.
func (s *DeviceLockService) CurrentLockState(ctx context.Context, deviceID uuid.UUID) (string, error) {
	if _, err := s.deviceRepo.GetDevice(ctx, deviceID); err != nil {
		return "", customError.WrapDeviceNotFound(deviceID)
	}

	current, err := s.deviceRepo.CurrentLockState(ctx, deviceID)
	if err != nil {
		return "", customError.WrapDatabaseError(err)
	}
	if current == nil {
		return domain.LockStatusUnlocked, nil
	}
	return current.Status, nil
}

// LockHistory returns the device's full audit trail, newest first.
func (s *DeviceLockService) LockHistory(ctx context.Context, deviceID uuid.UUID) ([]*domain.DeviceLockState, error) {
	if _, err := s.deviceRepo.GetDevice(ctx, deviceID); err != nil {
		return nil, customError.WrapDeviceNotFound(deviceID)
	}

	history, err := s.deviceRepo.LockHistory(ctx, deviceID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return history, nil
}

// transition holds the per-device advisory lock across the guard check and
// the append, so two concurrent requests cannot both pass the guard.
func (s *DeviceLockService) transition(
	ctx context.Context,
	deviceID uuid.UUID,
	expect, next string,
	build func(current *domain.DeviceLockState) *domain.DeviceLockState,
) (*domain.DeviceLockState, error) {
	if _, err := s.deviceRepo.GetDevice(ctx, deviceID); err != nil {
		return nil, customError.WrapDeviceNotFound(deviceID)
	}

	var state *domain.DeviceLockState
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.deviceRepo.AcquireDeviceLock(ctx, deviceID); err != nil {
			return customError.WrapDatabaseError(err)
		}

		current, err := s.deviceRepo.CurrentLockState(ctx, deviceID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}

		currentStatus := domain.LockStatusUnlocked
		if current != nil {
			currentStatus = current.Status
		}
		if currentStatus != expect {
			return customError.NewInvalidTransition(deviceID, currentStatus, next)
		}

		state = build(current)
		if err := s.deviceRepo.AppendLockState(ctx, state); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("device lock transition",
		zap.String("device_id", deviceID.String()),
		zap.String("from", expect),
		zap.String("to", next),
	)

	return state, nil
}

func (s *DeviceLockService) notifyLock(ctx context.Context, deviceID uuid.UUID, eventType, detail string) {
	device, err := s.deviceRepo.GetDevice(ctx, deviceID)
	if err != nil {
		s.logger.Warn("lock notification skipped", zap.String("device_id", deviceID.String()), zap.Error(err))
		return
	}

	id := deviceID
	s.notifier.Dispatch(ctx, notification.Event{
		Type:     eventType,
		LoanID:   device.LoanID,
		DeviceID: &id,
		Detail:   detail,
	})
}
