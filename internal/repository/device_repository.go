package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ponselpay/financing-engine/internal/domain"
)

type deviceRepository struct {
	db *sqlx.DB
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) CreateDevice(ctx context.Context, device *domain.Device) error {
	query := `
		INSERT INTO devices (id, loan_id, brand, model, imei, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		device.ID,
		device.LoanID,
		device.Brand,
		device.Model,
		device.IMEI,
		device.CreatedAt,
	)

	return err
}

func (r *deviceRepository) GetDevice(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	query := `
		SELECT id, loan_id, brand, model, imei, created_at
		FROM devices
		WHERE id = $1
	`

	var device domain.Device
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &device, query, id); err != nil {
		return nil, err
	}

	return &device, nil
}

func (r *deviceRepository) GetDeviceByLoan(ctx context.Context, loanID uuid.UUID) (*domain.Device, error) {
	query := `
		SELECT id, loan_id, brand, model, imei, created_at
		FROM devices
		WHERE loan_id = $1
	`

	var device domain.Device
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &device, query, loanID); err != nil {
		return nil, err
	}

	return &device, nil
}

// AcquireDeviceLock serializes lock-state transitions per device. The
// advisory lock is transaction scoped, so the guard check and the append
// see a stable latest row until commit.
func (r *deviceRepository) AcquireDeviceLock(ctx context.Context, deviceID uuid.UUID) error {
	if txFrom(ctx) == nil {
		return fmt.Errorf("advisory lock for device %s requires a transaction", deviceID)
	}

	query := `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	_, err := ext(ctx, r.db).ExecContext(ctx, query, deviceID.String())
	return err
}

func (r *deviceRepository) CurrentLockState(ctx context.Context, deviceID uuid.UUID) (*domain.DeviceLockState, error) {
	query := `
		SELECT id, device_id, status, reason, initiated_by, initiated_at,
			confirmed_by, confirmed_at, created_at
		FROM device_lock_states
		WHERE device_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var state domain.DeviceLockState
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &state, query, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		// No history yet: the device is implicitly unlocked.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &state, nil
}

func (r *deviceRepository) AppendLockState(ctx context.Context, state *domain.DeviceLockState) error {
	query := `
		INSERT INTO device_lock_states (id, device_id, status, reason, initiated_by, initiated_at,
			confirmed_by, confirmed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		state.ID,
		state.DeviceID,
		state.Status,
		state.Reason,
		state.InitiatedBy,
		state.InitiatedAt,
		state.ConfirmedBy,
		state.ConfirmedAt,
		state.CreatedAt,
	)

	return err
}

func (r *deviceRepository) LockHistory(ctx context.Context, deviceID uuid.UUID) ([]*domain.DeviceLockState, error) {
	query := `
		SELECT id, device_id, status, reason, initiated_by, initiated_at,
			confirmed_by, confirmed_at, created_at
		FROM device_lock_states
		WHERE device_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var history []*domain.DeviceLockState
	if err := sqlx.SelectContext(ctx, ext(ctx, r.db), &history, query, deviceID); err != nil {
		return nil, err
	}

	return history, nil
}

func (r *deviceRepository) AutoBlockCandidates(ctx context.Context, cutoff time.Time) ([]*domain.Device, error) {
	query := `
		SELECT DISTINCT d.id, d.loan_id, d.brand, d.model, d.imei, d.created_at
		FROM devices d
		JOIN installments i ON i.loan_id = d.loan_id
		WHERE i.status = 'overdue' AND i.due_date <= $1
		ORDER BY d.created_at
	`

	var devices []*domain.Device
	if err := sqlx.SelectContext(ctx, ext(ctx, r.db), &devices, query, cutoff); err != nil {
		return nil, err
	}

	return devices, nil
}
