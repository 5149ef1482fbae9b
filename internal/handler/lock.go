package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ponselpay/financing-engine/internal/domain"
	"github.com/ponselpay/financing-engine/internal/service"
	"github.com/ponselpay/financing-engine/pkg/response"
)

type DeviceLockHandler struct {
	lockService *service.DeviceLockService
	validator   *validator.Validate
}

func NewDeviceLockHandler(lockService *service.DeviceLockService) *DeviceLockHandler {
	return &DeviceLockHandler{
		lockService: lockService,
		validator:   validator.New(),
	}
}

// RequestLock moves an unlocked device to pending.
func (h *DeviceLockHandler) RequestLock(w http.ResponseWriter, r *http.Request) {
	actor, deviceID, req, ok := h.transitionInput(w, r, true)
	if !ok {
		return
	}

	state, err := h.lockService.RequestLock(r.Context(), deviceID, actor, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, state)
}

// ConfirmLock moves a pending device to locked.
func (h *DeviceLockHandler) ConfirmLock(w http.ResponseWriter, r *http.Request) {
	actor, deviceID, _, ok := h.transitionInput(w, r, false)
	if !ok {
		return
	}

	state, err := h.lockService.ConfirmLock(r.Context(), deviceID, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, state)
}

// Unlock releases a locked device. Only higher-privileged callers reach
// this endpoint; the gateway enforces that.
func (h *DeviceLockHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	actor, deviceID, req, ok := h.transitionInput(w, r, true)
	if !ok {
		return
	}

	state, err := h.lockService.Unlock(r.Context(), deviceID, actor, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, state)
}

// CurrentState returns the device's observable lock status.
func (h *DeviceLockHandler) CurrentState(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := pathUUID(w, r, "deviceId")
	if !ok {
		return
	}

	status, err := h.lockService.CurrentLockState(r.Context(), deviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, map[string]string{
		"device_id": deviceID.String(),
		"status":    status,
	})
}

// History returns the device's lock audit trail, newest first.
func (h *DeviceLockHandler) History(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := pathUUID(w, r, "deviceId")
	if !ok {
		return
	}

	history, err := h.lockService.LockHistory(r.Context(), deviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, history)
}

func (h *DeviceLockHandler) transitionInput(w http.ResponseWriter, r *http.Request, needReason bool) (domain.Actor, uuid.UUID, *domain.LockTransitionRequest, bool) {
	actorID := r.Header.Get(ActorHeader)
	if actorID == "" {
		response.BadRequest(w, ActorHeader+" header is required", nil)
		return domain.Actor{}, uuid.Nil, nil, false
	}

	deviceID, ok := pathUUID(w, r, "deviceId")
	if !ok {
		return domain.Actor{}, uuid.Nil, nil, false
	}

	req := &domain.LockTransitionRequest{}
	if needReason {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			response.BadRequest(w, "invalid request body", err)
			return domain.Actor{}, uuid.Nil, nil, false
		}
		if err := h.validator.Struct(req); err != nil {
			response.BadRequest(w, "reason is required", err)
			return domain.Actor{}, uuid.Nil, nil, false
		}
	}

	return domain.HumanActor(actorID), deviceID, req, true
}
