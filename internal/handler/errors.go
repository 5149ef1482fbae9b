package handler

import (
	"errors"
	"net/http"

	customError "github.com/ponselpay/financing-engine/pkg/errors"
	"github.com/ponselpay/financing-engine/pkg/response"
)

// writeServiceError maps the service error taxonomy onto HTTP statuses:
// not-found 404, state conflicts 409, infrastructure 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var transitionErr *customError.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		response.Conflict(w, customError.ErrCodeInvalidLockTransition, transitionErr.Error(), nil)
		return
	}

	var businessErr *customError.BusinessError
	if errors.As(err, &businessErr) {
		switch businessErr.Code {
		case customError.ErrCodeLoanNotFound,
			customError.ErrCodeInstallmentNotFound,
			customError.ErrCodePaymentNotFound,
			customError.ErrCodeDeviceNotFound:
			response.ErrorWithCode(w, http.StatusNotFound, businessErr.Code, businessErr.Message, nil)
			return
		case customError.ErrCodePaymentNotVerified,
			customError.ErrCodePaymentNotPending,
			customError.ErrCodeLoanMismatch,
			customError.ErrCodeLoanNotCancellable,
			customError.ErrCodeInstallmentSettled,
			customError.ErrCodeOverAllocation:
			response.Conflict(w, businessErr.Code, businessErr.Message, nil)
			return
		}
	}

	response.InternalServerError(w, "operation failed", err)
}
