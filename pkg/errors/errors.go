package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Domain errors
var (
	ErrLoanNotFound          = errors.New("loan not found")
	ErrInstallmentNotFound   = errors.New("installment not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrDeviceNotFound        = errors.New("device not found")
	ErrPaymentNotVerified    = errors.New("payment is not verified")
	ErrPaymentNotPending     = errors.New("payment verification already settled")
	ErrLoanMismatch          = errors.New("payment and installment belong to different loans")
	ErrLoanNotCancellable    = errors.New("loan cannot be cancelled")
	ErrInstallmentSettled    = errors.New("installment has no remaining amount")
	ErrOverAllocation        = errors.New("allocation exceeds remaining amount")
	ErrInvalidLockTransition = errors.New("invalid lock state transition")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound          = "LOAN_NOT_FOUND"
	ErrCodeInstallmentNotFound   = "INSTALLMENT_NOT_FOUND"
	ErrCodePaymentNotFound       = "PAYMENT_NOT_FOUND"
	ErrCodeDeviceNotFound        = "DEVICE_NOT_FOUND"
	ErrCodePaymentNotVerified    = "PAYMENT_NOT_VERIFIED"
	ErrCodePaymentNotPending     = "PAYMENT_NOT_PENDING"
	ErrCodeLoanMismatch          = "LOAN_MISMATCH"
	ErrCodeLoanNotCancellable    = "LOAN_NOT_CANCELLABLE"
	ErrCodeInstallmentSettled    = "INSTALLMENT_SETTLED"
	ErrCodeOverAllocation        = "OVER_ALLOCATION"
	ErrCodeInvalidLockTransition = "INVALID_LOCK_TRANSITION"
	ErrCodeDatabaseError         = "DATABASE_ERROR"
)

// InvalidTransitionError is returned when a lock-machine guard fails. It
// names the state the device is actually in so callers can refresh and
// retry instead of treating the conflict as a crash.
type InvalidTransitionError struct {
	DeviceID  uuid.UUID
	Current   string
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: device %s is %s, cannot transition to %s",
		ErrCodeInvalidLockTransition, e.DeviceID, e.Current, e.Requested)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidLockTransition
}

func NewInvalidTransition(deviceID uuid.UUID, current, requested string) *InvalidTransitionError {
	return &InvalidTransitionError{DeviceID: deviceID, Current: current, Requested: requested}
}

// Wrap common errors with business context

func WrapLoanNotFound(loanID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapInstallmentNotFound(installmentID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentNotFound,
		fmt.Sprintf("Installment %s not found", installmentID),
		ErrInstallmentNotFound,
	)
}

func WrapPaymentNotFound(paymentID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment %s not found", paymentID),
		ErrPaymentNotFound,
	)
}

func WrapDeviceNotFound(deviceID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrCodeDeviceNotFound,
		fmt.Sprintf("Device %s not found", deviceID),
		ErrDeviceNotFound,
	)
}

func WrapPaymentNotVerified(paymentID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotVerified,
		fmt.Sprintf("Payment %s is not verified and cannot be allocated", paymentID),
		ErrPaymentNotVerified,
	)
}

func WrapPaymentNotPending(paymentID uuid.UUID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotPending,
		fmt.Sprintf("Payment %s verification is already %s", paymentID, status),
		ErrPaymentNotPending,
	)
}

func WrapLoanMismatch(paymentID, installmentID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanMismatch,
		fmt.Sprintf("Payment %s and installment %s belong to different loans", paymentID, installmentID),
		ErrLoanMismatch,
	)
}

func WrapOverAllocation(installmentID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrCodeOverAllocation,
		fmt.Sprintf("Allocation against installment %s exceeds its remaining amount", installmentID),
		ErrOverAllocation,
	)
}

func WrapInstallmentSettled(installmentID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentSettled,
		fmt.Sprintf("Installment %s has no remaining amount to pay", installmentID),
		ErrInstallmentSettled,
	)
}

func WrapLoanNotCancellable(loanID uuid.UUID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotCancellable,
		fmt.Sprintf("Loan %s in status %s cannot be cancelled", loanID, status),
		ErrLoanNotCancellable,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}
