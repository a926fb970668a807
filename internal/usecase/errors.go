package usecase

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindAvailability
	KindNotFound
	KindAccessDenied
	KindConflict
	KindSignature
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAvailability:
		return "availability"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindConflict:
		return "conflict"
	case KindSignature:
		return "signature"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// AppError is a business failure with a stable code and a message safe to show callers.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	// Fields carries per-field detail, e.g. which line failed.
	Fields map[string]string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches on Code so sentinel values work with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(kind ErrorKind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

// with returns a copy carrying a specific message and fields.
func (e *AppError) with(message string, fields map[string]string) *AppError {
	cp := *e
	if message != "" {
		cp.Message = message
	}
	cp.Fields = fields
	return &cp
}

func (e *AppError) wrap(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

var (
	ErrInvalidParticipants = newError(KindValidation, "invalid_participants", "At least one participant is required")
	ErrMixedCurrency       = newError(KindValidation, "mixed_currency", "All activities of a booking must share a currency")
	ErrInvalidRequest      = newError(KindValidation, "invalid_request", "Invalid request")

	ErrNotAvailable = newError(KindAvailability, "not_available", "Activity is not available")

	ErrFarmUnavailable  = newError(KindNotFound, "farm_unavailable", "Farm not found or not available for booking")
	ErrActivityNotFound = newError(KindNotFound, "activity_not_found", "Activity not found")
	ErrBookingNotFound  = newError(KindNotFound, "booking_not_found", "Booking not found")

	ErrAccessDenied = newError(KindAccessDenied, "access_denied", "Not authorized to access this booking")

	ErrAlreadyCancelled  = newError(KindValidation, "already_cancelled", "Booking is already cancelled")
	ErrInvalidTransition = newError(KindConflict, "invalid_transition", "Booking status does not allow this change")
	ErrPaymentCommitted  = newError(KindConflict, "payment_committed", "Booking has a completed payment, cancellation needs a refund")

	ErrInvalidSignature = newError(KindSignature, "invalid_signature", "Webhook signature verification failed")

	ErrDependencyUnavailable = newError(KindTransient, "dependency_unavailable", "A required service is temporarily unavailable")
)

// KindOf returns the kind of err, or 0 for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return 0
}
