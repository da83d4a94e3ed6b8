package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of application error
type Kind string

// Error kinds surfaced to callers
const (
	KindUnauthenticated       Kind = "unauthenticated"
	KindNoTenantBinding       Kind = "no_tenant_binding"
	KindClinicInactive        Kind = "clinic_inactive"
	KindPermissionDenied      Kind = "permission_denied"
	KindSlotConflict          Kind = "slot_conflict"
	KindClinicBookingDisabled Kind = "clinic_booking_disabled"
	KindAppointmentNotFound   Kind = "appointment_not_found"
	KindSessionAlreadyExists  Kind = "session_already_exists"
	KindIncompleteNarrative   Kind = "incomplete_narrative"
	KindInvalidPainLevel      Kind = "invalid_pain_level"
	KindDuplicatePatient      Kind = "duplicate_patient"
	KindDuplicateLogForDate   Kind = "duplicate_log_for_date"
	KindStorageUnavailable    Kind = "storage_unavailable"

	KindInvalidInput         Kind = "invalid_input"
	KindInvalidTransition    Kind = "invalid_transition"
	KindClinicNotFound       Kind = "clinic_not_found"
	KindPatientNotFound      Kind = "patient_not_found"
	KindServiceNotFound      Kind = "service_not_found"
	KindTherapistNotFound    Kind = "therapist_not_found"
	KindExerciseNotFound     Kind = "exercise_not_found"
	KindPrescriptionNotFound Kind = "prescription_not_found"
	KindSessionNotFound      Kind = "session_not_found"
)

var messages = map[Kind]string{
	KindUnauthenticated:       "authentication required",
	KindNoTenantBinding:       "account is not a member of any active clinic",
	KindClinicInactive:        "clinic is inactive",
	KindPermissionDenied:      "you do not have permission to perform this action",
	KindSlotConflict:          "the requested time slot is not available",
	KindClinicBookingDisabled: "online booking is disabled for this clinic",
	KindAppointmentNotFound:   "appointment not found",
	KindSessionAlreadyExists:  "a session note already exists for this appointment",
	KindIncompleteNarrative:   "subjective, objective, assessment and plan are all required",
	KindInvalidPainLevel:      "pain level must be between 0 and 10",
	KindDuplicatePatient:      "a patient with this email already exists in the clinic",
	KindDuplicateLogForDate:   "adherence has already been logged for this date",
	KindStorageUnavailable:    "storage is temporarily unavailable, please retry",
	KindInvalidInput:          "invalid input",
	KindInvalidTransition:     "appointment or prescription cannot change state from its current status",
	KindClinicNotFound:        "clinic not found",
	KindPatientNotFound:       "patient not found",
	KindServiceNotFound:       "service not found",
	KindTherapistNotFound:     "therapist not found",
	KindExerciseNotFound:      "exercise not found",
	KindPrescriptionNotFound:  "prescription not found",
	KindSessionNotFound:       "session not found",
}

var statuses = map[Kind]int{
	KindUnauthenticated:       http.StatusUnauthorized,
	KindNoTenantBinding:       http.StatusForbidden,
	KindClinicInactive:        http.StatusForbidden,
	KindPermissionDenied:      http.StatusForbidden,
	KindSlotConflict:          http.StatusConflict,
	KindClinicBookingDisabled: http.StatusUnprocessableEntity,
	KindAppointmentNotFound:   http.StatusNotFound,
	KindSessionAlreadyExists:  http.StatusConflict,
	KindIncompleteNarrative:   http.StatusUnprocessableEntity,
	KindInvalidPainLevel:      http.StatusUnprocessableEntity,
	KindDuplicatePatient:      http.StatusConflict,
	KindDuplicateLogForDate:   http.StatusConflict,
	KindStorageUnavailable:    http.StatusServiceUnavailable,
	KindInvalidInput:          http.StatusBadRequest,
	KindInvalidTransition:     http.StatusConflict,
	KindClinicNotFound:        http.StatusNotFound,
	KindPatientNotFound:       http.StatusNotFound,
	KindServiceNotFound:       http.StatusNotFound,
	KindTherapistNotFound:     http.StatusNotFound,
	KindExerciseNotFound:      http.StatusNotFound,
	KindPrescriptionNotFound:  http.StatusNotFound,
	KindSessionNotFound:       http.StatusNotFound,
}

// Message returns the user-facing message for the kind
func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return "internal server error"
}

// HTTPStatus maps the kind to a response status code
func (k Kind) HTTPStatus() int {
	if s, ok := statuses[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports kind equality so sentinel values work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// StatusCode lets transport layers pick the response status.
func (e *AppError) StatusCode() int {
	return e.Kind.HTTPStatus()
}

// Sentinels for errors.Is comparisons
var (
	ErrUnauthenticated       = &AppError{Kind: KindUnauthenticated, Message: KindUnauthenticated.Message()}
	ErrNoTenantBinding       = &AppError{Kind: KindNoTenantBinding, Message: KindNoTenantBinding.Message()}
	ErrClinicInactive        = &AppError{Kind: KindClinicInactive, Message: KindClinicInactive.Message()}
	ErrPermissionDenied      = &AppError{Kind: KindPermissionDenied, Message: KindPermissionDenied.Message()}
	ErrSlotConflict          = &AppError{Kind: KindSlotConflict, Message: KindSlotConflict.Message()}
	ErrClinicBookingDisabled = &AppError{Kind: KindClinicBookingDisabled, Message: KindClinicBookingDisabled.Message()}
	ErrAppointmentNotFound   = &AppError{Kind: KindAppointmentNotFound, Message: KindAppointmentNotFound.Message()}
	ErrSessionAlreadyExists  = &AppError{Kind: KindSessionAlreadyExists, Message: KindSessionAlreadyExists.Message()}
	ErrIncompleteNarrative   = &AppError{Kind: KindIncompleteNarrative, Message: KindIncompleteNarrative.Message()}
	ErrInvalidPainLevel      = &AppError{Kind: KindInvalidPainLevel, Message: KindInvalidPainLevel.Message()}
	ErrDuplicatePatient      = &AppError{Kind: KindDuplicatePatient, Message: KindDuplicatePatient.Message()}
	ErrDuplicateLogForDate   = &AppError{Kind: KindDuplicateLogForDate, Message: KindDuplicateLogForDate.Message()}
	ErrStorageUnavailable    = &AppError{Kind: KindStorageUnavailable, Message: KindStorageUnavailable.Message()}
	ErrInvalidInput          = &AppError{Kind: KindInvalidInput, Message: KindInvalidInput.Message()}
	ErrInvalidTransition     = &AppError{Kind: KindInvalidTransition, Message: KindInvalidTransition.Message()}
	ErrClinicNotFound        = &AppError{Kind: KindClinicNotFound, Message: KindClinicNotFound.Message()}
	ErrPatientNotFound       = &AppError{Kind: KindPatientNotFound, Message: KindPatientNotFound.Message()}
	ErrServiceNotFound       = &AppError{Kind: KindServiceNotFound, Message: KindServiceNotFound.Message()}
	ErrTherapistNotFound     = &AppError{Kind: KindTherapistNotFound, Message: KindTherapistNotFound.Message()}
	ErrExerciseNotFound      = &AppError{Kind: KindExerciseNotFound, Message: KindExerciseNotFound.Message()}
	ErrPrescriptionNotFound  = &AppError{Kind: KindPrescriptionNotFound, Message: KindPrescriptionNotFound.Message()}
	ErrSessionNotFound       = &AppError{Kind: KindSessionNotFound, Message: KindSessionNotFound.Message()}
)

// New builds an error of the given kind with the kind's default message
func New(kind Kind, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: kind.Message(),
		Err:     err,
	}
}

// Newf builds an error of the given kind with a specific message
func Newf(kind Kind, format string, args ...interface{}) *AppError {
	return &AppError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidInput wraps a validation failure
func InvalidInput(message string, err error) *AppError {
	return &AppError{
		Kind:    KindInvalidInput,
		Message: message,
		Err:     err,
	}
}

// StorageUnavailable hides driver detail behind a generic kind
func StorageUnavailable(err error) *AppError {
	return New(KindStorageUnavailable, err)
}

// KindOf returns the kind of err, or "" when err is not an AppError
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// As is a shortcut for errors.As against *AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
