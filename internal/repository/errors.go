package repository

import (
	"errors"

	apperrors "github.com/jwalitptl/clinic-core/pkg/errors"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicatePatient = errors.New("patient email already exists in clinic")
	ErrOverlap          = errors.New("therapist interval overlaps a scheduled appointment")
	ErrSessionExists    = errors.New("session already exists for appointment")
	ErrDuplicateLog     = errors.New("adherence already logged for date")
	// ErrStale means a conditional update matched no row in the expected state
	ErrStale        = errors.New("row changed concurrently")
	ErrInvalidScope = errors.New("invalid clinic scope")
)

// Translate maps a store error onto the application taxonomy. ErrNotFound
// becomes notFound; anything unrecognised is StorageUnavailable.
func Translate(err error, notFound apperrors.Kind) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return apperrors.New(notFound, err)
	case errors.Is(err, ErrInvalidScope):
		return apperrors.New(apperrors.KindNoTenantBinding, err)
	case errors.Is(err, ErrDuplicatePatient):
		return apperrors.New(apperrors.KindDuplicatePatient, err)
	case errors.Is(err, ErrOverlap):
		return apperrors.New(apperrors.KindSlotConflict, err)
	case errors.Is(err, ErrSessionExists):
		return apperrors.New(apperrors.KindSessionAlreadyExists, err)
	case errors.Is(err, ErrDuplicateLog):
		return apperrors.New(apperrors.KindDuplicateLogForDate, err)
	case errors.Is(err, ErrStale):
		return apperrors.New(apperrors.KindInvalidTransition, err)
	default:
		return apperrors.StorageUnavailable(err)
	}
}
