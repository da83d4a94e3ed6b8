package scheduling

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/permission"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
)

type SlotQuery struct {
	ServiceID   uuid.UUID  `json:"service_id" form:"service_id" validate:"required"`
	TherapistID *uuid.UUID `json:"therapist_id,omitempty" form:"therapist_id"`
	Date        model.Date `json:"date" form:"date"`
}

// windows returns the opening hours of date in the clinic's timezone. A clinic
// without configured hours uses the default window; a configured clinic that
// does not list the weekday is closed.
func (e *Engine) windows(clinic *model.Clinic, date model.Date) ([][2]int, error) {
	var days []model.WorkingDay
	if clinic.WorkingHours.Configured() {
		days = clinic.WorkingHours.For(date.Weekday())
	} else {
		days = []model.WorkingDay{{Weekday: date.Weekday(), Open: e.cfg.DefaultOpen, Close: e.cfg.DefaultClose}}
	}

	out := make([][2]int, 0, len(days))
	for _, d := range days {
		open, err := model.ClockTime(d.Open)
		if err != nil {
			return nil, err
		}
		closing, err := model.ClockTime(d.Close)
		if err != nil {
			return nil, err
		}
		if closing > open {
			out = append(out, [2]int{open, closing})
		}
	}
	return out, nil
}

// grid lays slots of durationMinutes back to back from each opening. It is
// the single definition of which start times are bookable.
func (e *Engine) grid(clinic *model.Clinic, date model.Date, durationMinutes int) ([]model.TimeSlot, error) {
	if durationMinutes <= 0 {
		return nil, nil
	}
	windows, err := e.windows(clinic, date)
	if err != nil {
		return nil, errors.New(errors.KindInvalidInput, err)
	}

	loc := clinic.Location()
	day := date.Time()
	var slots []model.TimeSlot
	for _, w := range windows {
		for m := w[0]; m+durationMinutes <= w[1]; m += durationMinutes {
			start := time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, loc)
			slots = append(slots, model.TimeSlot{Start: start, End: model.SlotEnd(start, durationMinutes)})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return dedupe(slots), nil
}

// dedupe drops slots that overlap an earlier one when windows overlap
func dedupe(slots []model.TimeSlot) []model.TimeSlot {
	out := slots[:0]
	for _, s := range slots {
		if len(out) > 0 && out[len(out)-1].Overlaps(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// onGrid reports whether start is a slot boundary for the given duration
func (e *Engine) onGrid(clinic *model.Clinic, start time.Time, durationMinutes int) (bool, error) {
	date := model.DateOf(start.In(clinic.Location()))
	slots, err := e.grid(clinic, date, durationMinutes)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s.Start.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

// bookable applies the time policy: never in the past, and within the
// self-service window for patient and public callers.
func (e *Engine) bookable(tc *tenant.Context, start time.Time) bool {
	now := e.now()
	if start.Before(now) {
		return false
	}
	if !tc.IsSelfService() {
		return true
	}
	if e.cfg.MinLeadTime > 0 && start.Before(now.Add(e.cfg.MinLeadTime)) {
		return false
	}
	if e.cfg.MaxHorizon > 0 && start.After(now.Add(e.cfg.MaxHorizon)) {
		return false
	}
	return true
}

// GetAvailableSlots lists free slots for a service on a date, ascending
func (e *Engine) GetAvailableSlots(ctx context.Context, tc *tenant.Context, q SlotQuery) ([]model.TimeSlot, error) {
	if err := permission.Require(tc, permission.SlotsView); err != nil {
		return nil, err
	}
	if q.ServiceID == uuid.Nil || q.Date.IsZero() {
		return nil, errors.InvalidInput("service_id and date are required", nil)
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}

	clinic, err := e.clinic(ctx, e.store, scope)
	if err != nil {
		return nil, err
	}
	svc, err := e.service(ctx, e.store, scope, q.ServiceID)
	if err != nil {
		return nil, err
	}
	if q.TherapistID != nil {
		if err := e.therapist(ctx, e.store, scope, *q.TherapistID); err != nil {
			return nil, err
		}
	}

	slots, err := e.grid(clinic, q.Date, svc.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return []model.TimeSlot{}, nil
	}

	var busy []*model.Appointment
	if q.TherapistID != nil {
		busy, err = e.store.Appointments().ListScheduledForTherapist(ctx, scope, *q.TherapistID,
			slots[0].Start, slots[len(slots)-1].End)
		if err != nil {
			return nil, repository.Translate(err, errors.KindAppointmentNotFound)
		}
	}

	free := make([]model.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if !e.bookable(tc, s.Start) {
			continue
		}
		if overlapsAny(busy, s) {
			continue
		}
		free = append(free, s)
	}
	return free, nil
}

func overlapsAny(appts []*model.Appointment, s model.TimeSlot) bool {
	for _, a := range appts {
		if a.Overlaps(s.Start, s.End) {
			return true
		}
	}
	return false
}
