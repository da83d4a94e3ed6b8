package scheduling_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/service/scheduling"
	"github.com/jwalitptl/clinic-core/internal/testutil"
	apperrors "github.com/jwalitptl/clinic-core/pkg/errors"
)

func newEngine(c *testutil.Clinic, n *testutil.Notifier) *scheduling.Engine {
	if n == nil {
		n = &testutil.Notifier{}
	}
	return scheduling.NewEngine(c.Store, n, scheduling.DefaultConfig(), scheduling.WithClock(testutil.Clock))
}

func starts(slots []model.TimeSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.UTC().Format("15:04"))
	}
	return out
}

func TestGetAvailableSlots(t *testing.T) {
	ctx := context.Background()

	t.Run("excludes slots taken by the therapist", func(t *testing.T) {
		c := testutil.NewClinic(nil, "north")
		p := c.AddPatient("booked@example.com")
		c.Book(p.ID, c.TherapistID, testutil.At(testutil.Tomorrow, 10, 0))
		engine := newEngine(c, nil)

		therapistID := c.TherapistID
		slots, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{
			ServiceID:   c.Service.ID,
			TherapistID: &therapistID,
			Date:        testutil.Tomorrow,
		})
		require.NoError(t, err)

		got := starts(slots)
		assert.Equal(t, []string{"09:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}, got)
		assert.NotContains(t, got, "10:00")
	})

	t.Run("another therapist's appointment does not block", func(t *testing.T) {
		c := testutil.NewClinic(nil, "north")
		p := c.AddPatient("booked@example.com")
		c.Book(p.ID, c.OtherTherapist, testutil.At(testutil.Tomorrow, 10, 0))
		engine := newEngine(c, nil)

		therapistID := c.TherapistID
		slots, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{
			ServiceID:   c.Service.ID,
			TherapistID: &therapistID,
			Date:        testutil.Tomorrow,
		})
		require.NoError(t, err)
		assert.Len(t, slots, 8)
		assert.Contains(t, starts(slots), "10:00")
	})

	t.Run("cancelled appointments free their slot", func(t *testing.T) {
		c := testutil.NewClinic(nil, "north")
		p := c.AddPatient("booked@example.com")
		appt := c.Book(p.ID, c.TherapistID, testutil.At(testutil.Tomorrow, 10, 0))
		engine := newEngine(c, nil)
		_, err := engine.CancelAppointment(ctx, c.Receptionist(), appt.ID, "patient called")
		require.NoError(t, err)

		therapistID := c.TherapistID
		slots, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{
			ServiceID:   c.Service.ID,
			TherapistID: &therapistID,
			Date:        testutil.Tomorrow,
		})
		require.NoError(t, err)
		assert.Contains(t, starts(slots), "10:00")
	})

	t.Run("closed weekday yields an empty list", func(t *testing.T) {
		c := testutil.NewClinic(nil, "north")
		clinic := c.Clinic
		clinic.WorkingHours = model.WorkingHours{{Weekday: time.Monday, Open: "08:00", Close: "12:00"}}
		c.Store.AddClinic(clinic)
		engine := newEngine(c, nil)

		slots, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{
			ServiceID: c.Service.ID,
			Date:      testutil.Tomorrow,
		})
		require.NoError(t, err)
		assert.NotNil(t, slots)
		assert.Empty(t, slots)
	})

	t.Run("split working hours", func(t *testing.T) {
		c := testutil.NewClinic(nil, "north")
		clinic := c.Clinic
		clinic.WorkingHours = model.WorkingHours{
			{Weekday: time.Tuesday, Open: "14:00", Close: "16:30"},
			{Weekday: time.Tuesday, Open: "08:00", Close: "10:00"},
		}
		c.Store.AddClinic(clinic)
		engine := newEngine(c, nil)

		slots, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{
			ServiceID: c.Service.ID,
			Date:      testutil.Tomorrow,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"08:00", "09:00", "14:00", "15:00"}, starts(slots))
	})

	t.Run("window closing at midnight", func(t *testing.T) {
		c := testutil.NewClinic(nil, "north")
		clinic := c.Clinic
		clinic.WorkingHours = model.WorkingHours{{Weekday: time.Tuesday, Open: "21:00", Close: "24:00"}}
		c.Store.AddClinic(clinic)
		engine := newEngine(c, nil)

		slots, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{
			ServiceID: c.Service.ID,
			Date:      testutil.Tomorrow,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"21:00", "22:00", "23:00"}, starts(slots))
	})

	t.Run("past slots are never offered", func(t *testing.T) {
		c := testutil.NewClinic(nil, "north")
		engine := newEngine(c, nil)

		slots, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{
			ServiceID: c.Service.ID,
			Date:      model.DateOf(testutil.Now),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"12:00", "13:00", "14:00", "15:00", "16:00"}, starts(slots))
	})

	t.Run("self-service callers respect the lead time", func(t *testing.T) {
		c := testutil.NewClinic(nil, "north")
		engine := newEngine(c, nil)

		slots, err := engine.GetAvailableSlots(ctx, c.Public(), scheduling.SlotQuery{
			ServiceID: c.Service.ID,
			Date:      model.DateOf(testutil.Now),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"13:00", "14:00", "15:00", "16:00"}, starts(slots))
	})

	t.Run("unknown service", func(t *testing.T) {
		c := testutil.NewClinic(nil, "north")
		engine := newEngine(c, nil)

		_, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{
			ServiceID: uuid.New(),
			Date:      testutil.Tomorrow,
		})
		assert.Equal(t, apperrors.KindServiceNotFound, apperrors.KindOf(err))
	})

	t.Run("therapist must belong to the clinic", func(t *testing.T) {
		c := testutil.NewClinic(nil, "north")
		other := testutil.NewClinic(c.Store, "south")
		engine := newEngine(c, nil)

		foreign := other.TherapistID
		_, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{
			ServiceID:   c.Service.ID,
			TherapistID: &foreign,
			Date:        testutil.Tomorrow,
		})
		assert.Equal(t, apperrors.KindTherapistNotFound, apperrors.KindOf(err))
	})

	t.Run("missing date", func(t *testing.T) {
		c := testutil.NewClinic(nil, "north")
		engine := newEngine(c, nil)

		_, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{ServiceID: c.Service.ID})
		assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
	})
}

func TestEverySlotOfferedIsBookable(t *testing.T) {
	ctx := context.Background()
	c := testutil.NewClinic(nil, "north")
	engine := newEngine(c, nil)

	therapistID := c.TherapistID
	slots, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{
		ServiceID:   c.Service.ID,
		TherapistID: &therapistID,
		Date:        testutil.Tomorrow,
	})
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for i, s := range slots {
		appt, err := engine.BookAppointment(ctx, c.Receptionist(), booking(c, c.TherapistID, s.Start, fmt.Sprintf("slot%d@example.com", i)))
		if err != nil {
			t.Fatalf("slot %d (%s) was offered but not bookable: %v", i, s.Start, err)
		}
		assert.True(t, appt.StartTime.Equal(s.Start))
		assert.True(t, appt.EndTime().Equal(s.End))
	}

	remaining, err := engine.GetAvailableSlots(ctx, c.Receptionist(), scheduling.SlotQuery{
		ServiceID:   c.Service.ID,
		TherapistID: &therapistID,
		Date:        testutil.Tomorrow,
	})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
