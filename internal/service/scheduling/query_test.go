package scheduling_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/testutil"
	apperrors "github.com/jwalitptl/clinic-core/pkg/errors"
)

func TestGetAppointmentVisibility(t *testing.T) {
	ctx := context.Background()
	c := testutil.NewClinic(nil, "north")
	engine := newEngine(c, nil)
	p := c.AddPatient("v@example.com")
	mine := c.Book(p.ID, c.TherapistID, testutil.At(testutil.Tomorrow, 10, 0))
	theirs := c.Book(p.ID, c.OtherTherapist, testutil.At(testutil.Tomorrow, 10, 0))

	got, err := engine.GetAppointment(ctx, c.Therapist(), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = engine.GetAppointment(ctx, c.Therapist(), theirs.ID)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	_, err = engine.GetAppointment(ctx, c.Receptionist(), theirs.ID)
	assert.NoError(t, err)

	_, err = engine.GetAppointment(ctx, c.Manager(), uuid.New())
	assert.Equal(t, apperrors.KindAppointmentNotFound, apperrors.KindOf(err))
}

func TestListAppointments(t *testing.T) {
	ctx := context.Background()
	c := testutil.NewClinic(nil, "north")
	other := testutil.NewClinic(c.Store, "south")
	engine := newEngine(c, nil)

	p, userID := c.AddPatientUser("list@example.com")
	q := c.AddPatient("q@example.com")
	a1 := c.Book(p.ID, c.TherapistID, testutil.At(testutil.Tomorrow, 11, 0))
	a2 := c.Book(q.ID, c.TherapistID, testutil.At(testutil.Tomorrow, 9, 0))
	a3 := c.Book(q.ID, c.OtherTherapist, testutil.At(testutil.Tomorrow, 9, 0))
	foreign := other.AddPatient("f@example.com")
	other.Book(foreign.ID, other.TherapistID, testutil.At(testutil.Tomorrow, 9, 0))

	t.Run("staff see the whole clinic ordered by start", func(t *testing.T) {
		list, err := engine.ListAppointments(ctx, c.Receptionist(), model.AppointmentFilters{})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.False(t, list[0].StartTime.After(list[1].StartTime))
		assert.Equal(t, a1.ID, list[2].ID)
	})

	t.Run("therapist filter is forced for view_own", func(t *testing.T) {
		otherID := c.OtherTherapist
		list, err := engine.ListAppointments(ctx, c.Therapist(), model.AppointmentFilters{TherapistID: &otherID})
		require.NoError(t, err)
		require.Len(t, list, 2)
		for _, a := range list {
			assert.True(t, a.AssignedTo(c.TherapistID))
		}
		assert.NotContains(t, []uuid.UUID{list[0].ID, list[1].ID}, a3.ID)
		assert.Contains(t, []uuid.UUID{list[0].ID, list[1].ID}, a2.ID)
	})

	t.Run("patient sees only linked appointments", func(t *testing.T) {
		list, err := engine.ListAppointments(ctx, c.As(model.RolePatient, userID), model.AppointmentFilters{})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, a1.ID, list[0].ID)
	})

	t.Run("empty result is an empty slice", func(t *testing.T) {
		status := model.AppointmentStatusNoShow
		list, err := engine.ListAppointments(ctx, c.Manager(), model.AppointmentFilters{Status: &status})
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("public callers cannot list", func(t *testing.T) {
		_, err := engine.ListAppointments(ctx, c.Public(), model.AppointmentFilters{})
		assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))
	})
}
