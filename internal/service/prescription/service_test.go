package prescription_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/service/prescription"
	"github.com/jwalitptl/clinic-core/internal/testutil"
	apperrors "github.com/jwalitptl/clinic-core/pkg/errors"
)

var start = model.NewDate(2030, 3, 1)

type fixture struct {
	clinic    *testutil.Clinic
	service   *prescription.Service
	patient   model.Patient
	patientID uuid.UUID
	rx        *model.Prescription
}

func setup(t *testing.T) *fixture {
	t.Helper()
	c := testutil.NewClinic(nil, "north")
	p, userID := c.AddPatientUser("rx@example.com")
	f := &fixture{
		clinic:    c,
		service:   prescription.NewService(c.Store, 0, nil, nil),
		patient:   p,
		patientID: userID,
	}
	rx, err := f.service.Prescribe(context.Background(), c.Therapist(), f.prescribeInput())
	require.NoError(t, err)
	f.rx = rx
	return f
}

func (f *fixture) prescribeInput() prescription.PrescribeInput {
	return prescription.PrescribeInput{
		PatientID:  f.patient.ID,
		ExerciseID: f.clinic.Exercise.ID,
		Dosage:     model.Dosage{Sets: 3, Reps: 12, FrequencyPerWeek: 5},
		StartDate:  start,
	}
}

func (f *fixture) log(t *testing.T, day int, completed bool) error {
	t.Helper()
	_, err := f.service.LogAdherence(context.Background(), f.clinic.As(model.RolePatient, f.patientID), prescription.AdherenceInput{
		PrescriptionID: f.rx.ID,
		Date:           start.AddDays(day),
		Completed:      completed,
	})
	return err
}

func TestPrescribe(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	assert.Equal(t, model.PrescriptionStatusActive, f.rx.Status)
	assert.Equal(t, f.clinic.TherapistID, f.rx.PrescribedBy)
	assert.Equal(t, f.clinic.Clinic.ID, f.rx.ClinicID)

	t.Run("unknown exercise", func(t *testing.T) {
		in := f.prescribeInput()
		in.ExerciseID = uuid.New()
		_, err := f.service.Prescribe(ctx, f.clinic.Therapist(), in)
		assert.Equal(t, apperrors.KindExerciseNotFound, apperrors.KindOf(err))
	})

	t.Run("unknown patient", func(t *testing.T) {
		in := f.prescribeInput()
		in.PatientID = uuid.New()
		_, err := f.service.Prescribe(ctx, f.clinic.Therapist(), in)
		assert.Equal(t, apperrors.KindPatientNotFound, apperrors.KindOf(err))
	})

	t.Run("end before start", func(t *testing.T) {
		in := f.prescribeInput()
		end := start.AddDays(-1)
		in.EndDate = &end
		_, err := f.service.Prescribe(ctx, f.clinic.Therapist(), in)
		assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
	})

	t.Run("dosage frequency is required", func(t *testing.T) {
		in := f.prescribeInput()
		in.Dosage.FrequencyPerWeek = 0
		_, err := f.service.Prescribe(ctx, f.clinic.Therapist(), in)
		assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
	})

	t.Run("receptionist cannot prescribe", func(t *testing.T) {
		_, err := f.service.Prescribe(ctx, f.clinic.Receptionist(), f.prescribeInput())
		assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	tc := f.clinic.Therapist()

	p, err := f.service.UpdateStatus(ctx, tc, f.rx.ID, model.PrescriptionStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionStatusPaused, p.Status)

	p, err = f.service.UpdateStatus(ctx, tc, f.rx.ID, model.PrescriptionStatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionStatusActive, p.Status)

	_, err = f.service.UpdateStatus(ctx, tc, f.rx.ID, model.PrescriptionStatusCompleted)
	require.NoError(t, err)

	_, err = f.service.UpdateStatus(ctx, tc, f.rx.ID, model.PrescriptionStatusActive)
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))

	_, err = f.service.UpdateStatus(ctx, tc, uuid.New(), model.PrescriptionStatusPaused)
	assert.Equal(t, apperrors.KindPrescriptionNotFound, apperrors.KindOf(err))
}

func TestLogAdherence(t *testing.T) {
	ctx := context.Background()

	t.Run("second log for a day is rejected and counted once", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.log(t, 0, true))

		err := f.log(t, 0, false)
		assert.Equal(t, apperrors.KindDuplicateLogForDate, apperrors.KindOf(err))

		sum, err := f.service.AdherenceRate(ctx, f.clinic.Therapist(), f.rx.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Logged)
		assert.Equal(t, 1, sum.Completed)
		assert.Equal(t, 1.0, sum.Rate)
	})

	t.Run("rate over the recent window", func(t *testing.T) {
		f := setup(t)
		for day := 0; day < 10; day++ {
			require.NoError(t, f.log(t, day, day%2 == 0))
		}

		sum, err := f.service.AdherenceRate(ctx, f.clinic.As(model.RolePatient, f.patientID), f.rx.ID)
		require.NoError(t, err)
		assert.Equal(t, prescription.DefaultAdherenceWindow, sum.Window)
		assert.Equal(t, 7, sum.Logged)
		// days 3..9, of which 4, 6 and 8 are completed
		assert.Equal(t, 3, sum.Completed)
		assert.InDelta(t, 3.0/7.0, sum.Rate, 1e-9)
	})

	t.Run("nothing logged is zero", func(t *testing.T) {
		f := setup(t)
		sum, err := f.service.AdherenceRate(ctx, f.clinic.Therapist(), f.rx.ID)
		require.NoError(t, err)
		assert.Zero(t, sum.Logged)
		assert.Zero(t, sum.Rate)
	})

	t.Run("paused accepts logs and completed does not", func(t *testing.T) {
		f := setup(t)
		tc := f.clinic.Therapist()

		_, err := f.service.UpdateStatus(ctx, tc, f.rx.ID, model.PrescriptionStatusPaused)
		require.NoError(t, err)
		assert.NoError(t, f.log(t, 1, true))

		_, err = f.service.UpdateStatus(ctx, tc, f.rx.ID, model.PrescriptionStatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(f.log(t, 2, true)))
	})

	t.Run("date outside the prescription", func(t *testing.T) {
		f := setup(t)
		assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(f.log(t, -1, true)))
	})

	t.Run("pain level is bounded", func(t *testing.T) {
		f := setup(t)
		pain := 12
		_, err := f.service.LogAdherence(ctx, f.clinic.Therapist(), prescription.AdherenceInput{
			PrescriptionID: f.rx.ID,
			Date:           start,
			Completed:      true,
			Actuals:        model.AdherenceActuals{PainLevel: &pain},
		})
		assert.Equal(t, apperrors.KindInvalidPainLevel, apperrors.KindOf(err))
	})

	t.Run("patients log only their own", func(t *testing.T) {
		f := setup(t)
		_, stranger := f.clinic.AddPatientUser("someone@example.com")

		_, err := f.service.LogAdherence(ctx, f.clinic.As(model.RolePatient, stranger), prescription.AdherenceInput{
			PrescriptionID: f.rx.ID,
			Date:           start,
			Completed:      true,
		})
		assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

		_, err = f.service.LogAdherence(ctx, f.clinic.Receptionist(), prescription.AdherenceInput{
			PrescriptionID: f.rx.ID,
			Date:           start,
			Completed:      true,
		})
		assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))
	})
}

func TestPrescriptionVisibility(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, stranger := f.clinic.AddPatientUser("someone@example.com")

	got, err := f.service.Get(ctx, f.clinic.As(model.RolePatient, f.patientID), f.rx.ID)
	require.NoError(t, err)
	assert.Equal(t, f.rx.ID, got.ID)

	_, err = f.service.Get(ctx, f.clinic.As(model.RolePatient, stranger), f.rx.ID)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	list, err := f.service.ListForPatient(ctx, f.clinic.Therapist(), f.patient.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.service.ListForPatient(ctx, f.clinic.As(model.RolePatient, stranger), f.patient.ID)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	other := testutil.NewClinic(f.clinic.Store, "south")
	_, err = f.service.Get(ctx, other.Manager(), f.rx.ID)
	assert.Equal(t, apperrors.KindPrescriptionNotFound, apperrors.KindOf(err))
}

func TestSummarize(t *testing.T) {
	id := uuid.New()
	logs := []*model.AdherenceLog{
		{Completed: true}, {Completed: false}, {Completed: true}, {Completed: true},
	}
	sum := prescription.Summarize(id, 7, logs)
	assert.Equal(t, id, sum.PrescriptionID)
	assert.Equal(t, 4, sum.Logged)
	assert.Equal(t, 3, sum.Completed)
	assert.Equal(t, 0.75, sum.Rate)

	assert.Zero(t, prescription.Summarize(id, 7, nil).Rate)
}
