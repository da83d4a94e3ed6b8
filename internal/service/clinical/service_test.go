package clinical_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/service/clinical"
	"github.com/jwalitptl/clinic-core/internal/testutil"
	apperrors "github.com/jwalitptl/clinic-core/pkg/errors"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
)

func soap() model.SOAP {
	return model.SOAP{
		Subjective: "Knee pain when climbing stairs",
		Objective:  "ROM 0-120, mild effusion",
		Assessment: "Patellofemoral pain",
		Plan:       "Quad strengthening, review in 2 weeks",
	}
}

func intPtr(v int) *int { return &v }

type fixture struct {
	clinic  *testutil.Clinic
	service *clinical.Service
	metrics *metrics.Metrics
	appt    model.Appointment
}

func setup(t *testing.T) *fixture {
	t.Helper()
	c := testutil.NewClinic(nil, "north")
	p := c.AddPatient("soap@example.com")
	m := metrics.New("test", prometheus.NewRegistry())
	return &fixture{
		clinic:  c,
		service: clinical.NewService(c.Store, m, nil),
		metrics: m,
		appt:    c.Book(p.ID, c.TherapistID, testutil.Now.Add(-1)),
	}
}

func (f *fixture) input() clinical.SessionInput {
	return clinical.SessionInput{AppointmentID: f.appt.ID, SOAP: soap(), PainLevel: intPtr(4)}
}

func (f *fixture) status(t *testing.T) model.AppointmentStatus {
	t.Helper()
	scope, err := model.ScopeOf(f.clinic.Clinic.ID)
	require.NoError(t, err)
	appt, err := f.clinic.Store.Appointments().Get(context.Background(), scope, f.appt.ID)
	require.NoError(t, err)
	return appt.Status
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("records the note and completes the appointment", func(t *testing.T) {
		f := setup(t)

		session, err := f.service.CreateSession(ctx, f.clinic.Therapist(), f.input())
		require.NoError(t, err)
		assert.Equal(t, f.appt.ID, session.AppointmentID)
		assert.Equal(t, f.appt.PatientID, session.PatientID)
		assert.Equal(t, f.clinic.TherapistID, session.TherapistID)
		assert.Equal(t, 4, *session.PainLevel)
		assert.Equal(t, model.AppointmentStatusCompleted, f.status(t))
		assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.SessionsCreated))

		logs := f.clinic.Store.AuditLogs()
		require.Len(t, logs, 2)
		assert.Equal(t, model.AuditEntitySession, logs[0].EntityType)
		assert.Equal(t, model.AuditActionComplete, logs[1].Action)
	})

	t.Run("second note is rejected and status stays completed", func(t *testing.T) {
		f := setup(t)
		_, err := f.service.CreateSession(ctx, f.clinic.Therapist(), f.input())
		require.NoError(t, err)

		_, err = f.service.CreateSession(ctx, f.clinic.Therapist(), f.input())
		assert.Equal(t, apperrors.KindSessionAlreadyExists, apperrors.KindOf(err))
		assert.Equal(t, model.AppointmentStatusCompleted, f.status(t))
		assert.Len(t, f.clinic.Store.AuditLogs(), 2)
	})

	t.Run("all four narrative fields are required", func(t *testing.T) {
		f := setup(t)
		for _, blank := range []func(*model.SOAP){
			func(s *model.SOAP) { s.Subjective = "" },
			func(s *model.SOAP) { s.Objective = "   " },
			func(s *model.SOAP) { s.Assessment = "\n" },
			func(s *model.SOAP) { s.Plan = "" },
		} {
			in := f.input()
			blank(&in.SOAP)
			_, err := f.service.CreateSession(ctx, f.clinic.Therapist(), in)
			assert.Equal(t, apperrors.KindIncompleteNarrative, apperrors.KindOf(err))
		}
		assert.Equal(t, model.AppointmentStatusScheduled, f.status(t))
	})

	t.Run("pain level bounds", func(t *testing.T) {
		for _, tc := range []struct {
			name  string
			level *int
			ok    bool
		}{
			{"absent", nil, true},
			{"zero", intPtr(0), true},
			{"ten", intPtr(10), true},
			{"negative", intPtr(-1), false},
			{"eleven", intPtr(11), false},
		} {
			t.Run(tc.name, func(t *testing.T) {
				f := setup(t)
				in := f.input()
				in.PainLevel = tc.level
				_, err := f.service.CreateSession(ctx, f.clinic.Therapist(), in)
				if tc.ok {
					assert.NoError(t, err)
				} else {
					assert.Equal(t, apperrors.KindInvalidPainLevel, apperrors.KindOf(err))
				}
			})
		}
	})

	t.Run("only the assigned therapist", func(t *testing.T) {
		f := setup(t)

		_, err := f.service.CreateSession(ctx, f.clinic.As(model.RoleTherapist, f.clinic.OtherTherapist), f.input())
		assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

		_, err = f.service.CreateSession(ctx, f.clinic.Receptionist(), f.input())
		assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

		_, err = f.service.CreateSession(ctx, f.clinic.Manager(), f.input())
		assert.NoError(t, err)
	})

	t.Run("cancelled appointment", func(t *testing.T) {
		f := setup(t)
		scope, _ := model.ScopeOf(f.clinic.Clinic.ID)
		require.NoError(t, f.clinic.Store.Appointments().UpdateStatus(ctx, scope, f.appt.ID, model.AppointmentStatusCancelled, nil))

		_, err := f.service.CreateSession(ctx, f.clinic.Therapist(), f.input())
		assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
	})

	t.Run("unknown or foreign appointment", func(t *testing.T) {
		f := setup(t)
		other := testutil.NewClinic(f.clinic.Store, "south")

		in := f.input()
		in.AppointmentID = uuid.New()
		_, err := f.service.CreateSession(ctx, f.clinic.Therapist(), in)
		assert.Equal(t, apperrors.KindAppointmentNotFound, apperrors.KindOf(err))

		_, err = f.service.CreateSession(ctx, other.Manager(), f.input())
		assert.Equal(t, apperrors.KindAppointmentNotFound, apperrors.KindOf(err))
	})
}

func TestGetSession(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.service.GetSession(ctx, f.clinic.Manager(), f.appt.ID)
	assert.Equal(t, apperrors.KindSessionNotFound, apperrors.KindOf(err))

	created, err := f.service.CreateSession(ctx, f.clinic.Therapist(), f.input())
	require.NoError(t, err)

	got, err := f.service.GetSession(ctx, f.clinic.Therapist(), f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, soap().Plan, got.Plan)

	_, err = f.service.GetSession(ctx, f.clinic.Manager(), f.appt.ID)
	assert.NoError(t, err)

	_, err = f.service.GetSession(ctx, f.clinic.As(model.RoleTherapist, f.clinic.OtherTherapist), f.appt.ID)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	_, err = f.service.GetSession(ctx, f.clinic.Receptionist(), f.appt.ID)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))
}
