package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-core/internal/handler/account"
	"github.com/jwalitptl/clinic-core/internal/handler/appointment"
	auditHandler "github.com/jwalitptl/clinic-core/internal/handler/audit"
	"github.com/jwalitptl/clinic-core/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-core/internal/handler/patient"
	prescriptionHandler "github.com/jwalitptl/clinic-core/internal/handler/prescription"
	promHandler "github.com/jwalitptl/clinic-core/internal/handler/prometheus"
	reportHandler "github.com/jwalitptl/clinic-core/internal/handler/report"
	"github.com/jwalitptl/clinic-core/internal/handler/session"
	"github.com/jwalitptl/clinic-core/internal/middleware"
	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/router"
	auditService "github.com/jwalitptl/clinic-core/internal/service/audit"
	"github.com/jwalitptl/clinic-core/internal/service/clinical"
	patientService "github.com/jwalitptl/clinic-core/internal/service/patient"
	prescriptionService "github.com/jwalitptl/clinic-core/internal/service/prescription"
	reportService "github.com/jwalitptl/clinic-core/internal/service/report"
	"github.com/jwalitptl/clinic-core/internal/service/scheduling"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/internal/testutil"
	"github.com/jwalitptl/clinic-core/pkg/auth"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
)

const secret = "router-test-secret"

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type app struct {
	engine *gin.Engine
	clinic *testutil.Clinic
	other  *testutil.Clinic
	sent   *testutil.Notifier
}

func newApp(t *testing.T) *app {
	t.Helper()
	c := testutil.NewClinic(nil, "north")
	other := testutil.NewClinic(c.Store, "south")
	store := c.Store
	n := &testutil.Notifier{}
	m := metrics.New("test", prometheus.NewRegistry())
	log := logger.Nop()

	engine := scheduling.NewEngine(store, n, scheduling.DefaultConfig(),
		scheduling.WithClock(testutil.Clock),
		scheduling.WithMetrics(m),
	)
	resolver := tenant.NewResolver(auth.NewJWTProvider(secret, ""), store, 0, log)
	appointmentH := appointment.NewHandler(engine)

	r := router.NewRouter(
		middleware.NewAuthMiddleware(resolver),
		health.NewHandler(map[string]health.Pinger{"database": store}),
		promHandler.New(prometheus.NewRegistry()),
		appointmentH,
		[]router.Handler{
			account.NewHandler(),
			appointmentH,
			session.NewHandler(clinical.NewService(store, m, log)),
			prescriptionHandler.NewHandler(prescriptionService.NewService(store, 0, m, log)),
			patientHandler.NewHandler(patientService.NewService(store, n)),
			reportHandler.NewHandler(reportService.NewService(store, 0)),
			auditHandler.NewHandler(auditService.NewService(store)),
		},
		log,
		m,
		router.RouterConfig{Mode: gin.TestMode, RequestTimeout: 5 * time.Second, MaxBodyBytes: 1 << 20},
	)
	r.Setup()
	return &app{engine: r.Engine(), clinic: c, other: other, sent: n}
}

func token(t *testing.T, principal uuid.UUID) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   principal.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (a *app) makeRequest(t *testing.T, method, path, bearer string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestHealth(t *testing.T) {
	a := newApp(t)

	w, _ := a.makeRequest(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = a.makeRequest(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = a.makeRequest(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthentication(t *testing.T) {
	a := newApp(t)

	w, env := a.makeRequest(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", env.Code)

	w, _ = a.makeRequest(t, http.MethodGet, "/api/v1/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = a.makeRequest(t, http.MethodGet, "/api/v1/me", token(t, uuid.New()), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "no_tenant_binding", env.Code)

	w, env = a.makeRequest(t, http.MethodGet, "/api/v1/me", token(t, a.clinic.TherapistID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		PrincipalID  uuid.UUID  `json:"principal_id"`
		Role         model.Role `json:"role"`
		ClinicID     uuid.UUID  `json:"clinic_id"`
		Capabilities []string   `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, a.clinic.TherapistID, me.PrincipalID)
	assert.Equal(t, model.RoleTherapist, me.Role)
	assert.Equal(t, a.clinic.Clinic.ID, me.ClinicID)
	assert.Contains(t, me.Capabilities, "sessions:create")
}

func TestClinicHeaderCannotSwitchTenant(t *testing.T) {
	a := newApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, a.clinic.ManagerID))
	req.Header.Set(middleware.HeaderClinicID, a.other.Clinic.ID.String())
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPublicBookingToSessionFlow(t *testing.T) {
	a := newApp(t)
	date := testutil.Tomorrow.String()
	therapist := token(t, a.clinic.TherapistID)

	// Step 1: anonymous visitor lists slots
	w, env := a.makeRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/public/clinics/north/slots?service_id=%s&therapist_id=%s&date=%s",
		a.clinic.Service.ID, a.clinic.TherapistID, date), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var slots []model.TimeSlot
	require.NoError(t, json.Unmarshal(env.Data, &slots))
	require.Len(t, slots, 8)

	// Step 2: books the 10:00 slot
	booking := map[string]interface{}{
		"service_id":   a.clinic.Service.ID,
		"therapist_id": a.clinic.TherapistID,
		"start_time":   slots[1].Start,
		"patient":      map[string]string{"email": "Visitor@Example.com", "first_name": "Vi", "last_name": "Sitor"},
	}
	w, env = a.makeRequest(t, http.MethodPost, "/api/v1/public/clinics/north/appointments", "", booking)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var appt model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.Equal(t, model.AppointmentStatusScheduled, appt.Status)
	require.Len(t, a.sent.Sent(), 1)
	assert.Equal(t, "visitor@example.com", a.sent.Sent()[0].Recipient)

	// Step 3: the same slot is gone
	w, env = a.makeRequest(t, http.MethodPost, "/api/v1/public/clinics/north/appointments", "", booking)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "slot_conflict", env.Code)

	w, env = a.makeRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/public/clinics/north/slots?service_id=%s&therapist_id=%s&date=%s",
		a.clinic.Service.ID, a.clinic.TherapistID, date), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &slots))
	assert.Len(t, slots, 7)

	// Step 4: only the assigned therapist sees it
	path := "/api/v1/appointments/" + appt.ID.String()
	w, _ = a.makeRequest(t, http.MethodGet, path, therapist, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = a.makeRequest(t, http.MethodGet, path, token(t, a.clinic.OtherTherapist), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "permission_denied", env.Code)

	// Step 5: another clinic cannot see it at all
	w, _ = a.makeRequest(t, http.MethodGet, path, token(t, a.other.ManagerID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Step 6: the therapist writes the note once
	note := map[string]interface{}{
		"subjective": "Stiff neck", "objective": "Reduced rotation",
		"assessment": "Cervical strain", "plan": "Mobility drills", "pain_level": 3,
	}
	w, _ = a.makeRequest(t, http.MethodPost, path+"/session", therapist, note)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = a.makeRequest(t, http.MethodPost, path+"/session", therapist, note)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "session_already_exists", env.Code)

	w, env = a.makeRequest(t, http.MethodGet, path, therapist, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.Equal(t, model.AppointmentStatusCompleted, appt.Status)

	// Step 7: the manager sees it in reports and the audit trail
	manager := token(t, a.clinic.ManagerID)
	// session rows carry the wall-clock creation time
	today := time.Now().UTC()
	w, env = a.makeRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/reports/sessions?from=%s&to=%s",
		today.AddDate(0, 0, -1).Format("2006-01-02"), today.AddDate(0, 0, 1).Format("2006-01-02")), manager, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var report model.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 1.0, report.Total)

	w, _ = a.makeRequest(t, http.MethodGet, "/api/v1/reports/revenue?from=2030-03-01&to=2030-03-31", therapist, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.makeRequest(t, http.MethodGet, "/api/v1/audit/logs?entity_id="+appt.ID.String(), manager, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = a.makeRequest(t, http.MethodGet, "/api/v1/audit/export?format=csv", manager, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Actor ID")
}

func TestRequestErrors(t *testing.T) {
	a := newApp(t)
	receptionist := token(t, a.clinic.ReceptionistID)

	w, env := a.makeRequest(t, http.MethodGet, "/api/v1/public/clinics/nowhere/slots", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "no_tenant_binding", env.Code)

	w, env = a.makeRequest(t, http.MethodGet, "/api/v1/appointments/not-a-uuid", receptionist, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", env.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+receptionist)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w, env = a.makeRequest(t, http.MethodGet, "/api/v1/appointments/slots?service_id="+a.clinic.Service.ID.String(), receptionist, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", env.Code)

	w, _ = a.makeRequest(t, http.MethodGet, "/api/v1/reports/revenue", token(t, a.clinic.ManagerID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaffBookingAndCancel(t *testing.T) {
	a := newApp(t)
	receptionist := token(t, a.clinic.ReceptionistID)

	w, env := a.makeRequest(t, http.MethodPost, "/api/v1/patients", receptionist, map[string]string{
		"first_name": "Ann", "last_name": "Lee", "email": "ann@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p model.Patient
	require.NoError(t, json.Unmarshal(env.Data, &p))

	w, env = a.makeRequest(t, http.MethodPost, "/api/v1/appointments", receptionist, map[string]interface{}{
		"service_id":   a.clinic.Service.ID,
		"therapist_id": a.clinic.TherapistID,
		"start_time":   testutil.At(testutil.Tomorrow, 9, 0),
		"patient":      map[string]interface{}{"patient_id": p.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var appt model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.Equal(t, p.ID, appt.PatientID)

	w, env = a.makeRequest(t, http.MethodGet, "/api/v1/appointments?therapist_id="+a.clinic.TherapistID.String(), receptionist, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []model.Appointment `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 1)

	w, env = a.makeRequest(t, http.MethodPost, "/api/v1/appointments/"+appt.ID.String()+"/cancel", receptionist, map[string]string{"reason": "patient called"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.Equal(t, model.AppointmentStatusCancelled, appt.Status)

	w, env = a.makeRequest(t, http.MethodPost, "/api/v1/appointments/"+appt.ID.String()+"/cancel", receptionist, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", env.Code)
}
