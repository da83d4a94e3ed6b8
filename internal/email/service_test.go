package email

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg Message) error {
	return m.Called(ctx, msg).Error(0)
}

func payload(t *testing.T, msg model.NotificationMessage) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

func TestRender(t *testing.T) {
	subject, body, err := Render(model.NotificationMessage{
		Template: model.TemplateAppointmentConfirmed,
		Vars: map[string]interface{}{
			"clinic_name":  "North Physio",
			"patient_name": "Ann Lee",
			"start_time":   "2030-03-05 10:00",
			"end_time":     "11:00",
			"timezone":     "Europe/London",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Appointment confirmed at North Physio", subject)
	assert.Contains(t, body, "Hello Ann Lee,")
	assert.Contains(t, body, "2030-03-05 10:00 to 11:00 (Europe/London)")

	_, body, err = Render(model.NotificationMessage{Template: model.TemplatePatientInvite})
	require.NoError(t, err)
	assert.NotContains(t, body, "<no value>")
	assert.True(t, strings.HasPrefix(body, "Hello,\n"))

	_, body, err = Render(model.NotificationMessage{
		Template: model.TemplatePatientInvite,
		Vars:     map[string]interface{}{"patient_name": "Ann"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body, "Hello Ann,\n"))

	_, _, err = Render(model.NotificationMessage{Template: "birthday"})
	assert.Error(t, err)
}

func TestConsumerHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("renders and sends", func(t *testing.T) {
		sender := &mockSender{}
		m := metrics.New("test", prometheus.NewRegistry())
		sender.On("Send", ctx, mock.MatchedBy(func(msg Message) bool {
			return msg.To == "ann@example.com" && msg.Subject == "Welcome to your clinic"
		})).Return(nil).Once()

		c := NewConsumer(sender, nil, m)
		err := c.Handle(ctx, payload(t, model.NotificationMessage{
			Template:  model.TemplatePatientInvite,
			Recipient: "ann@example.com",
			Vars:      map[string]interface{}{"patient_name": "Ann"},
		}))
		require.NoError(t, err)
		sender.AssertExpectations(t)
		assert.Equal(t, float64(1), promtest.ToFloat64(m.EmailsSent.WithLabelValues(model.TemplatePatientInvite, "sent")))
	})

	t.Run("send failure is returned and counted", func(t *testing.T) {
		sender := &mockSender{}
		m := metrics.New("test", prometheus.NewRegistry())
		sender.On("Send", ctx, mock.Anything).Return(errors.New("connection refused"))

		c := NewConsumer(sender, nil, m)
		err := c.Handle(ctx, payload(t, model.NotificationMessage{
			Template:  model.TemplateAppointmentCancelled,
			Recipient: "ann@example.com",
		}))
		assert.EqualError(t, err, "connection refused")
		assert.Equal(t, float64(1), promtest.ToFloat64(m.EmailsSent.WithLabelValues(model.TemplateAppointmentCancelled, "error")))
	})

	t.Run("bad payloads never reach the sender", func(t *testing.T) {
		sender := &mockSender{}
		c := NewConsumer(sender, nil, nil)

		assert.Error(t, c.Handle(ctx, []byte("{")))
		assert.ErrorIs(t, c.Handle(ctx, payload(t, model.NotificationMessage{Template: model.TemplatePatientInvite})), ErrNoRecipient)
		assert.Error(t, c.Handle(ctx, payload(t, model.NotificationMessage{Template: "unknown", Recipient: "a@b.c"})))
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}
