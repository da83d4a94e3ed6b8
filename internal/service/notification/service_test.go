package notification_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/repository/memory"
	"github.com/jwalitptl/clinic-core/internal/service/notification"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
)

func TestOutboxNotifier(t *testing.T) {
	store := memory.NewStore()
	n := notification.NewOutboxNotifier(store.Outbox(), nil, metrics.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Send(ctx, model.TemplateAppointmentCancelled, "ann@example.com", map[string]interface{}{"clinic_name": "North"})
	n.Send(context.Background(), model.TemplateAppointmentCancelled, "", nil)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.NotificationEventType, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)

	var msg model.NotificationMessage
	require.NoError(t, json.Unmarshal(events[0].Payload, &msg))
	assert.Equal(t, "ann@example.com", msg.Recipient)
	assert.Equal(t, model.TemplateAppointmentCancelled, msg.Template)
	assert.Equal(t, "North", msg.Vars["clinic_name"])
}
