package notification

import (
	"context"
	"encoding/json"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
)

// Notifier is fire-and-forget. Delivery failures never reach the caller and
// never undo the change that triggered them.
type Notifier interface {
	Send(ctx context.Context, template, recipient string, vars map[string]interface{})
}

// OutboxNotifier queues notification intents in the outbox; the worker
// publishes and delivers them.
type OutboxNotifier struct {
	outbox  repository.OutboxRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxNotifier(outbox repository.OutboxRepository, log *logger.Logger, m *metrics.Metrics) *OutboxNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &OutboxNotifier{outbox: outbox, logger: log, metrics: m}
}

func (n *OutboxNotifier) Send(ctx context.Context, template, recipient string, vars map[string]interface{}) {
	log := n.logger.WithContext(ctx)
	if recipient == "" {
		log.Debug("notification skipped, no recipient", "template", template)
		return
	}

	payload, err := json.Marshal(model.NotificationMessage{
		Template:  template,
		Recipient: recipient,
		Vars:      vars,
	})
	if err != nil {
		n.observe(template, "error")
		log.Error(err, "failed to encode notification", "template", template)
		return
	}

	// the caller's transaction has already committed; a cancelled request
	// context must not drop the intent
	event := &model.OutboxEvent{
		EventType: model.NotificationEventType,
		Payload:   payload,
	}
	if err := n.outbox.Create(context.WithoutCancel(ctx), event); err != nil {
		n.observe(template, "error")
		log.Error(err, "failed to enqueue notification", "template", template)
		return
	}
	n.observe(template, "queued")
}

func (n *OutboxNotifier) observe(template, result string) {
	if n.metrics != nil {
		n.metrics.Notifications.WithLabelValues(template, result).Inc()
	}
}

// Nop discards every notification
type Nop struct{}

func (Nop) Send(context.Context, string, string, map[string]interface{}) {}
