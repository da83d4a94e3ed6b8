package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/repository/memory"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/messaging"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
)

// flakyBroker fails the first n publishes
type flakyBroker struct {
	messaging.Broker
	mu    sync.Mutex
	fails int
}

func (b *flakyBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	if b.fails > 0 {
		b.fails--
		b.mu.Unlock()
		return errors.New("broker unavailable")
	}
	b.mu.Unlock()
	return b.Broker.Publish(ctx, channel, payload)
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
		Channels:      map[string]string{model.NotificationEventType: "notifications"},
	}
}

func enqueue(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Outbox().Create(context.Background(), &model.OutboxEvent{
			EventType: model.NotificationEventType,
			Payload:   []byte(`{"template":"patient_invite","recipient":"a@example.com"}`),
		}))
	}
}

func statuses(store *memory.Store) map[model.OutboxStatus]int {
	out := map[model.OutboxStatus]int{}
	for _, e := range store.OutboxEvents() {
		out[e.Status]++
	}
	return out
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	_, err := NewOutboxProcessor(memory.NewStore().Outbox(), messaging.NewMemoryBroker(), cfg, logger.Nop(), metrics.NewNop())
	assert.Error(t, err)
}

func TestProcessBatchPublishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	broker := messaging.NewMemoryBroker()
	msgs, err := broker.Subscribe(ctx, "notifications")
	require.NoError(t, err)

	enqueue(t, store, 3)
	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), logger.Nop(), metrics.NewNop())
	require.NoError(t, err)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, msgs, 3)
	assert.Equal(t, 3, statuses(store)[model.OutboxStatusProcessed])

	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// clock is a hand-driven time source for the processor
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestProcessBatchRetriesThenFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	broker := &flakyBroker{Broker: messaging.NewMemoryBroker(), fails: 100}

	enqueue(t, store, 1)
	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), logger.Nop(), metrics.NewNop())
	require.NoError(t, err)
	clk := &clock{t: time.Now()}
	p.now = clk.now

	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, statuses(store)[model.OutboxStatusRetry])

	// not due until the retry delay has passed
	clk.advance(30 * time.Second)
	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusRetry, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)

	for i := 0; i < 2; i++ {
		clk.advance(time.Minute)
		_, err = p.ProcessBatch(ctx)
		require.NoError(t, err)
	}

	events = store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	assert.Equal(t, 3, events[0].RetryCount)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Equal(t, "broker unavailable", *events[0].ErrorMessage)

	// failed events are never claimed again
	clk.advance(time.Hour)
	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, store.OutboxEvents()[0].RetryCount)
}

func TestProcessBatchRecoversAfterRetry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	broker := &flakyBroker{Broker: messaging.NewMemoryBroker(), fails: 1}

	enqueue(t, store, 1)
	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), logger.Nop(), metrics.NewNop())
	require.NoError(t, err)
	clk := &clock{t: time.Now()}
	p.now = clk.now

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.advance(testConfig().RetryDelay)
	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, statuses(store)[model.OutboxStatusProcessed])
}

func TestCleanupDropsOldProcessedEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	enqueue(t, store, 2)

	cfg := testConfig()
	cfg.Retention = time.Hour
	p, err := NewOutboxProcessor(store.Outbox(), messaging.NewMemoryBroker(), cfg, logger.Nop(), metrics.NewNop())
	require.NoError(t, err)

	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)

	p.cleanup(ctx)
	assert.Len(t, store.OutboxEvents(), 2)

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	p.cleanup(ctx)
	assert.Empty(t, store.OutboxEvents())
}

func TestStartStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	p, err := NewOutboxProcessor(store.Outbox(), messaging.NewMemoryBroker(), testConfig(), logger.Nop(), metrics.NewNop())
	require.NoError(t, err)
	enqueue(t, store, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return statuses(store)[model.OutboxStatusProcessed] == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}
