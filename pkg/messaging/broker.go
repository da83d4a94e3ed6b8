package messaging

import (
	"context"
)

// Broker moves raw payloads between the outbox processor and consumers
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers payloads until ctx is cancelled, then closes the
	// channel.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Handler processes one payload taken off a channel
type Handler func(ctx context.Context, payload []byte) error

// Consume feeds every payload of channel to handler until ctx ends. Handler
// errors go to onError and do not stop consumption.
func Consume(ctx context.Context, broker Broker, channel string, handler Handler, onError func(error)) error {
	msgs, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	for payload := range msgs {
		if err := handler(ctx, payload); err != nil && onError != nil {
			onError(err)
		}
	}
	return ctx.Err()
}
