package events

import "context"

// Publisher is the interface for usage event publishers
type Publisher interface {
	// Publish emits one event. Implementations must not block beyond the
	// context deadline.
	Publish(ctx context.Context, event *Event) error

	// Close closes the publisher connection
	Close() error
}

// NoopPublisher discards events. Used when no broker is configured.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that discards events
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Publish discards the event
func (p *NoopPublisher) Publish(ctx context.Context, event *Event) error {
	return nil
}

// Close is a no-op
func (p *NoopPublisher) Close() error {
	return nil
}

var (
	_ Publisher = (*NoopPublisher)(nil)
	_ Publisher = (*RabbitMQPublisher)(nil)
)
