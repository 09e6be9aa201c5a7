// Package event defines domain events written to the transactional outbox.
package event

import (
	"context"

	"lotkeeper/internal/core/id"
)

// Event is a fact recorded together with the state change that caused it.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher stores events. Implementations must be called inside the
// transaction of the change they describe.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
