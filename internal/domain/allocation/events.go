package allocation

import (
	"context"
	"fmt"

	"lotkeeper/internal/core/event"
)

// Outbox identifiers of committed withdrawals.
const (
	AggregateType  = "lot_allocation"
	EventCommitted = "allocation.committed"
)

// PublishCommitted returns a hook that writes EventCommitted to the outbox
// in the commit transaction.
func PublishCommitted(publisher event.Publisher) CommitHook {
	return CommitHookFunc(func(ctx context.Context, w *Withdrawal) error {
		err := publisher.Publish(ctx, event.Event{
			AggregateType: AggregateType,
			AggregateID:   w.ID,
			EventType:     EventCommitted,
			Payload:       w,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", EventCommitted, err)
		}
		return nil
	})
}
