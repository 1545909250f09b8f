package billing

import (
	"context"

	"github.com/crm/invoicing/internal/domain/shared"
	"go.uber.org/zap"
)

// publishAggregateEvents publishes an aggregate's pending domain events and
// clears them. A nil publisher is a valid configuration (events are simply
// dropped); a failing publisher is logged and ignored because the state
// change that produced the events has already been persisted.
func publishAggregateEvents(ctx context.Context, publisher shared.EventPublisher, agg *shared.BaseAggregateRoot, logger *zap.Logger) {
	events := agg.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	defer agg.ClearDomainEvents()

	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("failed to publish domain events",
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
	}
}
