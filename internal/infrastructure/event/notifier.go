package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier fans domain events out to external consumers over Redis
// pub/sub. The channel name is the event type, which doubles as the
// notification subject (e.g. "invoice.issued").
//
// Delivery is at most once and fire-and-forget: a publish failure is
// logged and dropped, never retried and never surfaced to the financial
// mutation that produced the event. Consumers that need durability must
// not rely on this channel as their source of truth.
type Notifier struct {
	client  redis.UniversalClient
	logger  *zap.Logger
	timeout time.Duration
}

// NewNotifier creates a Redis-backed notifier
func NewNotifier(client redis.UniversalClient, logger *zap.Logger) *Notifier {
	return &Notifier{
		client:  client,
		logger:  logger.Named("notifier"),
		timeout: 5 * time.Second,
	}
}

// envelope is the wire format published to subscribers
type envelope struct {
	Subject    string          `json:"subject"`
	EventID    string          `json:"event_id"`
	TenantID   string          `json:"tenant_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Handle publishes a single domain event as a notification
func (n *Notifier) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("failed to serialize event for notification",
			zap.String("subject", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
		return nil
	}

	msg, err := json.Marshal(envelope{
		Subject:    event.EventType(),
		EventID:    event.EventID().String(),
		TenantID:   event.TenantID().String(),
		OccurredAt: event.OccurredAt(),
		Payload:    payload,
	})
	if err != nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := n.client.Publish(pubCtx, event.EventType(), msg).Err(); err != nil {
		// At-most-once contract: log and drop, the mutation already committed
		n.logger.Warn("notification dropped",
			zap.String("subject", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
		return nil
	}

	n.logger.Debug("notification published",
		zap.String("subject", event.EventType()),
		zap.String("event_id", event.EventID().String()),
	)
	return nil
}

// EventTypes returns an empty slice so the notifier receives all events
func (n *Notifier) EventTypes() []string {
	return nil
}

// Ensure Notifier implements EventHandler
var _ shared.EventHandler = (*Notifier)(nil)
