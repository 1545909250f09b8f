package event

import (
	"context"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/infrastructure/telemetry"
)

// MetricsRecorder feeds business metrics from the domain event stream, so
// application services stay free of instrumentation calls.
type MetricsRecorder struct {
	metrics *telemetry.BusinessMetrics
}

// NewMetricsRecorder creates an event handler backed by BusinessMetrics
func NewMetricsRecorder(metrics *telemetry.BusinessMetrics) *MetricsRecorder {
	return &MetricsRecorder{metrics: metrics}
}

// Handle records the metric matching the event type
func (r *MetricsRecorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *billing.InvoiceIssuedEvent:
		r.metrics.RecordInvoiceIssued(ctx, string(e.Currency), e.GrandTotal)
	case *billing.InvoiceOverdueEvent:
		r.metrics.RecordInvoicesOverdue(ctx, 1)
	case *billing.PaymentRefundedEvent:
		r.metrics.RecordPayment(ctx, string(e.Provider), "REFUNDED")
	case *billing.DunningCreatedEvent:
		r.metrics.RecordDunningCreated(ctx, e.ReminderLevel)
	}
	return nil
}

// EventTypes returns the event types this recorder consumes
func (r *MetricsRecorder) EventTypes() []string {
	return []string{
		billing.EventInvoiceIssued,
		billing.EventInvoiceOverdue,
		billing.EventPaymentRefunded,
		billing.EventDunningCreated,
	}
}

// Ensure MetricsRecorder implements EventHandler
var _ shared.EventHandler = (*MetricsRecorder)(nil)
