package telemetry

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when business metrics are created without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// BusinessMetrics tracks invoicing activity: issued volume, payment
// settlements, overdue transitions and dunning escalations.
type BusinessMetrics struct {
	logger *zap.Logger

	invoiceIssuedTotal  metric.Int64Counter
	invoiceAmountTotal  metric.Float64Counter
	invoiceOverdueTotal metric.Int64Counter
	paymentTotal        metric.Int64Counter
	dunningCreatedTotal metric.Int64Counter
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(meter metric.Meter, logger *zap.Logger) (*BusinessMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{logger: logger}

	var err error
	bm.invoiceIssuedTotal, err = meter.Int64Counter(
		"invoicing_invoice_issued_total",
		metric.WithDescription("Total number of invoices issued"),
		metric.WithUnit("{invoices}"),
	)
	if err != nil {
		return nil, err
	}

	bm.invoiceAmountTotal, err = meter.Float64Counter(
		"invoicing_invoice_amount_total",
		metric.WithDescription("Total grand total of issued invoices"),
		metric.WithUnit("{currency_units}"),
	)
	if err != nil {
		return nil, err
	}

	bm.invoiceOverdueTotal, err = meter.Int64Counter(
		"invoicing_invoice_overdue_total",
		metric.WithDescription("Total number of invoices marked overdue by the daily sweep"),
		metric.WithUnit("{invoices}"),
	)
	if err != nil {
		return nil, err
	}

	bm.paymentTotal, err = meter.Int64Counter(
		"invoicing_payment_total",
		metric.WithDescription("Total number of recorded payment attempts"),
		metric.WithUnit("{payments}"),
	)
	if err != nil {
		return nil, err
	}

	bm.dunningCreatedTotal, err = meter.Int64Counter(
		"invoicing_dunning_created_total",
		metric.WithDescription("Total number of payment reminders created"),
		metric.WithUnit("{reminders}"),
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordInvoiceIssued records an issued invoice with its grand total
func (bm *BusinessMetrics) RecordInvoiceIssued(ctx context.Context, currency string, grandTotal decimal.Decimal) {
	attrs := metric.WithAttributes(attribute.String("currency", currency))
	bm.invoiceIssuedTotal.Add(ctx, 1, attrs)
	bm.invoiceAmountTotal.Add(ctx, grandTotal.InexactFloat64(), attrs)
}

// RecordInvoicesOverdue records invoices flipped to OVERDUE by a sweep
func (bm *BusinessMetrics) RecordInvoicesOverdue(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	bm.invoiceOverdueTotal.Add(ctx, int64(count))
}

// RecordPayment records a settlement attempt by provider and outcome
func (bm *BusinessMetrics) RecordPayment(ctx context.Context, provider, status string) {
	bm.paymentTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordDunningCreated records a payment reminder at its escalation level
func (bm *BusinessMetrics) RecordDunningCreated(ctx context.Context, level int) {
	bm.dunningCreatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("reminder_level", level),
	))
}
