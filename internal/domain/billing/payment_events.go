package billing

import (
	"time"

	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRefundedEvent is raised when a succeeded payment is refunded
type PaymentRefundedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID            `json:"payment_id"`
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	Provider      PaymentProvider      `json:"provider"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      valueobject.Currency `json:"currency"`
	TransactionID string               `json:"transaction_id,omitempty"`
	RefundReason  string               `json:"refund_reason,omitempty"`
	RefundedAt    time.Time            `json:"refunded_at"`
}

// NewPaymentRefundedEvent creates a new PaymentRefundedEvent
func NewPaymentRefundedEvent(p *Payment) *PaymentRefundedEvent {
	refundedAt := time.Now()
	if p.RefundedAt != nil {
		refundedAt = *p.RefundedAt
	}
	return &PaymentRefundedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentRefunded, "Payment", p.ID, p.TenantID),
		PaymentID:       p.ID,
		InvoiceID:       p.InvoiceID,
		InvoiceNumber:   p.InvoiceNumber,
		Provider:        p.Provider,
		Amount:          p.Amount,
		Currency:        p.Currency,
		TransactionID:   p.TransactionID,
		RefundReason:    p.RefundReason,
		RefundedAt:      refundedAt,
	}
}
