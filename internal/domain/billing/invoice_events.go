package billing

import (
	"time"

	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants. These double as the notification subjects
// published to external consumers, so they are part of the wire contract.
const (
	EventInvoiceIssued   = "invoice.issued"
	EventInvoicePaid     = "invoice.paid"
	EventInvoiceOverdue  = "invoice.overdue"
	EventInvoiceCanceled = "invoice.canceled"
	EventPaymentRefunded = "payment.refunded"
	EventDunningCreated  = "dunning.created"
	EventDunningSent     = "dunning.sent"
)

// InvoiceIssuedEvent is raised when a draft invoice is finalized
type InvoiceIssuedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	CustomerID    string               `json:"customer_id"`
	CustomerName  string               `json:"customer_name"`
	Currency      valueobject.Currency `json:"currency"`
	GrandTotal    decimal.Decimal      `json:"grand_total"`
	IssueDate     *time.Time           `json:"issue_date,omitempty"`
	DueDate       *time.Time           `json:"due_date,omitempty"`
}

// NewInvoiceIssuedEvent creates a new InvoiceIssuedEvent
func NewInvoiceIssuedEvent(inv *Invoice) *InvoiceIssuedEvent {
	return &InvoiceIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoiceIssued, "Invoice", inv.ID, inv.TenantID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		CustomerName:    inv.CustomerName,
		Currency:        inv.Currency,
		GrandTotal:      inv.GrandTotal,
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
	}
}

// InvoicePaidEvent is raised when an invoice becomes fully settled
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	CustomerID    string               `json:"customer_id"`
	Currency      valueobject.Currency `json:"currency"`
	GrandTotal    decimal.Decimal      `json:"grand_total"`
	PaidAmount    decimal.Decimal      `json:"paid_amount"`
	CreditBalance decimal.Decimal      `json:"credit_balance"`
	PaidAt        time.Time            `json:"paid_at"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	paidAt := time.Now()
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoicePaid, "Invoice", inv.ID, inv.TenantID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		Currency:        inv.Currency,
		GrandTotal:      inv.GrandTotal,
		PaidAmount:      inv.PaidAmount,
		CreditBalance:   inv.CreditBalance(),
		PaidAt:          paidAt,
	}
}

// InvoiceOverdueEvent is raised when the overdue sweep flags an invoice
type InvoiceOverdueEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	CustomerID    string               `json:"customer_id"`
	CustomerName  string               `json:"customer_name"`
	Currency      valueobject.Currency `json:"currency"`
	Outstanding   decimal.Decimal      `json:"outstanding"`
	DueDate       *time.Time           `json:"due_date,omitempty"`
	DaysOverdue   int                  `json:"days_overdue"`
}

// NewInvoiceOverdueEvent creates a new InvoiceOverdueEvent
func NewInvoiceOverdueEvent(inv *Invoice) *InvoiceOverdueEvent {
	asOf := time.Now()
	if inv.OverdueMarkedAt != nil {
		asOf = *inv.OverdueMarkedAt
	}
	return &InvoiceOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoiceOverdue, "Invoice", inv.ID, inv.TenantID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		CustomerName:    inv.CustomerName,
		Currency:        inv.Currency,
		Outstanding:     inv.Outstanding,
		DueDate:         inv.DueDate,
		DaysOverdue:     inv.DaysOverdue(asOf),
	}
}

// InvoiceCanceledEvent is raised when an invoice is voided
type InvoiceCanceledEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID            `json:"invoice_id"`
	InvoiceNumber  string               `json:"invoice_number"`
	CustomerID     string               `json:"customer_id"`
	Currency       valueobject.Currency `json:"currency"`
	GrandTotal     decimal.Decimal      `json:"grand_total"`
	PaidAmount     decimal.Decimal      `json:"paid_amount"`
	PreviousStatus InvoiceStatus        `json:"previous_status"`
	CancelReason   string               `json:"cancel_reason,omitempty"`
	CanceledAt     time.Time            `json:"canceled_at"`
}

// NewInvoiceCanceledEvent creates a new InvoiceCanceledEvent
func NewInvoiceCanceledEvent(inv *Invoice, previousStatus InvoiceStatus) *InvoiceCanceledEvent {
	canceledAt := time.Now()
	if inv.CanceledAt != nil {
		canceledAt = *inv.CanceledAt
	}
	return &InvoiceCanceledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoiceCanceled, "Invoice", inv.ID, inv.TenantID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		Currency:        inv.Currency,
		GrandTotal:      inv.GrandTotal,
		PaidAmount:      inv.PaidAmount,
		PreviousStatus:  previousStatus,
		CancelReason:    inv.CancelReason,
		CanceledAt:      canceledAt,
	}
}
