package billing

import (
	"fmt"
	"time"

	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// DunningStatus represents the delivery state of a payment reminder
type DunningStatus string

const (
	DunningStatusPending   DunningStatus = "PENDING"   // Created, not yet delivered
	DunningStatusSent      DunningStatus = "SENT"      // Delivered to the customer
	DunningStatusCancelled DunningStatus = "CANCELLED" // Withdrawn, level becomes reusable
)

// IsValid checks if the status is a valid DunningStatus
func (s DunningStatus) IsValid() bool {
	switch s {
	case DunningStatusPending, DunningStatusSent, DunningStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of DunningStatus
func (s DunningStatus) String() string {
	return string(s)
}

// IsActive returns true if the reminder still occupies its level.
// Cancelled reminders free the level for a replacement.
func (s DunningStatus) IsActive() bool {
	return s == DunningStatusPending || s == DunningStatusSent
}

// Dunning is a payment reminder escalation for an overdue invoice.
// Reminder levels escalate strictly per invoice: a new reminder must
// carry a higher level than every active reminder for the same invoice.
type Dunning struct {
	shared.TenantAggregateRoot
	InvoiceID      uuid.UUID     `json:"invoice_id"`
	InvoiceNumber  string        `json:"invoice_number"`
	CustomerID     string        `json:"customer_id"`
	ReminderLevel  int           `json:"reminder_level"`
	Status         DunningStatus `json:"status"`
	InvoiceDueDate *time.Time    `json:"invoice_due_date"` // Snapshot of the invoice due date at creation
	SentAt         *time.Time    `json:"sent_at"`
	TemplateUsed   string        `json:"template_used"`
	CancelledAt    *time.Time    `json:"cancelled_at"`
}

// NewDunning creates a pending reminder at the given escalation level.
// The level-ordering rule against existing reminders is enforced by the
// service, which sees all reminders for the invoice.
func NewDunning(
	tenantID uuid.UUID,
	invoiceID uuid.UUID,
	invoiceNumber string,
	customerID string,
	reminderLevel int,
	invoiceDueDate *time.Time,
) (*Dunning, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if reminderLevel < 1 {
		return nil, shared.NewDomainError("INVALID_REMINDER_LEVEL", "Reminder level must be at least 1")
	}

	d := &Dunning{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceID:           invoiceID,
		InvoiceNumber:       invoiceNumber,
		CustomerID:          customerID,
		ReminderLevel:       reminderLevel,
		Status:              DunningStatusPending,
		InvoiceDueDate:      invoiceDueDate,
	}

	d.AddDomainEvent(NewDunningCreatedEvent(d))

	return d, nil
}

// Send marks a pending reminder as delivered and records which message
// template was used.
func (d *Dunning) Send(templateUsed string) error {
	if d.Status != DunningStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Only pending reminders can be sent, current status is %s", d.Status))
	}
	if templateUsed == "" {
		return shared.NewDomainError("INVALID_TEMPLATE", "Template name cannot be empty")
	}

	now := time.Now()
	d.Status = DunningStatusSent
	d.SentAt = &now
	d.TemplateUsed = templateUsed
	d.UpdatedAt = now
	d.IncrementVersion()

	d.AddDomainEvent(NewDunningSentEvent(d))

	return nil
}

// Cancel withdraws a pending reminder. Its level may be reused by a
// later reminder for the same invoice.
func (d *Dunning) Cancel() error {
	if d.Status != DunningStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Only pending reminders can be cancelled, current status is %s", d.Status))
	}

	now := time.Now()
	d.Status = DunningStatusCancelled
	d.CancelledAt = &now
	d.UpdatedAt = now
	d.IncrementVersion()

	return nil
}

// IsPending returns true if the reminder has not been delivered yet
func (d *Dunning) IsPending() bool {
	return d.Status == DunningStatusPending
}

// IsSent returns true if the reminder was delivered
func (d *Dunning) IsSent() bool {
	return d.Status == DunningStatusSent
}

// IsCancelled returns true if the reminder was withdrawn
func (d *Dunning) IsCancelled() bool {
	return d.Status == DunningStatusCancelled
}
