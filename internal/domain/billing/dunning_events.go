package billing

import (
	"time"

	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// DunningCreatedEvent is raised when a payment reminder is created
type DunningCreatedEvent struct {
	shared.BaseDomainEvent
	DunningID      uuid.UUID  `json:"dunning_id"`
	InvoiceID      uuid.UUID  `json:"invoice_id"`
	InvoiceNumber  string     `json:"invoice_number"`
	CustomerID     string     `json:"customer_id"`
	ReminderLevel  int        `json:"reminder_level"`
	InvoiceDueDate *time.Time `json:"invoice_due_date,omitempty"`
}

// NewDunningCreatedEvent creates a new DunningCreatedEvent
func NewDunningCreatedEvent(d *Dunning) *DunningCreatedEvent {
	return &DunningCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDunningCreated, "Dunning", d.ID, d.TenantID),
		DunningID:       d.ID,
		InvoiceID:       d.InvoiceID,
		InvoiceNumber:   d.InvoiceNumber,
		CustomerID:      d.CustomerID,
		ReminderLevel:   d.ReminderLevel,
		InvoiceDueDate:  d.InvoiceDueDate,
	}
}

// DunningSentEvent is raised when a payment reminder is delivered
type DunningSentEvent struct {
	shared.BaseDomainEvent
	DunningID     uuid.UUID `json:"dunning_id"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	CustomerID    string    `json:"customer_id"`
	ReminderLevel int       `json:"reminder_level"`
	TemplateUsed  string    `json:"template_used"`
	SentAt        time.Time `json:"sent_at"`
}

// NewDunningSentEvent creates a new DunningSentEvent
func NewDunningSentEvent(d *Dunning) *DunningSentEvent {
	sentAt := time.Now()
	if d.SentAt != nil {
		sentAt = *d.SentAt
	}
	return &DunningSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDunningSent, "Dunning", d.ID, d.TenantID),
		DunningID:       d.ID,
		InvoiceID:       d.InvoiceID,
		InvoiceNumber:   d.InvoiceNumber,
		CustomerID:      d.CustomerID,
		ReminderLevel:   d.ReminderLevel,
		TemplateUsed:    d.TemplateUsed,
		SentAt:          sentAt,
	}
}
