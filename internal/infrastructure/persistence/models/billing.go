package models

import (
	"time"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/crm/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber   string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	CustomerID      string                `gorm:"type:varchar(100);not null;index"`
	CustomerName    string                `gorm:"type:varchar(200)"`
	Currency        string                `gorm:"type:varchar(3);not null"`
	Status          billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	LineItems       billing.LineItems     `gorm:"type:jsonb;default:'[]'"`
	Subtotal        decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	TaxTotal        decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	DiscountTotal   decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	GrandTotal      decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	PaidAmount      decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Outstanding     decimal.Decimal       `gorm:"type:decimal(18,2);not null;index"`
	DueDays         int                   `gorm:"not null"`
	IssueDate       *time.Time            `gorm:"index"`
	DueDate         *time.Time            `gorm:"index"`
	Notes           string                `gorm:"type:text"`
	PaidAt          *time.Time
	OverdueMarkedAt *time.Time
	CanceledAt      *time.Time
	CancelReason    string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		InvoiceNumber:   m.InvoiceNumber,
		CustomerID:      m.CustomerID,
		CustomerName:    m.CustomerName,
		Currency:        valueobject.Currency(m.Currency),
		Status:          m.Status,
		LineItems:       m.LineItems,
		Subtotal:        m.Subtotal,
		TaxTotal:        m.TaxTotal,
		DiscountTotal:   m.DiscountTotal,
		GrandTotal:      m.GrandTotal,
		PaidAmount:      m.PaidAmount,
		Outstanding:     m.Outstanding,
		DueDays:         m.DueDays,
		IssueDate:       m.IssueDate,
		DueDate:         m.DueDate,
		Notes:           m.Notes,
		PaidAt:          m.PaidAt,
		OverdueMarkedAt: m.OverdueMarkedAt,
		CanceledAt:      m.CanceledAt,
		CancelReason:    m.CancelReason,
	}
	m.PopulateTenantAggregateRoot(&inv.TenantAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.CustomerID = inv.CustomerID
	m.CustomerName = inv.CustomerName
	m.Currency = inv.Currency.String()
	m.Status = inv.Status
	m.LineItems = inv.LineItems
	m.Subtotal = inv.Subtotal
	m.TaxTotal = inv.TaxTotal
	m.DiscountTotal = inv.DiscountTotal
	m.GrandTotal = inv.GrandTotal
	m.PaidAmount = inv.PaidAmount
	m.Outstanding = inv.Outstanding
	m.DueDays = inv.DueDays
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Notes = inv.Notes
	m.PaidAt = inv.PaidAt
	m.OverdueMarkedAt = inv.OverdueMarkedAt
	m.CanceledAt = inv.CanceledAt
	m.CancelReason = inv.CancelReason
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	TenantAggregateModel
	InvoiceID     uuid.UUID               `gorm:"type:uuid;not null;index"`
	InvoiceNumber string                  `gorm:"type:varchar(50);not null"`
	Provider      billing.PaymentProvider `gorm:"type:varchar(20);not null;index"`
	Amount        decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Currency      string                  `gorm:"type:varchar(3);not null"`
	Status        billing.PaymentStatus   `gorm:"type:varchar(20);not null;index"`
	TransactionID string                  `gorm:"type:varchar(200)"`
	Remark        string                  `gorm:"type:text"`
	ProcessedAt   time.Time               `gorm:"not null"`
	RefundedAt    *time.Time
	RefundReason  string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *billing.Payment {
	p := &billing.Payment{
		InvoiceID:     m.InvoiceID,
		InvoiceNumber: m.InvoiceNumber,
		Provider:      m.Provider,
		Amount:        m.Amount,
		Currency:      valueobject.Currency(m.Currency),
		Status:        m.Status,
		TransactionID: m.TransactionID,
		Remark:        m.Remark,
		ProcessedAt:   m.ProcessedAt,
		RefundedAt:    m.RefundedAt,
		RefundReason:  m.RefundReason,
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *billing.Payment) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.InvoiceID = p.InvoiceID
	m.InvoiceNumber = p.InvoiceNumber
	m.Provider = p.Provider
	m.Amount = p.Amount
	m.Currency = p.Currency.String()
	m.Status = p.Status
	m.TransactionID = p.TransactionID
	m.Remark = p.Remark
	m.ProcessedAt = p.ProcessedAt
	m.RefundedAt = p.RefundedAt
	m.RefundReason = p.RefundReason
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// DunningModel is the persistence model for the Dunning aggregate root.
type DunningModel struct {
	TenantAggregateModel
	InvoiceID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	InvoiceNumber  string                `gorm:"type:varchar(50);not null"`
	CustomerID     string                `gorm:"type:varchar(100);not null"`
	ReminderLevel  int                   `gorm:"not null"`
	Status         billing.DunningStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	InvoiceDueDate *time.Time
	SentAt         *time.Time
	TemplateUsed   string `gorm:"type:varchar(100)"`
	CancelledAt    *time.Time
}

// TableName returns the table name for GORM
func (DunningModel) TableName() string {
	return "dunnings"
}

// ToDomain converts the persistence model to a domain Dunning entity.
func (m *DunningModel) ToDomain() *billing.Dunning {
	d := &billing.Dunning{
		InvoiceID:      m.InvoiceID,
		InvoiceNumber:  m.InvoiceNumber,
		CustomerID:     m.CustomerID,
		ReminderLevel:  m.ReminderLevel,
		Status:         m.Status,
		InvoiceDueDate: m.InvoiceDueDate,
		SentAt:         m.SentAt,
		TemplateUsed:   m.TemplateUsed,
		CancelledAt:    m.CancelledAt,
	}
	m.PopulateTenantAggregateRoot(&d.TenantAggregateRoot)
	return d
}

// FromDomain populates the persistence model from a domain Dunning entity.
func (m *DunningModel) FromDomain(d *billing.Dunning) {
	m.FromDomainTenantAggregateRoot(d.TenantAggregateRoot)
	m.InvoiceID = d.InvoiceID
	m.InvoiceNumber = d.InvoiceNumber
	m.CustomerID = d.CustomerID
	m.ReminderLevel = d.ReminderLevel
	m.Status = d.Status
	m.InvoiceDueDate = d.InvoiceDueDate
	m.SentAt = d.SentAt
	m.TemplateUsed = d.TemplateUsed
	m.CancelledAt = d.CancelledAt
}

// DunningModelFromDomain creates a new persistence model from a domain Dunning.
func DunningModelFromDomain(d *billing.Dunning) *DunningModel {
	m := &DunningModel{}
	m.FromDomain(d)
	return m
}

// NumberSequenceModel backs the sequential invoice numbering scheme.
// One row per tenant and year; the counter survives restarts and is
// advanced atomically so concurrent instances never repeat a number.
type NumberSequenceModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Year      int       `gorm:"primaryKey"`
	NextValue int64     `gorm:"not null;default:1"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NumberSequenceModel) TableName() string {
	return "number_sequences"
}
