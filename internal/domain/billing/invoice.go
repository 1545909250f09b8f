package billing

import (
	"fmt"
	"time"

	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"          // Editable, not yet sent to the customer
	InvoiceStatusIssued        InvoiceStatus = "ISSUED"         // Finalized, awaiting payment
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID" // Some payment applied, balance remains
	InvoiceStatusPaid          InvoiceStatus = "PAID"           // Fully settled
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"        // Past due date with open balance
	InvoiceStatusCanceled      InvoiceStatus = "CANCELED"       // Voided before settlement
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are allowed
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCanceled
}

// CanApplyPayment returns true if payments can be applied in this status
func (s InvoiceStatus) CanApplyPayment() bool {
	return s == InvoiceStatusIssued || s == InvoiceStatusPartiallyPaid || s == InvoiceStatusOverdue
}

// CanMarkOverdue returns true if the overdue sweep may transition this status
func (s InvoiceStatus) CanMarkOverdue() bool {
	return s == InvoiceStatusIssued || s == InvoiceStatusPartiallyPaid
}

// Invoice is the aggregate root of the billing context. It owns its line
// items, the derived totals and the payment ledger (paid and outstanding
// amounts). All monetary fields share a single currency.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber   string               `json:"invoice_number"`
	CustomerID      string               `json:"customer_id"` // Opaque reference into the identity service
	CustomerName    string               `json:"customer_name"`
	Currency        valueobject.Currency `json:"currency"`
	Status          InvoiceStatus        `json:"status"`
	LineItems       LineItems            `json:"line_items"`
	Subtotal        decimal.Decimal      `json:"subtotal"`       // Discounted net before tax
	TaxTotal        decimal.Decimal      `json:"tax_total"`      // Computed from unrounded nets, not from line totals
	DiscountTotal   decimal.Decimal      `json:"discount_total"` // Already deducted from the subtotal
	GrandTotal      decimal.Decimal      `json:"grand_total"`
	PaidAmount      decimal.Decimal      `json:"paid_amount"`
	Outstanding     decimal.Decimal      `json:"outstanding"` // Negative when overpaid (customer credit)
	DueDays         int                  `json:"due_days"`
	IssueDate       *time.Time           `json:"issue_date"`
	DueDate         *time.Time           `json:"due_date"`
	Notes           string               `json:"notes"`
	PaidAt          *time.Time           `json:"paid_at"`
	OverdueMarkedAt *time.Time           `json:"overdue_marked_at"`
	CanceledAt      *time.Time           `json:"canceled_at"`
	CancelReason    string               `json:"cancel_reason"`
}

// NewInvoice creates a new draft invoice with at least one line item.
// The totals are derived from the line items immediately so a draft
// can be previewed before it is issued.
func NewInvoice(
	tenantID uuid.UUID,
	invoiceNumber string,
	customerID string,
	customerName string,
	currency valueobject.Currency,
	dueDays int,
	items []LineItem,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if customerID == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if !currency.IsValid() {
		return nil, shared.NewDomainError("INVALID_CURRENCY", fmt.Sprintf("Currency %q is not a valid ISO 4217 code", currency))
	}
	if dueDays <= 0 {
		return nil, shared.NewDomainError("INVALID_DUE_DAYS", "Due days must be positive")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("EMPTY_INVOICE", "Invoice requires at least one line item")
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		CustomerID:          customerID,
		CustomerName:        customerName,
		Currency:            currency,
		Status:              InvoiceStatusDraft,
		LineItems:           append(LineItems{}, items...),
		PaidAmount:          decimal.Zero,
		DueDays:             dueDays,
	}
	inv.recomputeTotals()

	return inv, nil
}

// recomputeTotals re-derives all monetary aggregates from the line items.
// Must be called after every line item mutation.
func (inv *Invoice) recomputeTotals() {
	inv.Subtotal = SubtotalOf(inv.LineItems)
	inv.TaxTotal = TaxTotalOf(inv.LineItems)
	inv.DiscountTotal = DiscountTotalOf(inv.LineItems)
	inv.GrandTotal = GrandTotalOf(inv.LineItems)
	inv.Outstanding = inv.GrandTotal.Sub(inv.PaidAmount)
}

// AddLineItem appends a line item to a draft invoice.
// Line items are frozen once the invoice is issued.
func (inv *Invoice) AddLineItem(item LineItem) error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot modify line items of invoice in %s status", inv.Status))
	}

	inv.LineItems = append(inv.LineItems, item)
	inv.recomputeTotals()
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// Issue finalizes a draft invoice. The issue date is stamped now and the
// due date derived from it using the configured payment terms.
func (inv *Invoice) Issue() error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Only draft invoices can be issued, current status is %s", inv.Status))
	}
	if len(inv.LineItems) == 0 {
		return shared.NewDomainError("EMPTY_INVOICE", "Cannot issue an invoice without line items")
	}

	now := time.Now()
	dueDate := now.AddDate(0, 0, inv.DueDays)
	inv.Status = InvoiceStatusIssued
	inv.IssueDate = &now
	inv.DueDate = &dueDate
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceIssuedEvent(inv))

	return nil
}

// ApplyPayment records a settled amount against the invoice ledger.
// Overpayment is accepted and tracked as a negative outstanding balance;
// rejecting money that already moved would only desynchronize the ledger
// from the payment provider.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) error {
	if !inv.Status.CanApplyPayment() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot apply payment to invoice in %s status", inv.Status))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount)
	inv.Outstanding = inv.GrandTotal.Sub(inv.PaidAmount)

	if inv.Outstanding.LessThanOrEqual(decimal.Zero) {
		now := time.Now()
		inv.Status = InvoiceStatusPaid
		inv.PaidAt = &now
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	} else if inv.PaidAmount.GreaterThan(decimal.Zero) {
		inv.Status = InvoiceStatusPartiallyPaid
	}

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// MarkOverdue transitions an open invoice past its due date to OVERDUE.
// The transition is idempotent at the caller level: an invoice already
// in OVERDUE is not eligible and the sweep skips it.
func (inv *Invoice) MarkOverdue(asOf time.Time) error {
	if !inv.Status.CanMarkOverdue() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark invoice in %s status as overdue", inv.Status))
	}
	if inv.DueDate == nil || !asOf.After(*inv.DueDate) {
		return shared.NewDomainError("NOT_PAST_DUE", "Invoice due date has not passed")
	}

	inv.Status = InvoiceStatusOverdue
	inv.OverdueMarkedAt = &asOf
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceOverdueEvent(inv))

	return nil
}

// Cancel voids the invoice. Paid invoices cannot be canceled; a settled
// ledger entry has to be corrected through a refund instead.
func (inv *Invoice) Cancel(reason string) error {
	if inv.Status == InvoiceStatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Paid invoices cannot be canceled")
	}
	if inv.Status == InvoiceStatusCanceled {
		return shared.NewDomainError("INVALID_STATE", "Invoice is already canceled")
	}

	now := time.Now()
	previousStatus := inv.Status
	inv.Status = InvoiceStatusCanceled
	inv.CanceledAt = &now
	inv.CancelReason = reason
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceCanceledEvent(inv, previousStatus))

	return nil
}

// SetNotes updates the free-form notes field
func (inv *Invoice) SetNotes(notes string) {
	inv.Notes = notes
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
}

// Helper methods

// GetGrandTotalMoney returns the grand total as Money
func (inv *Invoice) GetGrandTotalMoney() valueobject.Money {
	return valueobject.MustNewMoney(inv.GrandTotal, inv.Currency)
}

// GetOutstandingMoney returns the outstanding balance as Money
func (inv *Invoice) GetOutstandingMoney() valueobject.Money {
	return valueobject.MustNewMoney(inv.Outstanding, inv.Currency)
}

// CreditBalance returns the amount the customer has overpaid,
// or zero when the invoice is not overpaid.
func (inv *Invoice) CreditBalance() decimal.Decimal {
	if inv.Outstanding.IsNegative() {
		return inv.Outstanding.Neg()
	}
	return decimal.Zero
}

// IsDraft returns true if the invoice has not been issued yet
func (inv *Invoice) IsDraft() bool {
	return inv.Status == InvoiceStatusDraft
}

// IsPaid returns true if the invoice is fully settled
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

// IsCanceled returns true if the invoice has been voided
func (inv *Invoice) IsCanceled() bool {
	return inv.Status == InvoiceStatusCanceled
}

// IsPastDue returns true if the due date has passed and the invoice
// still carries an open balance.
func (inv *Invoice) IsPastDue(asOf time.Time) bool {
	if inv.Status.IsTerminal() || inv.DueDate == nil {
		return false
	}
	return asOf.After(*inv.DueDate)
}

// DaysOverdue returns the number of whole days past the due date as of
// the given time, or 0 if the invoice is not past due. A due date crossed
// by any fraction of a day counts as one full day.
func (inv *Invoice) DaysOverdue(asOf time.Time) int {
	if !inv.IsPastDue(asOf) {
		return 0
	}
	elapsed := asOf.Sub(*inv.DueDate)
	days := int(elapsed.Hours() / 24)
	if elapsed%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// PaidPercentage returns the percentage of the grand total that has been
// paid (0-100), capped at 100 for overpaid invoices.
func (inv *Invoice) PaidPercentage() decimal.Decimal {
	if inv.GrandTotal.IsZero() {
		return decimal.NewFromInt(100)
	}
	pct := inv.PaidAmount.Div(inv.GrandTotal).Mul(oneHundred).Round(2)
	if pct.GreaterThan(oneHundred) {
		return oneHundred
	}
	return pct
}
