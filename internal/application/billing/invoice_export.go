package billing

import (
	"context"
	"strings"
	"time"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// exportDateLayout is the date format used in accounting exports
const exportDateLayout = "2006-01-02"

// ExportedLineItem is a line item in an accounting export
type ExportedLineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	Discount    string `json:"discount"`
	Tax         string `json:"tax"`
	Total       string `json:"total"`
}

// InvoiceExport is the stable shape invoices are handed to downstream
// accounting systems in. All monetary amounts are fixed two-decimal
// strings, never floats, and the field layout is a wire contract that
// must not change shape with internal refactorings.
type InvoiceExport struct {
	Number     string             `json:"number"`
	CustomerID string             `json:"customerId"`
	Currency   string             `json:"currency"`
	Status     string             `json:"status"`
	IssueDate  string             `json:"issueDate,omitempty"`
	DueDate    string             `json:"dueDate,omitempty"`
	LineItems  []ExportedLineItem `json:"lineItems"`
	Subtotal   string             `json:"subtotal"`
	Discount   string             `json:"discount"`
	Tax        string             `json:"tax"`
	Total      string             `json:"total"`
	Paid       string             `json:"paid"`
}

// ExportInvoice returns an invoice in the accounting export shape
func (s *InvoiceService) ExportInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceExport, error) {
	invoice, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	return toInvoiceExport(invoice), nil
}

func toInvoiceExport(inv *billing.Invoice) *InvoiceExport {
	items := make([]ExportedLineItem, len(inv.LineItems))
	for i, item := range inv.LineItems {
		items[i] = ExportedLineItem{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			UnitPrice:   exportAmount(item.UnitPrice),
			Discount:    item.DiscountPercent.String(),
			Tax:         item.TaxPercent.String(),
			Total:       exportAmount(item.TotalPrice),
		}
	}

	return &InvoiceExport{
		Number:     inv.InvoiceNumber,
		CustomerID: inv.CustomerID,
		Currency:   inv.Currency.String(),
		Status:     strings.ToLower(inv.Status.String()),
		IssueDate:  exportDate(inv.IssueDate),
		DueDate:    exportDate(inv.DueDate),
		LineItems:  items,
		Subtotal:   exportAmount(inv.Subtotal),
		Discount:   exportAmount(inv.DiscountTotal),
		Tax:        exportAmount(inv.TaxTotal),
		Total:      exportAmount(inv.GrandTotal),
		Paid:       exportAmount(inv.PaidAmount),
	}
}

func exportAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func exportDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportDateLayout)
}
