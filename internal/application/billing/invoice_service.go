package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/crm/invoicing/internal/domain/billing/acl"
	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/domain/shared/valueobject"
	"github.com/crm/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceServiceConfig holds the billing defaults applied when a request
// leaves them unset
type InvoiceServiceConfig struct {
	DefaultDueDays  int
	DefaultCurrency valueobject.Currency
}

// InvoiceService provides application-level invoice operations
type InvoiceService struct {
	invoiceRepo    billing.InvoiceRepository
	numberGen      billing.NumberGenerator
	customers      acl.CustomerLookup
	eventPublisher shared.EventPublisher
	cfg            InvoiceServiceConfig
	logger         *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo billing.InvoiceRepository,
	numberGen billing.NumberGenerator,
	customers acl.CustomerLookup,
	cfg InvoiceServiceConfig,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		numberGen:   numberGen,
		customers:   customers,
		cfg:         cfg,
		logger:      logger.Named("invoice-service"),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// LineItemRequest represents a line item in a create invoice request
type LineItemRequest struct {
	Description     string          `json:"description" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice       decimal.Decimal `json:"unit_price" binding:"required"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
}

// CreateInvoiceRequest represents a request to create a draft invoice
type CreateInvoiceRequest struct {
	CustomerID string            `json:"customer_id" binding:"required"`
	Currency   string            `json:"currency"`
	DueDays    int               `json:"due_days"`
	Notes      string            `json:"notes"`
	Items      []LineItemRequest `json:"items" binding:"required,min=1,dive"`
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID              uuid.UUID          `json:"id"`
	TenantID        uuid.UUID          `json:"tenant_id"`
	InvoiceNumber   string             `json:"invoice_number"`
	CustomerID      string             `json:"customer_id"`
	CustomerName    string             `json:"customer_name,omitempty"`
	Currency        string             `json:"currency"`
	Status          string             `json:"status"`
	LineItems       []LineItemResponse `json:"line_items"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	TaxTotal        decimal.Decimal    `json:"tax_total"`
	DiscountTotal   decimal.Decimal    `json:"discount_total"`
	GrandTotal      decimal.Decimal    `json:"grand_total"`
	PaidAmount      decimal.Decimal    `json:"paid_amount"`
	Outstanding     decimal.Decimal    `json:"outstanding"`
	CreditBalance   decimal.Decimal    `json:"credit_balance"`
	PaidPercentage  decimal.Decimal    `json:"paid_percentage"`
	DueDays         int                `json:"due_days"`
	IssueDate       *time.Time         `json:"issue_date,omitempty"`
	DueDate         *time.Time         `json:"due_date,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	PaidAt          *time.Time         `json:"paid_at,omitempty"`
	OverdueMarkedAt *time.Time         `json:"overdue_marked_at,omitempty"`
	CanceledAt      *time.Time         `json:"canceled_at,omitempty"`
	CancelReason    string             `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Version         int                `json:"version"`
}

// InvoiceListFilter defines filtering options for invoice list queries
type InvoiceListFilter struct {
	Search     string     `form:"search"`
	CustomerID string     `form:"customer_id"`
	Status     string     `form:"status"`
	FromDate   *time.Time `form:"from_date"`
	ToDate     *time.Time `form:"to_date"`
	DueFrom    *time.Time `form:"due_from"`
	DueTo      *time.Time `form:"due_to"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

// CreateInvoice creates a draft invoice. The customer name is resolved from
// the identity service on a best-effort basis; a slow or unreachable identity
// service leaves the name empty and never blocks invoice creation.
func (s *InvoiceService) CreateInvoice(ctx context.Context, tenantID uuid.UUID, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCustomerID, req.CustomerID,
	)

	items := make([]billing.LineItem, 0, len(req.Items))
	for _, ir := range req.Items {
		item, err := billing.NewLineItem(ir.Description, ir.Quantity, ir.UnitPrice, ir.DiscountPercent, ir.TaxPercent)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		items = append(items, item)
	}

	currency := valueobject.Currency(req.Currency)
	if req.Currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	dueDays := req.DueDays
	if dueDays == 0 {
		dueDays = s.cfg.DefaultDueDays
	}

	invoiceNumber, err := s.numberGen.NextInvoiceNumber(ctx, tenantID, time.Now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to generate invoice number: %w", err)
	}

	customerName := s.resolveCustomerName(ctx, tenantID, req.CustomerID)

	invoice, err := billing.NewInvoice(tenantID, invoiceNumber, req.CustomerID, customerName, currency, dueDays, items)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.Notes != "" {
		invoice.SetNotes(req.Notes)
	}

	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceNumber, invoiceNumber)
	return toInvoiceResponse(invoice), nil
}

// resolveCustomerName looks up the customer in the identity service.
// Failures are logged and the lookup degrades to an empty name.
func (s *InvoiceService) resolveCustomerName(ctx context.Context, tenantID uuid.UUID, customerID string) string {
	ref, err := s.customers.FindCustomer(ctx, tenantID, customerID)
	if err != nil {
		s.logger.Warn("customer name unresolved, creating invoice without it",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return ""
	}
	return ref.Name()
}

// IssueInvoice finalizes a draft invoice, stamping its issue and due dates
func (s *InvoiceService) IssueInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "issue")
	defer span.End()

	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	invoice, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := invoice.Issue(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, &invoice.TenantAggregateRoot.BaseAggregateRoot)

	return toInvoiceResponse(invoice), nil
}

// CancelInvoice voids an invoice that has not been fully paid
func (s *InvoiceService) CancelInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID, reason string) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "cancel")
	defer span.End()

	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	invoice, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := invoice.Cancel(reason); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, &invoice.TenantAggregateRoot.BaseAggregateRoot)

	return toInvoiceResponse(invoice), nil
}

// GetInvoice gets an invoice by ID
func (s *InvoiceService) GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(invoice), nil
}

// GetInvoiceByNumber gets an invoice by its invoice number
func (s *InvoiceService) GetInvoiceByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*InvoiceResponse, error) {
	invoice, err := s.invoiceRepo.FindByInvoiceNumber(ctx, tenantID, invoiceNumber)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(invoice), nil
}

// ListInvoices lists invoices with filtering
func (s *InvoiceService) ListInvoices(ctx context.Context, tenantID uuid.UUID, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	domainFilter := billing.InvoiceFilter{
		FromDate: filter.FromDate,
		ToDate:   filter.ToDate,
		DueFrom:  filter.DueFrom,
		DueTo:    filter.DueTo,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.CustomerID != "" {
		domainFilter.CustomerID = &filter.CustomerID
	}
	if filter.Status != "" {
		status := billing.InvoiceStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown invoice status %q", filter.Status))
		}
		domainFilter.Status = &status
	}

	invoices, err := s.invoiceRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.invoiceRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = *toInvoiceResponse(&invoices[i])
	}
	return responses, total, nil
}

// InvoiceSummary aggregates the open and overdue position of a tenant
type InvoiceSummary struct {
	TotalOutstanding   decimal.Decimal `json:"total_outstanding"`
	TotalOverdue       decimal.Decimal `json:"total_overdue"`
	DraftCount         int64           `json:"draft_count"`
	IssuedCount        int64           `json:"issued_count"`
	PartiallyPaidCount int64           `json:"partially_paid_count"`
	PaidCount          int64           `json:"paid_count"`
	OverdueCount       int64           `json:"overdue_count"`
}

// GetSummary gets a summary of the invoice ledger for a tenant
func (s *InvoiceService) GetSummary(ctx context.Context, tenantID uuid.UUID) (*InvoiceSummary, error) {
	totalOutstanding, err := s.invoiceRepo.SumOutstandingForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	totalOverdue, err := s.invoiceRepo.SumOverdueForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	summary := &InvoiceSummary{
		TotalOutstanding: totalOutstanding,
		TotalOverdue:     totalOverdue,
	}

	counts := []struct {
		status billing.InvoiceStatus
		dest   *int64
	}{
		{billing.InvoiceStatusDraft, &summary.DraftCount},
		{billing.InvoiceStatusIssued, &summary.IssuedCount},
		{billing.InvoiceStatusPartiallyPaid, &summary.PartiallyPaidCount},
		{billing.InvoiceStatusPaid, &summary.PaidCount},
		{billing.InvoiceStatusOverdue, &summary.OverdueCount},
	}
	for _, c := range counts {
		count, err := s.invoiceRepo.CountByStatus(ctx, tenantID, c.status)
		if err != nil {
			return nil, err
		}
		*c.dest = count
	}

	return summary, nil
}

// SweepOverdue marks every open invoice past its due date as OVERDUE.
// A conflict on one invoice is logged and skipped; the sweep is re-run
// daily and picks up whatever it missed.
func (s *InvoiceService) SweepOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "sweep_overdue")
	defer span.End()

	telemetry.SetAttribute(span, telemetry.SpanAttrTenantID, tenantID.String())

	invoices, err := s.invoiceRepo.FindDueForOverdue(ctx, tenantID, asOf)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	marked := 0
	for i := range invoices {
		invoice := &invoices[i]
		if err := invoice.MarkOverdue(asOf); err != nil {
			continue
		}
		if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
			s.logger.Warn("overdue sweep skipped invoice",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err),
			)
			continue
		}
		s.publishEvents(ctx, &invoice.TenantAggregateRoot.BaseAggregateRoot)
		marked++
	}

	telemetry.SetAttribute(span, "marked_count", marked)
	return marked, nil
}

// publishEvents publishes pending domain events and clears them.
// Delivery failures are logged, never returned; the ledger mutation
// already happened and must not be rolled back over a notification.
func (s *InvoiceService) publishEvents(ctx context.Context, agg *shared.BaseAggregateRoot) {
	publishAggregateEvents(ctx, s.eventPublisher, agg, s.logger)
}

// toInvoiceResponse converts a domain invoice to an API response
func toInvoiceResponse(inv *billing.Invoice) *InvoiceResponse {
	items := make([]LineItemResponse, len(inv.LineItems))
	for i, item := range inv.LineItems {
		items[i] = LineItemResponse{
			ID:              item.ID,
			Description:     item.Description,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
			TaxPercent:      item.TaxPercent,
			TotalPrice:      item.TotalPrice,
		}
	}

	return &InvoiceResponse{
		ID:              inv.ID,
		TenantID:        inv.TenantID,
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		CustomerName:    inv.CustomerName,
		Currency:        inv.Currency.String(),
		Status:          inv.Status.String(),
		LineItems:       items,
		Subtotal:        inv.Subtotal,
		TaxTotal:        inv.TaxTotal,
		DiscountTotal:   inv.DiscountTotal,
		GrandTotal:      inv.GrandTotal,
		PaidAmount:      inv.PaidAmount,
		Outstanding:     inv.Outstanding,
		CreditBalance:   inv.CreditBalance(),
		PaidPercentage:  inv.PaidPercentage(),
		DueDays:         inv.DueDays,
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		Notes:           inv.Notes,
		PaidAt:          inv.PaidAt,
		OverdueMarkedAt: inv.OverdueMarkedAt,
		CanceledAt:      inv.CanceledAt,
		CancelReason:    inv.CancelReason,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
		Version:         inv.Version,
	}
}
