package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/crm/invoicing/internal/domain/billing/acl"
	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Test Helper Functions
// =============================================================================

func newTestInvoiceService(invoiceRepo *MockInvoiceRepository, numberGen *MockNumberGenerator, customers *MockCustomerLookup) *InvoiceService {
	return NewInvoiceService(invoiceRepo, numberGen, customers, InvoiceServiceConfig{
		DefaultDueDays:  30,
		DefaultCurrency: "EUR",
	}, zap.NewNop())
}

func createTestDraftInvoice(t *testing.T, tenantID uuid.UUID) *billing.Invoice {
	t.Helper()
	item, err := billing.NewLineItem(
		"Consulting",
		decimal.NewFromInt(2),
		decimal.NewFromInt(100),
		decimal.NewFromInt(10),
		decimal.NewFromInt(20),
	)
	require.NoError(t, err)

	invoice, err := billing.NewInvoice(tenantID, "INV-2026-00001", "cust_001", "Acme GmbH", "EUR", 30, []billing.LineItem{item})
	require.NoError(t, err)
	return invoice
}

func createTestIssuedInvoice(t *testing.T, tenantID uuid.UUID) *billing.Invoice {
	t.Helper()
	invoice := createTestDraftInvoice(t, tenantID)
	require.NoError(t, invoice.Issue())
	invoice.ClearDomainEvents()
	return invoice
}

// =============================================================================
// Test Cases for CreateInvoice
// =============================================================================

func TestInvoiceService_CreateInvoice_Success(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	ref, _ := acl.NewCustomerRef("cust_001", "Acme GmbH")
	numberGen.On("NextInvoiceNumber", mock.Anything, tenantID, mock.AnythingOfType("time.Time")).Return("INV-2026-00001", nil)
	customers.On("FindCustomer", mock.Anything, tenantID, "cust_001").Return(ref, nil)
	invoiceRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return(nil)

	result, err := service.CreateInvoice(ctx, tenantID, CreateInvoiceRequest{
		CustomerID: "cust_001",
		Items: []LineItemRequest{
			{
				Description:     "Consulting",
				Quantity:        decimal.NewFromInt(2),
				UnitPrice:       decimal.NewFromInt(100),
				DiscountPercent: decimal.NewFromInt(10),
				TaxPercent:      decimal.NewFromInt(20),
			},
		},
	})

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "INV-2026-00001", result.InvoiceNumber)
	assert.Equal(t, "Acme GmbH", result.CustomerName)
	assert.Equal(t, "DRAFT", result.Status)
	assert.Equal(t, "EUR", result.Currency)
	assert.Equal(t, 30, result.DueDays)
	assert.Equal(t, "180", result.Subtotal.String())
	assert.Equal(t, "36", result.TaxTotal.String())
	assert.Equal(t, "20", result.DiscountTotal.String())
	assert.Equal(t, "216", result.GrandTotal.String())
	assert.Equal(t, "216", result.Outstanding.String())

	invoiceRepo.AssertExpectations(t)
	numberGen.AssertExpectations(t)
	customers.AssertExpectations(t)
}

func TestInvoiceService_CreateInvoice_IdentityUnavailable(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	numberGen.On("NextInvoiceNumber", mock.Anything, tenantID, mock.AnythingOfType("time.Time")).Return("INV-2026-00002", nil)
	customers.On("FindCustomer", mock.Anything, tenantID, "cust_001").Return(acl.CustomerRef{}, errors.New("identity service unreachable"))
	invoiceRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return(nil)

	result, err := service.CreateInvoice(ctx, tenantID, CreateInvoiceRequest{
		CustomerID: "cust_001",
		Items: []LineItemRequest{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50)},
		},
	})

	// A broken identity service degrades the name, never the invoice
	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.CustomerName)
	assert.Equal(t, "cust_001", result.CustomerID)

	invoiceRepo.AssertExpectations(t)
}

func TestInvoiceService_CreateInvoice_InvalidLineItem(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	result, err := service.CreateInvoice(ctx, tenantID, CreateInvoiceRequest{
		CustomerID: "cust_001",
		Items: []LineItemRequest{
			{Description: "Consulting", Quantity: decimal.NewFromInt(-1), UnitPrice: decimal.NewFromInt(50)},
		},
	})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "Quantity cannot be negative")
	invoiceRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestInvoiceService_CreateInvoice_NumberGenerationFails(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	numberGen.On("NextInvoiceNumber", mock.Anything, tenantID, mock.AnythingOfType("time.Time")).Return("", errors.New("sequence unavailable"))

	result, err := service.CreateInvoice(ctx, tenantID, CreateInvoiceRequest{
		CustomerID: "cust_001",
		Items: []LineItemRequest{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50)},
		},
	})

	assert.Error(t, err)
	assert.Nil(t, result)
	invoiceRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// =============================================================================
// Test Cases for IssueInvoice
// =============================================================================

func TestInvoiceService_IssueInvoice_Success(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	publisher := new(MockEventPublisher)
	service.SetEventPublisher(publisher)

	invoice := createTestDraftInvoice(t, tenantID)

	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, invoice.ID).Return(invoice, nil)
	invoiceRepo.On("SaveWithLock", mock.Anything, invoice).Return(nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	result, err := service.IssueInvoice(ctx, tenantID, invoice.ID)

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "ISSUED", result.Status)
	require.NotNil(t, result.IssueDate)
	require.NotNil(t, result.DueDate)
	assert.Equal(t, result.IssueDate.AddDate(0, 0, 30), *result.DueDate)
	assert.Empty(t, invoice.GetDomainEvents())

	invoiceRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestInvoiceService_IssueInvoice_AlreadyIssued(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	invoice := createTestIssuedInvoice(t, tenantID)
	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, invoice.ID).Return(invoice, nil)

	result, err := service.IssueInvoice(ctx, tenantID, invoice.ID)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "Only draft invoices can be issued")
	invoiceRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestInvoiceService_IssueInvoice_NotFound(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	invoiceID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, invoiceID).Return(nil, shared.ErrNotFound)

	result, err := service.IssueInvoice(ctx, tenantID, invoiceID)

	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Nil(t, result)
}

// =============================================================================
// Test Cases for CancelInvoice
// =============================================================================

func TestInvoiceService_CancelInvoice_Success(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	invoice := createTestIssuedInvoice(t, tenantID)

	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, invoice.ID).Return(invoice, nil)
	invoiceRepo.On("SaveWithLock", mock.Anything, invoice).Return(nil)

	result, err := service.CancelInvoice(ctx, tenantID, invoice.ID, "duplicate entry")

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "CANCELED", result.Status)
	assert.Equal(t, "duplicate entry", result.CancelReason)
	require.NotNil(t, result.CanceledAt)

	invoiceRepo.AssertExpectations(t)
}

func TestInvoiceService_CancelInvoice_PaidInvoice(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	invoice := createTestIssuedInvoice(t, tenantID)
	require.NoError(t, invoice.ApplyPayment(invoice.GrandTotal))
	invoice.ClearDomainEvents()

	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, invoice.ID).Return(invoice, nil)

	result, err := service.CancelInvoice(ctx, tenantID, invoice.ID, "too late")

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "Paid invoices cannot be canceled")
	invoiceRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

// =============================================================================
// Test Cases for ListInvoices and GetSummary
// =============================================================================

func TestInvoiceService_ListInvoices_InvalidStatus(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	result, total, err := service.ListInvoices(ctx, tenantID, InvoiceListFilter{Status: "SHIPPED"})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Zero(t, total)
	assert.Contains(t, err.Error(), "Unknown invoice status")
}

func TestInvoiceService_ListInvoices_Success(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	invoice := createTestIssuedInvoice(t, tenantID)
	invoiceRepo.On("FindAllForTenant", mock.Anything, tenantID, mock.AnythingOfType("billing.InvoiceFilter")).Return([]billing.Invoice{*invoice}, nil)
	invoiceRepo.On("CountForTenant", mock.Anything, tenantID, mock.AnythingOfType("billing.InvoiceFilter")).Return(int64(1), nil)

	result, total, err := service.ListInvoices(ctx, tenantID, InvoiceListFilter{Status: "ISSUED"})

	assert.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, invoice.InvoiceNumber, result[0].InvoiceNumber)

	invoiceRepo.AssertExpectations(t)
}

func TestInvoiceService_GetSummary(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	invoiceRepo.On("SumOutstandingForTenant", mock.Anything, tenantID).Return(decimal.NewFromFloat(1234.50), nil)
	invoiceRepo.On("SumOverdueForTenant", mock.Anything, tenantID).Return(decimal.NewFromFloat(216.00), nil)
	invoiceRepo.On("CountByStatus", mock.Anything, tenantID, billing.InvoiceStatusDraft).Return(int64(2), nil)
	invoiceRepo.On("CountByStatus", mock.Anything, tenantID, billing.InvoiceStatusIssued).Return(int64(3), nil)
	invoiceRepo.On("CountByStatus", mock.Anything, tenantID, billing.InvoiceStatusPartiallyPaid).Return(int64(1), nil)
	invoiceRepo.On("CountByStatus", mock.Anything, tenantID, billing.InvoiceStatusPaid).Return(int64(5), nil)
	invoiceRepo.On("CountByStatus", mock.Anything, tenantID, billing.InvoiceStatusOverdue).Return(int64(1), nil)

	summary, err := service.GetSummary(ctx, tenantID)

	assert.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "1234.5", summary.TotalOutstanding.String())
	assert.Equal(t, "216", summary.TotalOverdue.String())
	assert.Equal(t, int64(2), summary.DraftCount)
	assert.Equal(t, int64(3), summary.IssuedCount)
	assert.Equal(t, int64(1), summary.OverdueCount)

	invoiceRepo.AssertExpectations(t)
}

// =============================================================================
// Test Cases for SweepOverdue
// =============================================================================

func TestInvoiceService_SweepOverdue_MarksPastDueInvoices(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	first := createTestIssuedInvoice(t, tenantID)
	second := createTestIssuedInvoice(t, tenantID)
	asOf := time.Now().AddDate(0, 0, 31)

	invoiceRepo.On("FindDueForOverdue", mock.Anything, tenantID, asOf).Return([]billing.Invoice{*first, *second}, nil)
	invoiceRepo.On("SaveWithLock", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return(nil).Once()
	invoiceRepo.On("SaveWithLock", mock.Anything, mock.AnythingOfType("*billing.Invoice")).
		Return(shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")).Once()

	marked, err := service.SweepOverdue(ctx, tenantID, asOf)

	// The conflicting invoice is skipped, not failed; the next run catches it
	assert.NoError(t, err)
	assert.Equal(t, 1, marked)

	invoiceRepo.AssertExpectations(t)
}

func TestInvoiceService_SweepOverdue_Empty(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	invoiceRepo := new(MockInvoiceRepository)
	numberGen := new(MockNumberGenerator)
	customers := new(MockCustomerLookup)
	service := newTestInvoiceService(invoiceRepo, numberGen, customers)

	asOf := time.Now()
	invoiceRepo.On("FindDueForOverdue", mock.Anything, tenantID, asOf).Return([]billing.Invoice{}, nil)

	marked, err := service.SweepOverdue(ctx, tenantID, asOf)

	assert.NoError(t, err)
	assert.Zero(t, marked)
	invoiceRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}
