package billing

import (
	"context"
	"testing"
	"time"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Fixed clock keeps the whole-day overdue arithmetic independent of DST
var testAsOf = time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

func newTestDunningService(dunningRepo *MockDunningRepository, invoiceRepo *MockInvoiceRepository, autoSend bool) *DunningService {
	return NewDunningService(dunningRepo, invoiceRepo, DunningServiceConfig{
		Thresholds: []int{30, 45, 60},
		Templates:  []string{"friendly_reminder", "firm_reminder", "final_notice"},
		AutoSend:   autoSend,
	}, zap.NewNop())
}

// createTestOverdueInvoice builds an issued invoice whose due date lies
// exactly daysOverdue whole days before asOf.
func createTestOverdueInvoice(t *testing.T, tenantID uuid.UUID, asOf time.Time, daysOverdue int) *billing.Invoice {
	t.Helper()
	invoice := createTestIssuedInvoice(t, tenantID)
	dueDate := asOf.AddDate(0, 0, -daysOverdue)
	invoice.DueDate = &dueDate
	require.NoError(t, invoice.MarkOverdue(asOf))
	invoice.ClearDomainEvents()
	return invoice
}

// =============================================================================
// Test Cases for CreateReminder
// =============================================================================

func TestDunningService_CreateReminder_FirstLevel(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, false)

	invoice := createTestOverdueInvoice(t, tenantID, testAsOf, 30)

	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, invoice.ID).Return(invoice, nil)
	dunningRepo.On("MaxActiveLevelByInvoice", mock.Anything, tenantID, invoice.ID).Return(0, nil)
	dunningRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Dunning")).Return(nil)

	result, err := service.CreateReminder(ctx, tenantID, CreateReminderRequest{InvoiceID: invoice.ID})

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.ReminderLevel)
	assert.Equal(t, "PENDING", result.Status)
	assert.Equal(t, invoice.InvoiceNumber, result.InvoiceNumber)
	assert.Equal(t, invoice.CustomerID, result.CustomerID)
	require.NotNil(t, result.InvoiceDueDate)

	dunningRepo.AssertExpectations(t)
}

func TestDunningService_CreateReminder_AutoSend(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, true)

	invoice := createTestOverdueInvoice(t, tenantID, testAsOf, 45)

	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, invoice.ID).Return(invoice, nil)
	dunningRepo.On("MaxActiveLevelByInvoice", mock.Anything, tenantID, invoice.ID).Return(1, nil)
	dunningRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Dunning")).Return(nil)

	result, err := service.CreateReminder(ctx, tenantID, CreateReminderRequest{InvoiceID: invoice.ID})

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.ReminderLevel)
	assert.Equal(t, "SENT", result.Status)
	assert.Equal(t, "firm_reminder", result.TemplateUsed)
	require.NotNil(t, result.SentAt)

	dunningRepo.AssertExpectations(t)
}

func TestDunningService_CreateReminder_InvoiceNotOverdue(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, false)

	invoice := createTestIssuedInvoice(t, tenantID)
	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, invoice.ID).Return(invoice, nil)

	result, err := service.CreateReminder(ctx, tenantID, CreateReminderRequest{InvoiceID: invoice.ID})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "overdue invoices")
	dunningRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDunningService_CreateReminder_LevelMustEscalate(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, false)

	invoice := createTestOverdueInvoice(t, tenantID, testAsOf, 45)

	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, invoice.ID).Return(invoice, nil)
	dunningRepo.On("MaxActiveLevelByInvoice", mock.Anything, tenantID, invoice.ID).Return(2, nil)

	result, err := service.CreateReminder(ctx, tenantID, CreateReminderRequest{
		InvoiceID:     invoice.ID,
		ReminderLevel: 2,
	})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "must exceed the highest active level")
	dunningRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDunningService_CreateReminder_ReusesCancelledLevel(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, false)

	invoice := createTestOverdueInvoice(t, tenantID, testAsOf, 45)

	// Level 2 was cancelled, so only level 1 is still active and the
	// escalation guard lets a new level-2 reminder through.
	invoiceRepo.On("FindByIDForTenant", mock.Anything, tenantID, invoice.ID).Return(invoice, nil)
	dunningRepo.On("MaxActiveLevelByInvoice", mock.Anything, tenantID, invoice.ID).Return(1, nil)
	dunningRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Dunning")).Return(nil)

	result, err := service.CreateReminder(ctx, tenantID, CreateReminderRequest{
		InvoiceID:     invoice.ID,
		ReminderLevel: 2,
	})

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.ReminderLevel)

	dunningRepo.AssertExpectations(t)
}

// =============================================================================
// Test Cases for SendReminder and CancelReminder
// =============================================================================

func TestDunningService_SendReminder_UsesLevelTemplate(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, false)

	invoice := createTestOverdueInvoice(t, tenantID, testAsOf, 60)
	dunning, err := billing.NewDunning(tenantID, invoice.ID, invoice.InvoiceNumber, invoice.CustomerID, 3, invoice.DueDate)
	require.NoError(t, err)
	dunning.ClearDomainEvents()

	dunningRepo.On("FindByIDForTenant", mock.Anything, tenantID, dunning.ID).Return(dunning, nil)
	dunningRepo.On("SaveWithLock", mock.Anything, dunning).Return(nil)

	result, err := service.SendReminder(ctx, tenantID, dunning.ID)

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "SENT", result.Status)
	assert.Equal(t, "final_notice", result.TemplateUsed)

	dunningRepo.AssertExpectations(t)
}

func TestDunningService_SendReminder_AlreadySent(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, false)

	invoice := createTestOverdueInvoice(t, tenantID, testAsOf, 30)
	dunning, err := billing.NewDunning(tenantID, invoice.ID, invoice.InvoiceNumber, invoice.CustomerID, 1, invoice.DueDate)
	require.NoError(t, err)
	require.NoError(t, dunning.Send("friendly_reminder"))
	dunning.ClearDomainEvents()

	dunningRepo.On("FindByIDForTenant", mock.Anything, tenantID, dunning.ID).Return(dunning, nil)

	result, err := service.SendReminder(ctx, tenantID, dunning.ID)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "Only pending reminders can be sent")
	dunningRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestDunningService_CancelReminder_Success(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, false)

	invoice := createTestOverdueInvoice(t, tenantID, testAsOf, 30)
	dunning, err := billing.NewDunning(tenantID, invoice.ID, invoice.InvoiceNumber, invoice.CustomerID, 1, invoice.DueDate)
	require.NoError(t, err)
	dunning.ClearDomainEvents()

	dunningRepo.On("FindByIDForTenant", mock.Anything, tenantID, dunning.ID).Return(dunning, nil)
	dunningRepo.On("SaveWithLock", mock.Anything, dunning).Return(nil)

	result, err := service.CancelReminder(ctx, tenantID, dunning.ID)

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "CANCELLED", result.Status)
	require.NotNil(t, result.CancelledAt)

	dunningRepo.AssertExpectations(t)
}

// =============================================================================
// Test Cases for ProcessOverdue
// =============================================================================

func TestDunningService_ProcessOverdue_CreatesRemindersAtThresholds(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	asOf := testAsOf

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, false)

	atFirst := createTestOverdueInvoice(t, tenantID, asOf, 30)
	atSecond := createTestOverdueInvoice(t, tenantID, asOf, 45)
	between := createTestOverdueInvoice(t, tenantID, asOf, 40)

	invoiceRepo.On("FindOverdue", mock.Anything, tenantID, mock.AnythingOfType("billing.InvoiceFilter")).
		Return([]billing.Invoice{*atFirst, *atSecond, *between}, nil)
	dunningRepo.On("MaxActiveLevelByInvoice", mock.Anything, tenantID, atFirst.ID).Return(0, nil)
	dunningRepo.On("MaxActiveLevelByInvoice", mock.Anything, tenantID, atSecond.ID).Return(1, nil)
	dunningRepo.On("Save", mock.Anything, mock.MatchedBy(func(d *billing.Dunning) bool {
		return d.InvoiceID == atFirst.ID && d.ReminderLevel == 1
	})).Return(nil).Once()
	dunningRepo.On("Save", mock.Anything, mock.MatchedBy(func(d *billing.Dunning) bool {
		return d.InvoiceID == atSecond.ID && d.ReminderLevel == 2
	})).Return(nil).Once()

	created, err := service.ProcessOverdue(ctx, tenantID, asOf)

	// The invoice at 40 days sits between thresholds and gets nothing
	assert.NoError(t, err)
	assert.Equal(t, 2, created)

	dunningRepo.AssertExpectations(t)
}

func TestDunningService_ProcessOverdue_SkipsAlreadyEscalated(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	asOf := testAsOf

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, false)

	invoice := createTestOverdueInvoice(t, tenantID, asOf, 30)

	invoiceRepo.On("FindOverdue", mock.Anything, tenantID, mock.AnythingOfType("billing.InvoiceFilter")).
		Return([]billing.Invoice{*invoice}, nil)
	dunningRepo.On("MaxActiveLevelByInvoice", mock.Anything, tenantID, invoice.ID).Return(1, nil)

	created, err := service.ProcessOverdue(ctx, tenantID, asOf)

	assert.NoError(t, err)
	assert.Zero(t, created)
	dunningRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDunningService_ProcessOverdue_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	asOf := testAsOf

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, false)

	broken := createTestOverdueInvoice(t, tenantID, asOf, 30)
	healthy := createTestOverdueInvoice(t, tenantID, asOf, 30)

	invoiceRepo.On("FindOverdue", mock.Anything, tenantID, mock.AnythingOfType("billing.InvoiceFilter")).
		Return([]billing.Invoice{*broken, *healthy}, nil)
	dunningRepo.On("MaxActiveLevelByInvoice", mock.Anything, tenantID, broken.ID).Return(0, nil)
	dunningRepo.On("MaxActiveLevelByInvoice", mock.Anything, tenantID, healthy.ID).Return(0, nil)
	dunningRepo.On("Save", mock.Anything, mock.MatchedBy(func(d *billing.Dunning) bool {
		return d.InvoiceID == broken.ID
	})).Return(assert.AnError)
	dunningRepo.On("Save", mock.Anything, mock.MatchedBy(func(d *billing.Dunning) bool {
		return d.InvoiceID == healthy.ID
	})).Return(nil)

	created, err := service.ProcessOverdue(ctx, tenantID, asOf)

	assert.NoError(t, err)
	assert.Equal(t, 1, created)

	dunningRepo.AssertExpectations(t)
}

func TestDunningService_ProcessOverdue_NoOverdueInvoices(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	dunningRepo := new(MockDunningRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := newTestDunningService(dunningRepo, invoiceRepo, false)

	invoiceRepo.On("FindOverdue", mock.Anything, tenantID, mock.AnythingOfType("billing.InvoiceFilter")).
		Return([]billing.Invoice{}, nil)

	created, err := service.ProcessOverdue(ctx, tenantID, time.Now())

	assert.NoError(t, err)
	assert.Zero(t, created)
}
