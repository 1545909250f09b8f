package billing

import (
	"context"
	"time"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/crm/invoicing/internal/domain/billing/acl"
	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockInvoiceRepository is a mock implementation of billing.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*billing.Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status billing.InvoiceStatus, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	args := m.Called(ctx, tenantID, status, filter)
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindDueForOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]billing.Invoice, error) {
	args := m.Called(ctx, tenantID, asOf)
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindOverdue(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID, status billing.InvoiceStatus) (int64, error) {
	args := m.Called(ctx, tenantID, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) SumOutstandingForTenant(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockInvoiceRepository) SumOverdueForTenant(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockInvoiceRepository) ExistsByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error) {
	args := m.Called(ctx, tenantID, invoiceNumber)
	return args.Get(0).(bool), args.Error(1)
}

// MockPaymentRepository is a mock implementation of billing.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Payment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.Payment, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]billing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.PaymentFilter) ([]billing.Payment, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]billing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveWithLock(ctx context.Context, payment *billing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveWithLedger(ctx context.Context, payment *billing.Payment, invoice *billing.Invoice) error {
	args := m.Called(ctx, payment, invoice)
	return args.Error(0)
}

func (m *MockPaymentRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.PaymentFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPaymentRepository) SumSucceededByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockDunningRepository is a mock implementation of billing.DunningRepository
type MockDunningRepository struct {
	mock.Mock
}

func (m *MockDunningRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Dunning, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Dunning), args.Error(1)
}

func (m *MockDunningRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Dunning, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Dunning), args.Error(1)
}

func (m *MockDunningRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.Dunning, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]billing.Dunning), args.Error(1)
}

func (m *MockDunningRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.DunningFilter) ([]billing.Dunning, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]billing.Dunning), args.Error(1)
}

func (m *MockDunningRepository) MaxActiveLevelByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).(int), args.Error(1)
}

func (m *MockDunningRepository) Save(ctx context.Context, dunning *billing.Dunning) error {
	args := m.Called(ctx, dunning)
	return args.Error(0)
}

func (m *MockDunningRepository) SaveWithLock(ctx context.Context, dunning *billing.Dunning) error {
	args := m.Called(ctx, dunning)
	return args.Error(0)
}

func (m *MockDunningRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.DunningFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// Mock Collaborators
// =============================================================================

// MockNumberGenerator is a mock implementation of billing.NumberGenerator
type MockNumberGenerator struct {
	mock.Mock
}

func (m *MockNumberGenerator) NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID, at time.Time) (string, error) {
	args := m.Called(ctx, tenantID, at)
	return args.Get(0).(string), args.Error(1)
}

// MockCustomerLookup is a mock implementation of acl.CustomerLookup
type MockCustomerLookup struct {
	mock.Mock
}

func (m *MockCustomerLookup) FindCustomer(ctx context.Context, tenantID uuid.UUID, customerID string) (acl.CustomerRef, error) {
	args := m.Called(ctx, tenantID, customerID)
	return args.Get(0).(acl.CustomerRef), args.Error(1)
}

// MockEventPublisher records published domain events
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}
