package billing

import (
	"context"
	"time"

	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	CustomerID *string          // Filter by customer reference
	Status     *InvoiceStatus   // Filter by status
	FromDate   *time.Time       // Filter by creation date range start
	ToDate     *time.Time       // Filter by creation date range end
	DueFrom    *time.Time       // Filter by due date range start
	DueTo      *time.Time       // Filter by due date range end
	MinAmount  *decimal.Decimal // Filter by minimum outstanding amount
	MaxAmount  *decimal.Decimal // Filter by maximum outstanding amount
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByIDForTenant finds an invoice by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByInvoiceNumber finds by invoice number for a tenant
	FindByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*Invoice, error)

	// FindAllForTenant finds all invoices for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// FindByStatus finds invoices by status for a tenant
	FindByStatus(ctx context.Context, tenantID uuid.UUID, status InvoiceStatus, filter InvoiceFilter) ([]Invoice, error)

	// FindDueForOverdue finds open invoices whose due date has passed as of
	// the given time. Invoices already marked OVERDUE are excluded, which
	// keeps the sweep idempotent.
	FindDueForOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]Invoice, error)

	// FindOverdue finds invoices currently in OVERDUE status for a tenant
	FindOverdue(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// CountForTenant counts invoices for a tenant with optional filters
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) (int64, error)

	// CountByStatus counts invoices by status for a tenant
	CountByStatus(ctx context.Context, tenantID uuid.UUID, status InvoiceStatus) (int64, error)

	// SumOutstandingForTenant calculates total open balance for a tenant
	SumOutstandingForTenant(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error)

	// SumOverdueForTenant calculates total overdue balance for a tenant
	SumOverdueForTenant(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error)

	// ExistsByInvoiceNumber checks if an invoice number exists for a tenant
	ExistsByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error)
}

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Filter
	InvoiceID *uuid.UUID       // Filter by invoice
	Provider  *PaymentProvider // Filter by provider
	Status    *PaymentStatus   // Filter by status
	FromDate  *time.Time       // Filter by processing date range start
	ToDate    *time.Time       // Filter by processing date range end
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByID finds a payment by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByIDForTenant finds a payment by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindByInvoice finds all payments recorded against an invoice
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Payment, error)

	// FindAllForTenant finds all payments for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter PaymentFilter) ([]Payment, error)

	// Save creates or updates a payment
	Save(ctx context.Context, payment *Payment) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, payment *Payment) error

	// SaveWithLedger persists the payment and the invoice's updated ledger
	// in one transaction. The invoice write carries the optimistic version
	// check; a conflict rolls back the payment row as well.
	SaveWithLedger(ctx context.Context, payment *Payment, invoice *Invoice) error

	// CountForTenant counts payments for a tenant with optional filters
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter PaymentFilter) (int64, error)

	// SumSucceededByInvoice calculates the total settled amount for an invoice
	SumSucceededByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (decimal.Decimal, error)
}

// DunningFilter defines filtering options for dunning queries
type DunningFilter struct {
	shared.Filter
	InvoiceID *uuid.UUID     // Filter by invoice
	Status    *DunningStatus // Filter by status
	MinLevel  *int           // Filter by minimum reminder level
}

// DunningRepository defines the interface for payment reminder persistence
type DunningRepository interface {
	// FindByID finds a reminder by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Dunning, error)

	// FindByIDForTenant finds a reminder by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Dunning, error)

	// FindByInvoice finds all reminders for an invoice, newest first
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Dunning, error)

	// FindAllForTenant finds all reminders for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter DunningFilter) ([]Dunning, error)

	// MaxActiveLevelByInvoice returns the highest reminder level among
	// non-cancelled reminders for an invoice, or 0 if there are none.
	MaxActiveLevelByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (int, error)

	// Save creates or updates a reminder
	Save(ctx context.Context, dunning *Dunning) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, dunning *Dunning) error

	// CountForTenant counts reminders for a tenant with optional filters
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter DunningFilter) (int64, error)
}
