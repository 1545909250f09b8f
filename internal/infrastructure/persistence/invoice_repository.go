package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// openInvoiceStatuses are the statuses that carry an open balance
var openInvoiceStatuses = []billing.InvoiceStatus{
	billing.InvoiceStatusIssued,
	billing.InvoiceStatusPartiallyPaid,
	billing.InvoiceStatusOverdue,
}

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds an invoice by ID for a specific tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoiceNumber finds by invoice number for a tenant
func (r *GormInvoiceRepository) FindByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, invoiceNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all invoices for a tenant with filtering
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyInvoiceFilter(query, filter)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return invoiceModelsToDomain(invoiceModels), nil
}

// FindByStatus finds invoices by status for a tenant
func (r *GormInvoiceRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status billing.InvoiceStatus, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND status = ?", tenantID, status)
	query = r.applyInvoiceFilter(query, filter)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return invoiceModelsToDomain(invoiceModels), nil
}

// FindDueForOverdue finds open invoices whose due date has passed as of the
// given time. Invoices already in OVERDUE are excluded so the daily sweep
// only touches each invoice once.
func (r *GormInvoiceRepository) FindDueForOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND due_date < ? AND status IN ?", tenantID, asOf,
			[]billing.InvoiceStatus{billing.InvoiceStatusIssued, billing.InvoiceStatusPartiallyPaid}).
		Order("due_date ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return invoiceModelsToDomain(invoiceModels), nil
}

// FindOverdue finds invoices currently in OVERDUE status for a tenant
func (r *GormInvoiceRepository) FindOverdue(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND status = ?", tenantID, billing.InvoiceStatusOverdue)
	query = r.applyInvoiceFilter(query, filter)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return invoiceModelsToDomain(invoiceModels), nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")
	}
	return nil
}

// CountForTenant counts invoices for a tenant
func (r *GormInvoiceRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyInvoiceFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByStatus counts invoices by status
func (r *GormInvoiceRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID, status billing.InvoiceStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND status = ?", tenantID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumOutstandingForTenant calculates total open balance for a tenant
func (r *GormInvoiceRepository) SumOutstandingForTenant(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("COALESCE(SUM(outstanding), 0) as total").
		Where("tenant_id = ? AND status IN ?", tenantID, openInvoiceStatuses).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SumOverdueForTenant calculates total overdue balance for a tenant
func (r *GormInvoiceRepository) SumOverdueForTenant(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("COALESCE(SUM(outstanding), 0) as total").
		Where("tenant_id = ? AND status = ?", tenantID, billing.InvoiceStatusOverdue).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// ExistsByInvoiceNumber checks if an invoice number exists for a tenant
func (r *GormInvoiceRepository) ExistsByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, invoiceNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyInvoiceFilter applies filter options to the query
func (r *GormInvoiceRepository) applyInvoiceFilter(query *gorm.DB, filter billing.InvoiceFilter) *gorm.DB {
	query = r.applyInvoiceFilterWithoutPagination(query, filter)

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply ordering
	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}

// applyInvoiceFilterWithoutPagination applies filter options without pagination
func (r *GormInvoiceRepository) applyInvoiceFilterWithoutPagination(query *gorm.DB, filter billing.InvoiceFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("invoice_number ILIKE ? OR customer_name ILIKE ?",
			searchPattern, searchPattern)
	}

	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}
	if filter.DueFrom != nil {
		query = query.Where("due_date >= ?", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		query = query.Where("due_date <= ?", *filter.DueTo)
	}
	if filter.MinAmount != nil {
		query = query.Where("outstanding >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		query = query.Where("outstanding <= ?", *filter.MaxAmount)
	}

	return query
}

func invoiceModelsToDomain(invoiceModels []models.InvoiceModel) []billing.Invoice {
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
