package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a payment by ID for a specific tenant
func (r *GormPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
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

// FindByInvoice finds all payments recorded against an invoice
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("processed_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return paymentModelsToDomain(paymentModels), nil
}

// FindAllForTenant finds all payments for a tenant with filtering
func (r *GormPaymentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.PaymentFilter) ([]billing.Payment, error) {
	var paymentModels []models.PaymentModel
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyPaymentFilter(query, filter)

	if err := query.Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return paymentModelsToDomain(paymentModels), nil
}

// Save creates or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *billing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", payment.ID, payment.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")
	}
	return nil
}

// SaveWithLedger persists the payment row and the invoice's ledger update
// in one transaction. The invoice update carries the optimistic version
// check; zero affected rows aborts the transaction so the payment row is
// rolled back with it.
func (r *GormPaymentRepository) SaveWithLedger(ctx context.Context, payment *billing.Payment, invoice *billing.Invoice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoiceModel := models.InvoiceModelFromDomain(invoice)
		result := tx.Model(invoiceModel).
			Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
			Updates(invoiceModel)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")
		}

		return tx.Save(models.PaymentModelFromDomain(payment)).Error
	})
}

// CountForTenant counts payments for a tenant
func (r *GormPaymentRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.PaymentFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyPaymentFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumSucceededByInvoice calculates the total settled amount for an invoice
func (r *GormPaymentRepository) SumSucceededByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("tenant_id = ? AND invoice_id = ? AND status = ?", tenantID, invoiceID, billing.PaymentStatusSucceeded).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// applyPaymentFilter applies filter options to the query
func (r *GormPaymentRepository) applyPaymentFilter(query *gorm.DB, filter billing.PaymentFilter) *gorm.DB {
	query = r.applyPaymentFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("processed_at DESC")
	}

	return query
}

// applyPaymentFilterWithoutPagination applies filter options without pagination
func (r *GormPaymentRepository) applyPaymentFilterWithoutPagination(query *gorm.DB, filter billing.PaymentFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("invoice_number ILIKE ? OR transaction_id ILIKE ?",
			searchPattern, searchPattern)
	}

	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Provider != nil {
		query = query.Where("provider = ?", *filter.Provider)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("processed_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("processed_at <= ?", *filter.ToDate)
	}

	return query
}

func paymentModelsToDomain(paymentModels []models.PaymentModel) []billing.Payment {
	payments := make([]billing.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ billing.PaymentRepository = (*GormPaymentRepository)(nil)
