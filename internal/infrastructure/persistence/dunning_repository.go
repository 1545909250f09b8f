package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDunningRepository implements DunningRepository using GORM
type GormDunningRepository struct {
	db *gorm.DB
}

// NewGormDunningRepository creates a new GormDunningRepository
func NewGormDunningRepository(db *gorm.DB) *GormDunningRepository {
	return &GormDunningRepository{db: db}
}

// FindByID finds a reminder by its ID
func (r *GormDunningRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Dunning, error) {
	var model models.DunningModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a reminder by ID for a specific tenant
func (r *GormDunningRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Dunning, error) {
	var model models.DunningModel
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

// FindByInvoice finds all reminders for an invoice, newest first
func (r *GormDunningRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.Dunning, error) {
	var dunningModels []models.DunningModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("reminder_level DESC").
		Find(&dunningModels).Error; err != nil {
		return nil, err
	}
	return dunningModelsToDomain(dunningModels), nil
}

// FindAllForTenant finds all reminders for a tenant with filtering
func (r *GormDunningRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.DunningFilter) ([]billing.Dunning, error) {
	var dunningModels []models.DunningModel
	query := r.db.WithContext(ctx).Model(&models.DunningModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyDunningFilter(query, filter)

	if err := query.Find(&dunningModels).Error; err != nil {
		return nil, err
	}
	return dunningModelsToDomain(dunningModels), nil
}

// MaxActiveLevelByInvoice returns the highest reminder level among
// non-cancelled reminders for an invoice, or 0 if there are none.
func (r *GormDunningRepository) MaxActiveLevelByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (int, error) {
	var result struct {
		MaxLevel int
	}
	if err := r.db.WithContext(ctx).
		Model(&models.DunningModel{}).
		Select("COALESCE(MAX(reminder_level), 0) as max_level").
		Where("tenant_id = ? AND invoice_id = ? AND status <> ?", tenantID, invoiceID, billing.DunningStatusCancelled).
		Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.MaxLevel, nil
}

// Save creates or updates a reminder
func (r *GormDunningRepository) Save(ctx context.Context, dunning *billing.Dunning) error {
	model := models.DunningModelFromDomain(dunning)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormDunningRepository) SaveWithLock(ctx context.Context, dunning *billing.Dunning) error {
	model := models.DunningModelFromDomain(dunning)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", dunning.ID, dunning.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")
	}
	return nil
}

// CountForTenant counts reminders for a tenant
func (r *GormDunningRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.DunningFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.DunningModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyDunningFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyDunningFilter applies filter options to the query
func (r *GormDunningRepository) applyDunningFilter(query *gorm.DB, filter billing.DunningFilter) *gorm.DB {
	query = r.applyDunningFilterWithoutPagination(query, filter)

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
		query = query.Order("created_at DESC")
	}

	return query
}

// applyDunningFilterWithoutPagination applies filter options without pagination
func (r *GormDunningRepository) applyDunningFilterWithoutPagination(query *gorm.DB, filter billing.DunningFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("invoice_number ILIKE ? OR customer_id ILIKE ?",
			searchPattern, searchPattern)
	}

	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.MinLevel != nil {
		query = query.Where("reminder_level >= ?", *filter.MinLevel)
	}

	return query
}

func dunningModelsToDomain(dunningModels []models.DunningModel) []billing.Dunning {
	dunnings := make([]billing.Dunning, len(dunningModels))
	for i, model := range dunningModels {
		dunnings[i] = *model.ToDomain()
	}
	return dunnings
}

// Ensure GormDunningRepository implements DunningRepository
var _ billing.DunningRepository = (*GormDunningRepository)(nil)
