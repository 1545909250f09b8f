package persistence

import (
	"context"

	"github.com/crm/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTenantProvider lists tenants that currently have open invoices.
// The daily jobs only need to visit tenants with something to process.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns distinct tenant IDs with at least one open invoice
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	if err := p.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Distinct("tenant_id").
		Where("status IN ?", openInvoiceStatuses).
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, err
	}
	return tenantIDs, nil
}
