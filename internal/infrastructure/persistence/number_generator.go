package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SequentialNumberGenerator issues INV-<year>-<seq> numbers from a per-tenant,
// per-year counter row. The counter is advanced with an atomic upsert so two
// instances asking at the same moment get distinct values.
type SequentialNumberGenerator struct {
	db *gorm.DB
}

// NewSequentialNumberGenerator creates a sequential generator backed by the
// number_sequences table
func NewSequentialNumberGenerator(db *gorm.DB) *SequentialNumberGenerator {
	return &SequentialNumberGenerator{db: db}
}

// NextInvoiceNumber returns the next sequential invoice number for a tenant
func (g *SequentialNumberGenerator) NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID, at time.Time) (string, error) {
	year := at.Year()

	var sequence int64
	err := g.db.WithContext(ctx).Raw(`
		INSERT INTO number_sequences (tenant_id, year, next_value, updated_at)
		VALUES (?, ?, 2, ?)
		ON CONFLICT (tenant_id, year)
		DO UPDATE SET next_value = number_sequences.next_value + 1, updated_at = EXCLUDED.updated_at
		RETURNING next_value - 1`,
		tenantID, year, at,
	).Scan(&sequence).Error
	if err != nil {
		return "", fmt.Errorf("failed to advance invoice number sequence: %w", err)
	}

	return billing.FormatSequentialNumber(year, sequence), nil
}

// RandomNumberGenerator issues INV-<YYYYMMDD>-<suffix> numbers with a random
// five-character suffix. A collision with an existing number for the tenant
// is resolved by drawing again.
type RandomNumberGenerator struct {
	invoices billing.InvoiceRepository
}

const (
	randomSuffixLength   = 5
	randomNumberAttempts = 10
)

// NewRandomNumberGenerator creates a random generator that checks candidate
// numbers against the invoice repository
func NewRandomNumberGenerator(invoices billing.InvoiceRepository) *RandomNumberGenerator {
	return &RandomNumberGenerator{invoices: invoices}
}

// NextInvoiceNumber returns a random invoice number unique for the tenant
func (g *RandomNumberGenerator) NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID, at time.Time) (string, error) {
	for attempt := 0; attempt < randomNumberAttempts; attempt++ {
		suffix, err := billing.RandomSuffix(randomSuffixLength)
		if err != nil {
			return "", err
		}
		candidate := billing.FormatRandomNumber(at, suffix)

		exists, err := g.invoices.ExistsByInvoiceNumber(ctx, tenantID, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique invoice number after %d attempts", randomNumberAttempts)
}

// NewNumberGenerator selects a generator for the configured scheme
func NewNumberGenerator(scheme billing.NumberingScheme, db *gorm.DB, invoices billing.InvoiceRepository) (billing.NumberGenerator, error) {
	switch scheme {
	case billing.NumberingSequential:
		return NewSequentialNumberGenerator(db), nil
	case billing.NumberingRandom:
		return NewRandomNumberGenerator(invoices), nil
	default:
		return nil, fmt.Errorf("unsupported numbering scheme %q", scheme)
	}
}

// Compile-time checks that both generators satisfy the domain port
var (
	_ billing.NumberGenerator = (*SequentialNumberGenerator)(nil)
	_ billing.NumberGenerator = (*RandomNumberGenerator)(nil)
)
