package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is a value object within the Invoice aggregate, stored as JSONB.
// Line items are append-only while the invoice is a draft and frozen once
// the invoice is issued.
type LineItem struct {
	ID              uuid.UUID       `json:"id"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// NewLineItem validates the raw inputs and computes the line total.
// Tax has no upper clamp: some jurisdictions compound multiple taxes
// above 100 percent.
func NewLineItem(description string, quantity, unitPrice, discountPercent, taxPercent decimal.Decimal) (LineItem, error) {
	if quantity.IsNegative() {
		return LineItem{}, shared.NewDomainError("INVALID_LINE_ITEM", "Quantity cannot be negative")
	}
	if unitPrice.IsNegative() {
		return LineItem{}, shared.NewDomainError("INVALID_LINE_ITEM", "Unit price cannot be negative")
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(oneHundred) {
		return LineItem{}, shared.NewDomainError("INVALID_LINE_ITEM", "Discount percent must be between 0 and 100")
	}
	if taxPercent.IsNegative() {
		return LineItem{}, shared.NewDomainError("INVALID_LINE_ITEM", "Tax percent cannot be negative")
	}

	return LineItem{
		ID:              uuid.New(),
		Description:     description,
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		DiscountPercent: discountPercent,
		TaxPercent:      taxPercent,
		TotalPrice:      LineItemTotal(quantity, unitPrice, discountPercent, taxPercent),
	}, nil
}

// LineItems is a slice of LineItem that implements GORM Scanner/Valuer for JSONB storage
type LineItems []LineItem

// Value implements driver.Valuer for GORM to store as JSONB
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for GORM to read from JSONB
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}

	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}
