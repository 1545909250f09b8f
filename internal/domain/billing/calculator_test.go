package billing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLineItem(t *testing.T, qty, price, discount, tax string) LineItem {
	t.Helper()
	item, err := NewLineItem(
		"Test item",
		decimal.RequireFromString(qty),
		decimal.RequireFromString(price),
		decimal.RequireFromString(discount),
		decimal.RequireFromString(tax),
	)
	require.NoError(t, err)
	return item
}

// ============================================
// LineItemTotal Tests
// ============================================

func TestLineItemTotal(t *testing.T) {
	tests := []struct {
		name     string
		qty      string
		price    string
		discount string
		tax      string
		expected string
	}{
		{"discount and tax", "2", "100", "10", "20", "216"},
		{"no discount no tax", "3", "19.99", "0", "0", "59.97"},
		{"tax only", "1", "100", "0", "19", "119"},
		{"discount only", "4", "25", "50", "0", "50"},
		{"full discount", "2", "100", "100", "20", "0"},
		{"zero quantity", "0", "100", "10", "20", "0"},
		{"zero price", "5", "0", "0", "20", "0"},
		{"fractional quantity", "1.5", "10", "0", "0", "15"},
		{"tax above one hundred", "1", "100", "0", "150", "250"},
		{"rounds half up", "1", "1.005", "0", "0", "1.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LineItemTotal(
				decimal.RequireFromString(tt.qty),
				decimal.RequireFromString(tt.price),
				decimal.RequireFromString(tt.discount),
				decimal.RequireFromString(tt.tax),
			)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got),
				"expected %s, got %s", tt.expected, got)
		})
	}
}

// ============================================
// Aggregate Totals Tests
// ============================================

func TestTotals_DiscountAndTax(t *testing.T) {
	items := []LineItem{mustLineItem(t, "2", "100", "10", "20")}

	assert.Equal(t, "180", SubtotalOf(items).String())
	assert.Equal(t, "36", TaxTotalOf(items).String())
	assert.Equal(t, "20", DiscountTotalOf(items).String())
	assert.Equal(t, "216", GrandTotalOf(items).String())
}

func TestTotals_MultipleItems(t *testing.T) {
	items := []LineItem{
		mustLineItem(t, "2", "100", "10", "20"),
		mustLineItem(t, "1", "50", "0", "0"),
	}

	assert.Equal(t, "230", SubtotalOf(items).String())
	assert.Equal(t, "36", TaxTotalOf(items).String())
	assert.Equal(t, "20", DiscountTotalOf(items).String())
	assert.Equal(t, "266", GrandTotalOf(items).String())
}

func TestTotals_EmptyItems(t *testing.T) {
	assert.True(t, SubtotalOf(nil).IsZero())
	assert.True(t, TaxTotalOf(nil).IsZero())
	assert.True(t, DiscountTotalOf(nil).IsZero())
	assert.True(t, GrandTotalOf(nil).IsZero())
}

// Rounding happens at the final step, not per line. Two lines of 1.015
// round to 1.02 each individually, but the subtotal is derived from the
// unrounded sum 2.03.
func TestTotals_RoundingAtFinalStep(t *testing.T) {
	items := []LineItem{
		mustLineItem(t, "1", "1.015", "0", "0"),
		mustLineItem(t, "1", "1.015", "0", "0"),
	}

	assert.Equal(t, "1.02", items[0].TotalPrice.StringFixed(2))
	assert.Equal(t, "1.02", items[1].TotalPrice.StringFixed(2))
	assert.Equal(t, "2.03", SubtotalOf(items).StringFixed(2))
	assert.Equal(t, "2.03", GrandTotalOf(items).StringFixed(2))
}

// The tax total is computed independently from the unrounded nets, so
// grand total always equals subtotal plus tax total.
func TestTotals_TaxComputedIndependently(t *testing.T) {
	items := []LineItem{
		mustLineItem(t, "3", "9.99", "7.5", "19"),
		mustLineItem(t, "1", "0.07", "0", "7"),
		mustLineItem(t, "2", "123.45", "12.34", "21"),
	}

	subtotal := SubtotalOf(items)
	taxTotal := TaxTotalOf(items)
	grand := GrandTotalOf(items)

	assert.True(t, subtotal.Add(taxTotal).Sub(grand).Abs().LessThanOrEqual(decimal.NewFromFloat(0.01)),
		"grand total %s should equal subtotal %s plus tax %s within one rounding cent", grand, subtotal, taxTotal)
}

// ============================================
// LineItem Validation Tests
// ============================================

func TestNewLineItem_Validation(t *testing.T) {
	tests := []struct {
		name     string
		qty      string
		price    string
		discount string
		tax      string
		wantErr  bool
	}{
		{"valid", "1", "10", "0", "19", false},
		{"zero quantity allowed", "0", "10", "0", "0", false},
		{"negative quantity", "-1", "10", "0", "0", true},
		{"negative price", "1", "-10", "0", "0", true},
		{"negative discount", "1", "10", "-5", "0", true},
		{"discount above hundred", "1", "10", "101", "0", true},
		{"discount exactly hundred", "1", "10", "100", "0", false},
		{"negative tax", "1", "10", "0", "-1", true},
		{"tax above hundred allowed", "1", "10", "0", "150", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLineItem(
				"Item",
				decimal.RequireFromString(tt.qty),
				decimal.RequireFromString(tt.price),
				decimal.RequireFromString(tt.discount),
				decimal.RequireFromString(tt.tax),
			)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLineItem_ComputesTotal(t *testing.T) {
	item := mustLineItem(t, "2", "100", "10", "20")

	assert.NotEqual(t, uuid.Nil, item.ID)
	assert.Equal(t, "216", item.TotalPrice.String())
}
