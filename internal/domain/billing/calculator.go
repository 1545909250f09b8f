package billing

import (
	"github.com/shopspring/decimal"
)

// Monetary amounts are carried as unrounded decimals through every
// intermediate step and rounded half-up to 2 places only at the end,
// so per-line rounding error never compounds into the aggregates.

var oneHundred = decimal.NewFromInt(100)

// LineItemTotal computes the gross total of a single line:
// quantity * unitPrice * (1 - discount/100) * (1 + tax/100),
// rounded half-up to 2 decimal places at the final step only.
func LineItemTotal(quantity, unitPrice, discountPercent, taxPercent decimal.Decimal) decimal.Decimal {
	net := lineNet(quantity, unitPrice, discountPercent)
	factor := oneHundred.Add(taxPercent).Div(oneHundred)
	return net.Mul(factor).Round(2)
}

// SubtotalOf computes the discounted net sum of all lines before tax,
// rounded to 2 places.
func SubtotalOf(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(lineNet(item.Quantity, item.UnitPrice, item.DiscountPercent))
	}
	return sum.Round(2)
}

// TaxTotalOf computes the total tax across all lines. The tax is derived
// from the unrounded discounted net of each line, not by subtracting the
// subtotal from the rounded line totals, so tax reporting stays exact even
// when line-total rounding differs.
func TaxTotalOf(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		net := lineNet(item.Quantity, item.UnitPrice, item.DiscountPercent)
		sum = sum.Add(net.Mul(item.TaxPercent).Div(oneHundred))
	}
	return sum.Round(2)
}

// DiscountTotalOf computes the total discount granted across all lines,
// rounded to 2 places. The discount is already deducted from the subtotal;
// this figure is reported separately for statements.
func DiscountTotalOf(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		gross := item.Quantity.Mul(item.UnitPrice)
		sum = sum.Add(gross.Mul(item.DiscountPercent).Div(oneHundred))
	}
	return sum.Round(2)
}

// GrandTotalOf computes the amount owed: discounted net plus tax,
// accumulated unrounded and rounded to 2 places at the end.
func GrandTotalOf(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		net := lineNet(item.Quantity, item.UnitPrice, item.DiscountPercent)
		factor := oneHundred.Add(item.TaxPercent).Div(oneHundred)
		sum = sum.Add(net.Mul(factor))
	}
	return sum.Round(2)
}

// lineNet returns the unrounded discounted net of a line:
// quantity * unitPrice * (1 - discount/100).
func lineNet(quantity, unitPrice, discountPercent decimal.Decimal) decimal.Decimal {
	gross := quantity.Mul(unitPrice)
	return gross.Mul(oneHundred.Sub(discountPercent)).Div(oneHundred)
}
