package valueobject

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 currency code
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
	CHF Currency = "CHF"
)

// DefaultCurrency is used when a request does not name one
const DefaultCurrency = EUR

// IsValid reports whether the code is a plausible ISO 4217 code:
// exactly three uppercase ASCII letters. Codes outside the known set
// are accepted; the ledger does not restrict tenants to a currency list.
func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (c Currency) String() string {
	return string(c)
}

// Money pairs an amount with its currency. It is immutable; arithmetic
// returns new values and refuses to mix currencies.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a Money value, rejecting malformed currency codes
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("invalid currency code: %q", currency)
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustNewMoney panics on an invalid currency. For values already
// validated by the aggregate, never for external input.
func MustNewMoney(amount decimal.Decimal, currency Currency) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the currency code
func (m Money) Currency() Currency { return m.currency }

// IsZero reports whether the amount is zero
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsNegative reports whether the amount is below zero
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// Add sums two amounts of the same currency
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add %s to %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract deducts an amount of the same currency
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract %s from %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Equals reports amount and currency equality
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}

// MarshalJSON renders the amount as a string to keep decimal precision
// out of float territory
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.String(),
		Currency: m.currency,
	})
}
