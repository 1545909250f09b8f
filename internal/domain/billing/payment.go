package billing

import (
	"fmt"
	"time"

	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentProvider identifies the channel a payment arrived through
type PaymentProvider string

const (
	PaymentProviderStripe       PaymentProvider = "STRIPE"
	PaymentProviderPayPal       PaymentProvider = "PAYPAL"
	PaymentProviderBankTransfer PaymentProvider = "BANK_TRANSFER"
	PaymentProviderManual       PaymentProvider = "MANUAL"
)

// IsValid checks if the provider is a known payment channel
func (p PaymentProvider) IsValid() bool {
	switch p {
	case PaymentProviderStripe, PaymentProviderPayPal, PaymentProviderBankTransfer, PaymentProviderManual:
		return true
	}
	return false
}

// String returns the string representation of PaymentProvider
func (p PaymentProvider) String() string {
	return string(p)
}

// PaymentStatus represents the settlement outcome of a payment
type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED" // Settled and applied to the invoice ledger
	PaymentStatusFailed    PaymentStatus = "FAILED"    // Recorded for audit, never touches the ledger
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"  // Returned to the customer after settlement
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// Payment is an immutable record of a settlement attempt against an
// invoice. Failed attempts are kept for audit but are never applied to
// the invoice ledger. The only mutation a payment supports is a refund.
type Payment struct {
	shared.TenantAggregateRoot
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	Provider      PaymentProvider      `json:"provider"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      valueobject.Currency `json:"currency"`
	Status        PaymentStatus        `json:"status"`
	TransactionID string               `json:"transaction_id"` // Provider-side reference, opaque
	Remark        string               `json:"remark"`
	ProcessedAt   time.Time            `json:"processed_at"`
	RefundedAt    *time.Time           `json:"refunded_at"`
	RefundReason  string               `json:"refund_reason"`
}

// NewPayment records a settlement attempt. Only SUCCEEDED and FAILED are
// accepted at creation; REFUNDED is reachable only through Refund.
func NewPayment(
	tenantID uuid.UUID,
	invoiceID uuid.UUID,
	invoiceNumber string,
	provider PaymentProvider,
	amount decimal.Decimal,
	currency valueobject.Currency,
	status PaymentStatus,
	transactionID string,
	remark string,
) (*Payment, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if !provider.IsValid() {
		return nil, shared.NewDomainError("INVALID_PROVIDER", fmt.Sprintf("Unknown payment provider %q", provider))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if !currency.IsValid() {
		return nil, shared.NewDomainError("INVALID_CURRENCY", fmt.Sprintf("Currency %q is not a valid ISO 4217 code", currency))
	}
	if status != PaymentStatusSucceeded && status != PaymentStatusFailed {
		return nil, shared.NewDomainError("INVALID_STATUS", "Payment must be recorded as SUCCEEDED or FAILED")
	}

	return &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceID:           invoiceID,
		InvoiceNumber:       invoiceNumber,
		Provider:            provider,
		Amount:              amount,
		Currency:            currency,
		Status:              status,
		TransactionID:       transactionID,
		Remark:              remark,
		ProcessedAt:         time.Now(),
	}, nil
}

// Refund marks a succeeded payment as returned to the customer. The
// invoice ledger is not rewound; the refund exists as a correcting
// record next to the original settlement.
func (p *Payment) Refund(reason string) error {
	if p.Status != PaymentStatusSucceeded {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Only succeeded payments can be refunded, current status is %s", p.Status))
	}

	now := time.Now()
	p.Status = PaymentStatusRefunded
	p.RefundedAt = &now
	p.RefundReason = reason
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentRefundedEvent(p))

	return nil
}

// IsSucceeded returns true if the payment settled and was applied
func (p *Payment) IsSucceeded() bool {
	return p.Status == PaymentStatusSucceeded
}

// IsFailed returns true if the settlement attempt failed
func (p *Payment) IsFailed() bool {
	return p.Status == PaymentStatusFailed
}

// IsRefunded returns true if the payment was returned to the customer
func (p *Payment) IsRefunded() bool {
	return p.Status == PaymentStatusRefunded
}

// GetAmountMoney returns the payment amount as Money
func (p *Payment) GetAmountMoney() valueobject.Money {
	return valueobject.MustNewMoney(p.Amount, p.Currency)
}
