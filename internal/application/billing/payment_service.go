package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// applyPaymentMaxRetries bounds the reload-and-reapply loop when the
// invoice row was touched by a concurrent writer.
const applyPaymentMaxRetries = 3

// PaymentService provides application-level payment operations
type PaymentService struct {
	paymentRepo    billing.PaymentRepository
	invoiceRepo    billing.InvoiceRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	paymentRepo billing.PaymentRepository,
	invoiceRepo billing.InvoiceRepository,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		invoiceRepo: invoiceRepo,
		logger:      logger.Named("payment-service"),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// RecordPaymentRequest represents a request to record a settlement attempt.
// Status is optional; an omitted status records the payment as SUCCEEDED.
type RecordPaymentRequest struct {
	InvoiceID     uuid.UUID       `json:"invoice_id" binding:"required"`
	Provider      string          `json:"provider" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Status        string          `json:"status" binding:"omitempty,oneof=SUCCEEDED FAILED"`
	TransactionID string          `json:"transaction_id"`
	Remark        string          `json:"remark"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Provider      string          `json:"provider"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Remark        string          `json:"remark,omitempty"`
	ProcessedAt   time.Time       `json:"processed_at"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
	RefundReason  string          `json:"refund_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// PaymentListFilter defines filtering options for payment list queries
type PaymentListFilter struct {
	Search    string     `form:"search"`
	InvoiceID *uuid.UUID `form:"invoice_id"`
	Provider  string     `form:"provider"`
	Status    string     `form:"status"`
	FromDate  *time.Time `form:"from_date"`
	ToDate    *time.Time `form:"to_date"`
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
}

// RecordPayment records a settlement attempt against an invoice. A SUCCEEDED
// payment is applied to the invoice ledger; a FAILED one is persisted for
// audit and leaves the ledger untouched. Concurrent ledger updates are
// resolved by reloading the invoice and reapplying the amount.
func (s *PaymentService) RecordPayment(ctx context.Context, tenantID uuid.UUID, req RecordPaymentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, req.InvoiceID.String(),
		telemetry.SpanAttrProvider, req.Provider,
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	invoice, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, req.InvoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	status := billing.PaymentStatus(req.Status)
	if req.Status == "" {
		status = billing.PaymentStatusSucceeded
	}
	payment, err := billing.NewPayment(
		tenantID,
		invoice.ID,
		invoice.InvoiceNumber,
		billing.PaymentProvider(req.Provider),
		req.Amount,
		invoice.Currency,
		status,
		req.TransactionID,
		req.Remark,
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if payment.IsSucceeded() {
		invoice, err = s.settle(ctx, tenantID, payment, invoice)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	} else if err := s.paymentRepo.Save(ctx, payment); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	s.publishEvents(ctx, &invoice.TenantAggregateRoot.BaseAggregateRoot)
	s.publishEvents(ctx, &payment.TenantAggregateRoot.BaseAggregateRoot)

	telemetry.AddEvent(span, "payment_recorded",
		telemetry.SpanAttrPaymentID, payment.ID.String(),
		telemetry.SpanAttrInvoiceStatus, invoice.Status.String(),
	)
	return toPaymentResponse(payment), nil
}

// settle applies the payment amount to the invoice and writes the payment
// row and ledger update in one transaction, retrying on optimistic lock
// conflicts with a fresh copy of the invoice. A failure leaves neither
// write behind.
func (s *PaymentService) settle(ctx context.Context, tenantID uuid.UUID, payment *billing.Payment, invoice *billing.Invoice) (*billing.Invoice, error) {
	for attempt := 0; ; attempt++ {
		if err := invoice.ApplyPayment(payment.Amount); err != nil {
			return nil, err
		}

		err := s.paymentRepo.SaveWithLedger(ctx, payment, invoice)
		if err == nil {
			return invoice, nil
		}

		var domainErr *shared.DomainError
		if !errors.As(err, &domainErr) || domainErr.Code != "OPTIMISTIC_LOCK_ERROR" || attempt+1 >= applyPaymentMaxRetries {
			return nil, err
		}

		s.logger.Info("retrying payment application after concurrent update",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Int("attempt", attempt+1),
		)

		invoice, err = s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoice.ID)
		if err != nil {
			return nil, err
		}
	}
}

// RefundPayment marks a succeeded payment as refunded. The invoice ledger
// keeps its paid state; the refund stands as a correcting record.
func (s *PaymentService) RefundPayment(ctx context.Context, tenantID, paymentID uuid.UUID, reason string) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "refund")
	defer span.End()

	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	payment, err := s.paymentRepo.FindByIDForTenant(ctx, tenantID, paymentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := payment.Refund(reason); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.paymentRepo.SaveWithLock(ctx, payment); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, &payment.TenantAggregateRoot.BaseAggregateRoot)

	return toPaymentResponse(payment), nil
}

// GetPayment gets a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.paymentRepo.FindByIDForTenant(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(payment), nil
}

// ListPaymentsByInvoice lists all payments recorded against an invoice
func (s *PaymentService) ListPaymentsByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]PaymentResponse, error) {
	payments, err := s.paymentRepo.FindByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}

	responses := make([]PaymentResponse, len(payments))
	for i := range payments {
		responses[i] = *toPaymentResponse(&payments[i])
	}
	return responses, nil
}

// ListPayments lists payments with filtering
func (s *PaymentService) ListPayments(ctx context.Context, tenantID uuid.UUID, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	domainFilter := billing.PaymentFilter{
		InvoiceID: filter.InvoiceID,
		FromDate:  filter.FromDate,
		ToDate:    filter.ToDate,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.Provider != "" {
		provider := billing.PaymentProvider(filter.Provider)
		domainFilter.Provider = &provider
	}
	if filter.Status != "" {
		status := billing.PaymentStatus(filter.Status)
		domainFilter.Status = &status
	}

	payments, err := s.paymentRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.paymentRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]PaymentResponse, len(payments))
	for i := range payments {
		responses[i] = *toPaymentResponse(&payments[i])
	}
	return responses, total, nil
}

func (s *PaymentService) publishEvents(ctx context.Context, agg *shared.BaseAggregateRoot) {
	publishAggregateEvents(ctx, s.eventPublisher, agg, s.logger)
}

// toPaymentResponse converts a domain payment to an API response
func toPaymentResponse(p *billing.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:            p.ID,
		TenantID:      p.TenantID,
		InvoiceID:     p.InvoiceID,
		InvoiceNumber: p.InvoiceNumber,
		Provider:      p.Provider.String(),
		Amount:        p.Amount,
		Currency:      p.Currency.String(),
		Status:        p.Status.String(),
		TransactionID: p.TransactionID,
		Remark:        p.Remark,
		ProcessedAt:   p.ProcessedAt,
		RefundedAt:    p.RefundedAt,
		RefundReason:  p.RefundReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Version:       p.Version,
	}
}
