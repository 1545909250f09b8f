package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DunningServiceConfig holds the escalation policy for payment reminders.
// Thresholds are days past due; crossing Thresholds[i] produces a level
// i+1 reminder using Templates[i].
type DunningServiceConfig struct {
	Thresholds []int
	Templates  []string
	AutoSend   bool
}

// DunningService provides application-level payment reminder operations
type DunningService struct {
	dunningRepo    billing.DunningRepository
	invoiceRepo    billing.InvoiceRepository
	eventPublisher shared.EventPublisher
	cfg            DunningServiceConfig
	logger         *zap.Logger
}

// NewDunningService creates a new DunningService
func NewDunningService(
	dunningRepo billing.DunningRepository,
	invoiceRepo billing.InvoiceRepository,
	cfg DunningServiceConfig,
	logger *zap.Logger,
) *DunningService {
	return &DunningService{
		dunningRepo: dunningRepo,
		invoiceRepo: invoiceRepo,
		cfg:         cfg,
		logger:      logger.Named("dunning-service"),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *DunningService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// CreateReminderRequest represents a request to create a payment reminder.
// ReminderLevel 0 means "next level": one above the highest active level.
type CreateReminderRequest struct {
	InvoiceID     uuid.UUID `json:"invoice_id" binding:"required"`
	ReminderLevel int       `json:"reminder_level"`
}

// DunningResponse represents a payment reminder in API responses
type DunningResponse struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	InvoiceID      uuid.UUID  `json:"invoice_id"`
	InvoiceNumber  string     `json:"invoice_number"`
	CustomerID     string     `json:"customer_id"`
	ReminderLevel  int        `json:"reminder_level"`
	Status         string     `json:"status"`
	InvoiceDueDate *time.Time `json:"invoice_due_date,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	TemplateUsed   string     `json:"template_used,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Version        int        `json:"version"`
}

// DunningListFilter defines filtering options for reminder list queries
type DunningListFilter struct {
	InvoiceID *uuid.UUID `form:"invoice_id"`
	Status    string     `form:"status"`
	MinLevel  *int       `form:"min_level"`
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
}

// CreateReminder creates a payment reminder for an overdue invoice. The
// reminder level must escalate past every active reminder for the invoice;
// a zero requested level picks the next level automatically.
func (s *DunningService) CreateReminder(ctx context.Context, tenantID uuid.UUID, req CreateReminderRequest) (*DunningResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dunning", "create")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, req.InvoiceID.String(),
	)

	invoice, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, req.InvoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if invoice.Status != billing.InvoiceStatusOverdue {
		err := shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Reminders can only be created for overdue invoices, current status is %s", invoice.Status))
		telemetry.RecordError(span, err)
		return nil, err
	}

	maxLevel, err := s.dunningRepo.MaxActiveLevelByInvoice(ctx, tenantID, invoice.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	level := req.ReminderLevel
	if level == 0 {
		level = maxLevel + 1
	} else if level <= maxLevel {
		err := shared.NewDomainError("INVALID_REMINDER_LEVEL", fmt.Sprintf("Reminder level %d must exceed the highest active level %d", level, maxLevel))
		telemetry.RecordError(span, err)
		return nil, err
	}

	dunning, err := s.createReminder(ctx, tenantID, invoice, level)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrReminderLevel, level)
	return toDunningResponse(dunning), nil
}

// createReminder persists a new reminder at the given level, auto-sending
// it when the escalation policy says so.
func (s *DunningService) createReminder(ctx context.Context, tenantID uuid.UUID, invoice *billing.Invoice, level int) (*billing.Dunning, error) {
	dunning, err := billing.NewDunning(tenantID, invoice.ID, invoice.InvoiceNumber, invoice.CustomerID, level, invoice.DueDate)
	if err != nil {
		return nil, err
	}

	if s.cfg.AutoSend {
		if err := dunning.Send(s.templateForLevel(level)); err != nil {
			return nil, err
		}
	}

	if err := s.dunningRepo.Save(ctx, dunning); err != nil {
		return nil, fmt.Errorf("failed to save reminder: %w", err)
	}

	s.publishEvents(ctx, &dunning.TenantAggregateRoot.BaseAggregateRoot)

	return dunning, nil
}

// SendReminder delivers a pending reminder using the template configured
// for its level.
func (s *DunningService) SendReminder(ctx context.Context, tenantID, dunningID uuid.UUID) (*DunningResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dunning", "send")
	defer span.End()

	dunning, err := s.dunningRepo.FindByIDForTenant(ctx, tenantID, dunningID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := dunning.Send(s.templateForLevel(dunning.ReminderLevel)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.dunningRepo.SaveWithLock(ctx, dunning); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, &dunning.TenantAggregateRoot.BaseAggregateRoot)

	return toDunningResponse(dunning), nil
}

// CancelReminder withdraws a pending reminder, freeing its level
func (s *DunningService) CancelReminder(ctx context.Context, tenantID, dunningID uuid.UUID) (*DunningResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dunning", "cancel")
	defer span.End()

	dunning, err := s.dunningRepo.FindByIDForTenant(ctx, tenantID, dunningID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := dunning.Cancel(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.dunningRepo.SaveWithLock(ctx, dunning); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return toDunningResponse(dunning), nil
}

// GetReminder gets a payment reminder by ID
func (s *DunningService) GetReminder(ctx context.Context, tenantID, dunningID uuid.UUID) (*DunningResponse, error) {
	dunning, err := s.dunningRepo.FindByIDForTenant(ctx, tenantID, dunningID)
	if err != nil {
		return nil, err
	}
	return toDunningResponse(dunning), nil
}

// ListRemindersByInvoice lists all reminders for an invoice, newest first
func (s *DunningService) ListRemindersByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]DunningResponse, error) {
	dunnings, err := s.dunningRepo.FindByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}

	responses := make([]DunningResponse, len(dunnings))
	for i := range dunnings {
		responses[i] = *toDunningResponse(&dunnings[i])
	}
	return responses, nil
}

// ListReminders lists payment reminders with filtering
func (s *DunningService) ListReminders(ctx context.Context, tenantID uuid.UUID, filter DunningListFilter) ([]DunningResponse, int64, error) {
	domainFilter := billing.DunningFilter{
		InvoiceID: filter.InvoiceID,
		MinLevel:  filter.MinLevel,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize

	if filter.Status != "" {
		status := billing.DunningStatus(filter.Status)
		domainFilter.Status = &status
	}

	dunnings, err := s.dunningRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.dunningRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]DunningResponse, len(dunnings))
	for i := range dunnings {
		responses[i] = *toDunningResponse(&dunnings[i])
	}
	return responses, total, nil
}

// ProcessOverdue walks a tenant's overdue invoices and creates escalation
// reminders for those that crossed a threshold on exactly this day. The
// exact-day match keeps the daily run idempotent without tracking which
// thresholds were already handled.
func (s *DunningService) ProcessOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dunning", "processOverdue")
	defer span.End()

	telemetry.SetAttribute(span, telemetry.SpanAttrTenantID, tenantID.String())

	invoices, err := s.invoiceRepo.FindOverdue(ctx, tenantID, billing.InvoiceFilter{})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	created := 0
	for i := range invoices {
		invoice := &invoices[i]

		level := s.levelForDaysOverdue(invoice.DaysOverdue(asOf))
		if level == 0 {
			continue
		}

		maxLevel, err := s.dunningRepo.MaxActiveLevelByInvoice(ctx, tenantID, invoice.ID)
		if err != nil {
			s.logger.Error("failed to read reminder levels",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if maxLevel >= level {
			continue
		}

		if _, err := s.createReminder(ctx, tenantID, invoice, level); err != nil {
			s.logger.Error("failed to create reminder",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Int("reminder_level", level),
				zap.Error(err),
			)
			continue
		}

		s.logger.Info("created payment reminder",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Int("reminder_level", level),
		)
		created++
	}

	return created, nil
}

// levelForDaysOverdue returns the reminder level whose threshold falls on
// exactly this many days past due, or 0 if no threshold matches.
func (s *DunningService) levelForDaysOverdue(days int) int {
	for i, threshold := range s.cfg.Thresholds {
		if days == threshold {
			return i + 1
		}
	}
	return 0
}

// templateForLevel picks the configured message template for a level,
// falling back to the last template for levels past the configured range.
func (s *DunningService) templateForLevel(level int) string {
	if len(s.cfg.Templates) == 0 {
		return fmt.Sprintf("reminder_level_%d", level)
	}
	if level > len(s.cfg.Templates) {
		return s.cfg.Templates[len(s.cfg.Templates)-1]
	}
	return s.cfg.Templates[level-1]
}

func (s *DunningService) publishEvents(ctx context.Context, agg *shared.BaseAggregateRoot) {
	publishAggregateEvents(ctx, s.eventPublisher, agg, s.logger)
}

// toDunningResponse converts a domain reminder to an API response
func toDunningResponse(d *billing.Dunning) *DunningResponse {
	return &DunningResponse{
		ID:             d.ID,
		TenantID:       d.TenantID,
		InvoiceID:      d.InvoiceID,
		InvoiceNumber:  d.InvoiceNumber,
		CustomerID:     d.CustomerID,
		ReminderLevel:  d.ReminderLevel,
		Status:         d.Status.String(),
		InvoiceDueDate: d.InvoiceDueDate,
		SentAt:         d.SentAt,
		TemplateUsed:   d.TemplateUsed,
		CancelledAt:    d.CancelledAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		Version:        d.Version,
	}
}
