package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// JobOverdueSweep is the daily job that flips past-due invoices to OVERDUE
	JobOverdueSweep = "overdue-sweep"
	// JobDunningRun is the daily job that issues payment reminders
	JobDunningRun = "dunning-run"
)

// TenantProvider lists tenants that have open invoices to process
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// OverdueSweeper marks past-due invoices overdue for one tenant
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (int, error)
}

// DunningRunner creates reminders for overdue invoices of one tenant
type DunningRunner interface {
	ProcessOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (int, error)
}

// NewOverdueSweepJob builds the daily overdue sweep across all active tenants.
// A failing tenant is logged and skipped so one bad tenant never starves the
// rest of the sweep.
func NewOverdueSweepJob(hour, minute int, tenants TenantProvider, sweeper OverdueSweeper, logger *zap.Logger) Job {
	return Job{
		Name:   JobOverdueSweep,
		Hour:   hour,
		Minute: minute,
		Run: func(ctx context.Context, asOf time.Time) error {
			tenantIDs, err := tenants.GetActiveTenantIDs(ctx)
			if err != nil {
				return err
			}
			for _, tenantID := range tenantIDs {
				marked, err := sweeper.SweepOverdue(ctx, tenantID, asOf)
				if err != nil {
					logger.Error("Overdue sweep failed for tenant",
						zap.String("tenant_id", tenantID.String()),
						zap.Error(err),
					)
					continue
				}
				if marked > 0 {
					logger.Info("Marked invoices overdue",
						zap.String("tenant_id", tenantID.String()),
						zap.Int("count", marked),
					)
				}
			}
			return nil
		},
	}
}

// NewDunningRunJob builds the daily dunning run across all active tenants
func NewDunningRunJob(hour, minute int, tenants TenantProvider, runner DunningRunner, logger *zap.Logger) Job {
	return Job{
		Name:   JobDunningRun,
		Hour:   hour,
		Minute: minute,
		Run: func(ctx context.Context, asOf time.Time) error {
			tenantIDs, err := tenants.GetActiveTenantIDs(ctx)
			if err != nil {
				return err
			}
			for _, tenantID := range tenantIDs {
				created, err := runner.ProcessOverdue(ctx, tenantID, asOf)
				if err != nil {
					logger.Error("Dunning run failed for tenant",
						zap.String("tenant_id", tenantID.String()),
						zap.Error(err),
					)
					continue
				}
				if created > 0 {
					logger.Info("Created payment reminders",
						zap.String("tenant_id", tenantID.String()),
						zap.Int("count", created),
					)
				}
			}
			return nil
		},
	}
}
