package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// SweepScheduleID is the Temporal schedule ID of the daily balance sweep.
	SweepScheduleID = "subpay-balance-sweep"

	// DefaultSweepSchedule runs the sweep daily at 09:00 UTC.
	DefaultSweepSchedule = "0 9 * * *"
)

// Scheduler manages the Temporal schedule that triggers SweepBalancesWorkflow.
type Scheduler interface {
	// CreateSweepSchedule creates the sweep schedule with a cron expression.
	CreateSweepSchedule(ctx context.Context, cron string) error

	// UpsertSweepSchedule creates the schedule or replaces its cron expression.
	UpsertSweepSchedule(ctx context.Context, cron string) error

	// DeleteSweepSchedule deletes the sweep schedule.
	DeleteSweepSchedule(ctx context.Context) error

	// TriggerSweep starts one sweep now and returns its workflow ID.
	TriggerSweep(ctx context.Context, triggeredBy string) (string, error)
}

// EnsureSweepSchedule validates the cron expression and upserts the schedule.
func EnsureSweepSchedule(ctx context.Context, s Scheduler, cron string, logger *slog.Logger) error {
	cron = strings.TrimSpace(cron)
	if cron == "" {
		cron = DefaultSweepSchedule
	}
	if fields := strings.Fields(cron); len(fields) != 5 && !strings.HasPrefix(cron, "@") {
		return fmt.Errorf("invalid cron expression %q: want 5 fields, got %d", cron, len(fields))
	}

	if err := s.UpsertSweepSchedule(ctx, cron); err != nil {
		return err
	}
	logger.InfoContext(ctx, "balance sweep schedule ensured",
		"schedule_id", SweepScheduleID,
		"cron", cron,
	)
	return nil
}
