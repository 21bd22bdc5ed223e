package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/subpay/service/monitor"
	"go.temporal.io/sdk/activity"
)

// SweepBalancesInput contains the input parameters for a balance sweep run.
type SweepBalancesInput struct {
	TriggeredBy string `json:"triggered_by"` // "schedule", "cli", ...
}

// SweepBalancesResult contains the result of a balance sweep run.
type SweepBalancesResult struct {
	Checked   int       `json:"checked"`
	Notified  int       `json:"notified"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	StartedAt time.Time `json:"started_at"`
	Error     *string   `json:"error,omitempty"`
}

// Sweeper runs one balance sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (*monitor.SweepSummary, error)
}

// Activities holds the dependencies for Temporal activities.
type Activities struct {
	sweeper Sweeper
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
func NewActivities(sweeper Sweeper, logger *slog.Logger) *Activities {
	return &Activities{
		sweeper: sweeper,
		logger:  logger,
	}
}

// SweepBalances checks every subscription escrow and sends low balance notifications.
// Per-record failures are part of the result, not an activity error.
func (a *Activities) SweepBalances(ctx context.Context, input SweepBalancesInput) (*SweepBalancesResult, error) {
	info := activity.GetInfo(ctx)
	a.logger.InfoContext(ctx, "sweeping escrow balances",
		"triggered_by", input.TriggeredBy,
		"workflow_id", info.WorkflowExecution.ID,
		"attempt", info.Attempt,
	)

	result := &SweepBalancesResult{StartedAt: time.Now().UTC()}

	summary, err := a.sweeper.Sweep(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweep balances: %w", err)
	}

	result.Checked = summary.Checked
	result.Notified = summary.Notified
	result.Failed = summary.Failed
	result.Skipped = summary.Skipped

	return result, nil
}
