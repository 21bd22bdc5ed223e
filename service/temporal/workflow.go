package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// SweepBalancesWorkflowName is the registered name of SweepBalancesWorkflow.
const SweepBalancesWorkflowName = "SweepBalancesWorkflow"

// SweepActivityTimeout bounds one full sweep.
const SweepActivityTimeout = 30 * time.Minute

var a *Activities // for type-safe activity invocation

// SweepBalancesWorkflow runs one balance sweep. It is triggered daily by a Temporal
// schedule and can be started on demand. A failed sweep is not retried. A sweep
// keeps no progress, so the next scheduled run re-checks every record from scratch.
func SweepBalancesWorkflow(ctx workflow.Context, input SweepBalancesInput) (*SweepBalancesResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SweepBalancesWorkflow started", "triggered_by", input.TriggeredBy)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: SweepActivityTimeout,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var result *SweepBalancesResult
	err := workflow.ExecuteActivity(ctx, a.SweepBalances, input).Get(ctx, &result)
	if err != nil {
		errMsg := fmt.Sprintf("sweep failed: %v", err)
		return &SweepBalancesResult{StartedAt: workflow.Now(ctx), Error: &errMsg},
			fmt.Errorf("failed to sweep balances: %w", err)
	}

	logger.Info("SweepBalancesWorkflow completed",
		"checked", result.Checked,
		"notified", result.Notified,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result, nil
}
