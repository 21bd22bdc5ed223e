package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

func (c *Client) sweepAction() *client.ScheduleWorkflowAction {
	return &client.ScheduleWorkflowAction{
		ID:        SweepScheduleID + "-run",
		Workflow:  SweepBalancesWorkflowName,
		TaskQueue: c.taskQueue,
		Args:      []interface{}{SweepBalancesInput{TriggeredBy: "schedule"}},
	}
}

// CreateSweepSchedule creates the Temporal schedule for the daily balance sweep.
func (c *Client) CreateSweepSchedule(ctx context.Context, cron string) error {
	c.logger.Debug("creating sweep schedule",
		"schedule_id", SweepScheduleID,
		"cron", cron,
	)

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: SweepScheduleID,
		Spec: client.ScheduleSpec{
			CronExpressions: []string{cron},
		},
		Action: c.sweepAction(),
		Memo: map[string]interface{}{
			"created_by": "subpay",
		},
	})
	if err != nil {
		c.logger.Error("failed to create schedule",
			"schedule_id", SweepScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", SweepScheduleID, err)
	}

	c.logger.Info("sweep schedule created",
		"schedule_id", SweepScheduleID,
		"cron", cron,
	)
	return nil
}

// UpsertSweepSchedule creates the sweep schedule or updates its cron expression.
func (c *Client) UpsertSweepSchedule(ctx context.Context, cron string) error {
	handle := c.client.ScheduleClient().GetHandle(ctx, SweepScheduleID)
	if _, err := handle.Describe(ctx); err != nil {
		// Schedule doesn't exist or error getting it - create new one
		c.logger.Debug("schedule not found, creating new one",
			"schedule_id", SweepScheduleID,
			"error", err,
		)
		return c.CreateSweepSchedule(ctx, cron)
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			// Replace the whole spec; described specs come back as calendars, not cron strings.
			input.Description.Schedule.Spec = &client.ScheduleSpec{
				CronExpressions: []string{cron},
			}
			input.Description.Schedule.Action = c.sweepAction()
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.Error("failed to update schedule",
			"schedule_id", SweepScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", SweepScheduleID, err)
	}

	c.logger.Info("sweep schedule updated",
		"schedule_id", SweepScheduleID,
		"cron", cron,
	)
	return nil
}

// DeleteSweepSchedule deletes the Temporal schedule for the balance sweep.
func (c *Client) DeleteSweepSchedule(ctx context.Context) error {
	handle := c.client.ScheduleClient().GetHandle(ctx, SweepScheduleID)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule",
			"schedule_id", SweepScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", SweepScheduleID, err)
	}

	c.logger.Info("sweep schedule deleted", "schedule_id", SweepScheduleID)
	return nil
}

// TriggerSweep starts SweepBalancesWorkflow immediately, outside the schedule.
func (c *Client) TriggerSweep(ctx context.Context, triggeredBy string) (string, error) {
	id := "sweep-balances-" + uuid.New().String()

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
	}, SweepBalancesWorkflowName, SweepBalancesInput{TriggeredBy: triggeredBy})
	if err != nil {
		return "", fmt.Errorf("failed to start sweep workflow: %w", err)
	}

	c.logger.Info("sweep workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"triggered_by", triggeredBy,
	)
	return run.GetID(), nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
