package temporal

import (
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	// Temporal connection settings
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string

	// Dependencies
	Sweeper Sweeper
	Logger  *slog.Logger
}

// Worker wraps a Temporal worker and provides lifecycle management.
type Worker struct {
	client client.Client
	worker worker.Worker
	logger *slog.Logger
}

// NewWorker creates and configures a new Temporal worker.
// The worker will process workflows and activities on the configured task queue.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Sweeper == nil {
		return nil, fmt.Errorf("sweeper is required")
	}

	logger := config.Logger.With("component", "temporal_worker")

	logger.Info("creating temporal worker",
		"host", config.TemporalHost,
		"namespace", config.TemporalNamespace,
		"task_queue", config.TaskQueue,
	)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  config.TemporalHost,
		Namespace: config.TemporalNamespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	// One sweep at a time per worker.
	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     1,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	register(w, NewActivities(config.Sweeper, logger))
	logger.Info("registered workflow and activities",
		"workflow", SweepBalancesWorkflowName,
		"activities", []string{"SweepBalances"},
	)

	return &Worker{
		client: c,
		worker: w,
		logger: logger,
	}, nil
}

// registrar is the registration half of worker.Worker, shared with the test environment.
type registrar interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivity(a interface{})
}

func register(r registrar, activities *Activities) {
	r.RegisterWorkflowWithOptions(SweepBalancesWorkflow, workflow.RegisterOptions{Name: SweepBalancesWorkflowName})
	r.RegisterActivity(activities.SweepBalances)
}

// Start begins processing workflows and activities.
// This method blocks until an interrupt signal arrives or an error occurs.
func (w *Worker) Start() error {
	w.logger.Info("starting temporal worker")
	err := w.worker.Run(worker.InterruptCh())
	if err != nil {
		w.logger.Error("worker stopped with error", "error", err)
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	w.logger.Info("worker stopped gracefully")
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping temporal worker")
	w.worker.Stop()
	w.client.Close()
	w.logger.Info("temporal worker stopped")
}
