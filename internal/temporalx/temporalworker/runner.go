// Package temporalworker runs the Temporal worker that hosts the draft
// timeout workflow and its finalize activity.
package temporalworker

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/mercadomm/orders-backend/internal/pkg/logger"
	"github.com/mercadomm/orders-backend/internal/temporalx"
	"github.com/mercadomm/orders-backend/internal/temporalx/drafttimeout"
)

type Runner struct {
	log    *logger.Logger
	client temporalsdkclient.Client
	worker worker.Worker
}

func NewRunner(baseLog *logger.Logger, c temporalsdkclient.Client, finalizer drafttimeout.DraftFinalizer) (*Runner, error) {
	if c == nil {
		return nil, fmt.Errorf("temporal client required")
	}
	if finalizer == nil {
		return nil, fmt.Errorf("draft finalizer required")
	}
	log := baseLog.With("service", "TemporalWorker")

	cfg := temporalx.LoadConfig()
	concurrency := workerConcurrency()

	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	w.RegisterWorkflowWithOptions(drafttimeout.Workflow, workflow.RegisterOptions{
		Name: drafttimeout.WorkflowName,
	})

	acts := drafttimeout.NewActivities(baseLog, finalizer)
	w.RegisterActivityWithOptions(acts.Finalize, activity.RegisterOptions{
		Name: drafttimeout.ActivityFinalize,
	})

	log.Info("Temporal worker configured", "task_queue", cfg.TaskQueue, "concurrency", concurrency)
	return &Runner{log: log, client: c, worker: w}, nil
}

// Run blocks until ctx is canceled or the worker fails.
func (r *Runner) Run(ctx context.Context) error {
	stopCh := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(stopCh)
	}()
	r.log.Info("Temporal worker starting")
	if err := r.worker.Run(stopCh); err != nil {
		return fmt.Errorf("temporal worker: %w", err)
	}
	r.log.Info("Temporal worker stopped")
	return nil
}

func workerConcurrency() int {
	v := strings.TrimSpace(os.Getenv("WORKER_CONCURRENCY"))
	if v == "" {
		return 10
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 10
	}
	return n
}
