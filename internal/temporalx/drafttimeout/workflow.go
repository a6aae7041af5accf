package drafttimeout

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow sleeps until the draft's commit deadline and then runs the
// finalize activity exactly once. Re-scheduling on a new inbound message
// terminates the running execution and starts a fresh one, so the sleep
// always reflects the latest deadline.
func Workflow(ctx workflow.Context, in WorkflowInput) (FinalizeResult, error) {
	logger := workflow.GetLogger(ctx)

	delay := in.FireAt.Sub(workflow.Now(ctx))
	if delay > 0 {
		if err := workflow.Sleep(ctx, delay); err != nil {
			return FinalizeResult{}, err
		}
	}

	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    8,
		},
	})

	var result FinalizeResult
	if err := workflow.ExecuteActivity(actCtx, ActivityFinalize, FinalizeInput{DraftID: in.DraftID}).Get(ctx, &result); err != nil {
		logger.Error("draft finalize activity failed", "draft_id", in.DraftID.String(), "error", err)
		return FinalizeResult{}, err
	}

	logger.Info("draft timeout resolved", "draft_id", in.DraftID.String(), "outcome", result.Outcome)
	return result, nil
}
