package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/mercadomm/orders-backend/internal/pkg/logger"
	"github.com/mercadomm/orders-backend/internal/temporalx"
	"github.com/mercadomm/orders-backend/internal/temporalx/drafttimeout"
)

// DraftScheduler arms the delayed finalization for a draft. Every call
// replaces any previously scheduled timeout for the same draft, so the
// workflow always sleeps toward the latest deadline.
type DraftScheduler interface {
	ScheduleTimeout(ctx context.Context, draftID uuid.UUID, fireAt time.Time) error
}

type temporalDraftScheduler struct {
	log       *logger.Logger
	client    temporalsdkclient.Client
	taskQueue string
}

func NewTemporalDraftScheduler(baseLog *logger.Logger, c temporalsdkclient.Client) (DraftScheduler, error) {
	if c == nil {
		return nil, fmt.Errorf("temporal client required")
	}
	cfg := temporalx.LoadConfig()
	return &temporalDraftScheduler{
		log:       baseLog.With("service", "DraftScheduler"),
		client:    c,
		taskQueue: cfg.TaskQueue,
	}, nil
}

func draftTimeoutWorkflowID(draftID uuid.UUID) string {
	return "order-draft-timeout-" + draftID.String()
}

func (s *temporalDraftScheduler) ScheduleTimeout(ctx context.Context, draftID uuid.UUID, fireAt time.Time) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("draft scheduler not configured")
	}
	if draftID == uuid.Nil {
		return fmt.Errorf("missing draft_id")
	}

	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    draftTimeoutWorkflowID(draftID),
		TaskQueue:             s.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_TERMINATE_IF_RUNNING,
	}
	_, err := s.client.ExecuteWorkflow(ctx, opts, drafttimeout.WorkflowName, drafttimeout.WorkflowInput{
		DraftID: draftID,
		FireAt:  fireAt,
	})
	if err != nil {
		return fmt.Errorf("schedule draft timeout: %w", err)
	}
	s.log.Debug("draft timeout scheduled", "draft_id", draftID.String(), "fire_at", fireAt)
	return nil
}

type noopDraftScheduler struct {
	log *logger.Logger
}

// NewNoopDraftScheduler is used when Temporal is not configured. Due drafts
// are then picked up by the in-process sweeper instead.
func NewNoopDraftScheduler(baseLog *logger.Logger) DraftScheduler {
	return &noopDraftScheduler{log: baseLog.With("service", "DraftScheduler")}
}

func (s *noopDraftScheduler) ScheduleTimeout(ctx context.Context, draftID uuid.UUID, fireAt time.Time) error {
	s.log.Debug("draft timeout left to sweeper", "draft_id", draftID.String(), "fire_at", fireAt)
	return nil
}
