// Package drafttimeout holds the delayed one-shot workflow that finalizes
// an order draft when its commit deadline passes without a closing signal.
package drafttimeout

import (
	"time"

	"github.com/google/uuid"
)

const (
	WorkflowName     = "order_draft_timeout"
	ActivityFinalize = "order_draft_finalize"
)

// WorkflowInput carries everything the workflow needs to wait out a
// draft's deadline. FireAt is the commit deadline at schedule time; the
// engine re-checks the persisted deadline inside the finalize activity,
// so a stale workflow fires harmlessly.
type WorkflowInput struct {
	DraftID uuid.UUID `json:"draft_id"`
	FireAt  time.Time `json:"fire_at"`
}

type FinalizeInput struct {
	DraftID uuid.UUID `json:"draft_id"`
}

type FinalizeResult struct {
	// Outcome is one of: committed, review, canceled, skipped.
	Outcome string `json:"outcome"`
}

const (
	OutcomeCommitted = "committed"
	OutcomeReview    = "review"
	OutcomeCanceled  = "canceled"
	OutcomeSkipped   = "skipped"
)
