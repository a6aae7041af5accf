package drafttimeout

import (
	"context"

	"github.com/google/uuid"

	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

// DraftFinalizer is implemented by the draft engine. The activity layer
// only knows how to hand a draft ID over and report the outcome.
type DraftFinalizer interface {
	FinalizeIfDue(ctx context.Context, draftID uuid.UUID) (string, error)
}

type Activities struct {
	Log    *logger.Logger
	Engine DraftFinalizer
}

func NewActivities(baseLog *logger.Logger, engine DraftFinalizer) *Activities {
	return &Activities{
		Log:    baseLog.With("activity", ActivityFinalize),
		Engine: engine,
	}
}

func (a *Activities) Finalize(ctx context.Context, in FinalizeInput) (FinalizeResult, error) {
	outcome, err := a.Engine.FinalizeIfDue(ctx, in.DraftID)
	if err != nil {
		a.Log.Error("draft finalize failed", "draft_id", in.DraftID.String(), "error", err)
		return FinalizeResult{}, err
	}
	a.Log.Info("draft finalize done", "draft_id", in.DraftID.String(), "outcome", outcome)
	return FinalizeResult{Outcome: outcome}, nil
}
