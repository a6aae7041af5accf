package draftflow

import (
	"time"

	"github.com/mercadomm/orders-backend/internal/pkg/envutil"
)

// Config carries the aggregation windows and commit policy toggles.
type Config struct {
	// AggregationGap is both the reuse window between messages and the
	// commit deadline extension applied on every contribution.
	AggregationGap time.Duration
	// PostCommitAmendmentWindow bounds how long after a commit a new
	// message may still amend the created order.
	PostCommitAmendmentWindow time.Duration
	// AskReplyWindow bounds how long a clarification question pins its
	// draft for the customer's answer.
	AskReplyWindow time.Duration

	AutoCreateOrderOnTimeout bool
	// CloseEarlyOnSignals commits a draft as soon as it carries items and
	// a closing signal, without waiting for the deadline. Off by default:
	// the timeout window is the only automatic commit trigger.
	CloseEarlyOnSignals bool
}

func DefaultConfig() Config {
	return Config{
		AggregationGap:            3 * time.Minute,
		PostCommitAmendmentWindow: 10 * time.Minute,
		AskReplyWindow:            5 * time.Minute,
		AutoCreateOrderOnTimeout:  true,
	}
}

func ConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		AggregationGap:            envutil.PositiveMillis("ORDER_DRAFT_AGGREGATION_GAP_MS", def.AggregationGap),
		PostCommitAmendmentWindow: envutil.PositiveMillis("ORDER_DRAFT_POST_COMMIT_AMENDMENT_WINDOW_MS", def.PostCommitAmendmentWindow),
		AskReplyWindow:            envutil.PositiveMillis("ORDER_DRAFT_ASK_REPLY_WINDOW_MS", def.AskReplyWindow),
		AutoCreateOrderOnTimeout:  envutil.Bool("ORDER_DRAFT_AUTO_CREATE_ORDER_ON_TIMEOUT", def.AutoCreateOrderOnTimeout),
		CloseEarlyOnSignals:       envutil.Bool("ORDER_DRAFT_CLOSE_EARLY_ON_SIGNALS", def.CloseEarlyOnSignals),
	}
}
