package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mercadomm/orders-backend/internal/data/repos"
	types "github.com/mercadomm/orders-backend/internal/domain"
	"github.com/mercadomm/orders-backend/internal/draftflow"
	pkgerrors "github.com/mercadomm/orders-backend/internal/pkg/errors"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
	"github.com/mercadomm/orders-backend/internal/pkg/phone"
	"github.com/mercadomm/orders-backend/internal/temporalx/drafttimeout"
)

// IngestInput is one inbound WhatsApp text message.
type IngestInput struct {
	ProviderMessageID string
	FromPhone         string
	CustomerName      string
	Text              string
	ProviderTimestamp *time.Time
}

type IngestResult struct {
	Duplicate  bool                    `json:"duplicate"`
	Selection  draftflow.SelectionKind `json:"selection"`
	CustomerID uuid.UUID               `json:"customer_id"`
	MessageID  uuid.UUID               `json:"message_id"`
	DraftID    *uuid.UUID              `json:"draft_id,omitempty"`
	OrderID    *uuid.UUID              `json:"order_id,omitempty"`
	Committed  bool                    `json:"committed"`
}

// DraftEngine is the aggregation core: it routes each inbound message onto
// a draft (or a committed order), merges its contribution, and resolves
// drafts whose commit deadline has passed.
type DraftEngine interface {
	IngestMessage(ctx context.Context, in IngestInput) (*IngestResult, error)
	// FinalizeIfDue resolves one due draft. It is safe to call for drafts
	// that were re-scheduled or already closed; those report a skip.
	FinalizeIfDue(ctx context.Context, draftID uuid.UUID) (string, error)
	// SweepDue finalizes every due draft, for deployments without Temporal.
	SweepDue(ctx context.Context, limit int) (int, error)
	RunSweeper(ctx context.Context, interval time.Duration)
	// ForceFinalize commits a draft immediately, deadline or not. The draft
	// must still be open-ish and must carry at least one item.
	ForceFinalize(ctx context.Context, draftID uuid.UUID) (*types.OrderDraft, *types.Order, error)
}

type draftEngine struct {
	db  *gorm.DB
	log *logger.Logger
	cfg draftflow.Config

	customers repos.CustomerRepo
	messages  repos.InboundMessageRepo
	drafts    repos.DraftRepo
	draftMsgs repos.DraftMessageRepo
	ordersR   repos.OrderRepo

	materializer OrderMaterializer
	parser       OrderParser
	scheduler    DraftScheduler
	notifier     Notifier
}

func NewDraftEngine(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg draftflow.Config,
	customers repos.CustomerRepo,
	messages repos.InboundMessageRepo,
	drafts repos.DraftRepo,
	draftMsgs repos.DraftMessageRepo,
	ordersR repos.OrderRepo,
	materializer OrderMaterializer,
	parser OrderParser,
	scheduler DraftScheduler,
	notifier Notifier,
) DraftEngine {
	return &draftEngine{
		db:           db,
		log:          baseLog.With("service", "DraftEngine"),
		cfg:          cfg,
		customers:    customers,
		messages:     messages,
		drafts:       drafts,
		draftMsgs:    draftMsgs,
		ordersR:      ordersR,
		materializer: materializer,
		parser:       parser,
		scheduler:    scheduler,
		notifier:     notifier,
	}
}

func (e *draftEngine) IngestMessage(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if e == nil || e.db == nil {
		return nil, fmt.Errorf("draft engine not configured")
	}
	if strings.TrimSpace(in.ProviderMessageID) == "" {
		return nil, fmt.Errorf("%w: missing provider_message_id", pkgerrors.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: missing text", pkgerrors.ErrInvalidArgument)
	}
	e164 := phone.E164(in.FromPhone)
	if e164 == "" {
		return nil, fmt.Errorf("%w: bad phone %q", pkgerrors.ErrInvalidArgument, in.FromPhone)
	}

	// Classification happens outside the transaction; it is slow and its
	// output is re-validated anyway.
	parsed, err := e.parser.ParseMessage(ctx, in.CustomerName, in.Text)
	if err != nil {
		e.log.Warn("message classification failed; ingesting unclassified",
			"provider_message_id", in.ProviderMessageID, "error", err)
		parsed = draftflow.ParsedOrder{Intent: types.IntentUnclear}
	}
	parsedPayload, _ := json.Marshal(parsed)

	at := time.Now().UTC()
	if in.ProviderTimestamp != nil {
		at = in.ProviderTimestamp.UTC()
	}

	result := &IngestResult{}
	var pending []func()
	var scheduleDraftID uuid.UUID
	var scheduleAt *time.Time

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := e.customers.GetOrCreateByPhone(ctx, tx, e164, strings.TrimSpace(in.CustomerName))
		if err != nil {
			return fmt.Errorf("resolve customer: %w", err)
		}
		// Row lock serializes concurrent ingestion for one conversation.
		if _, err := e.customers.LockByID(ctx, tx, customer.ID); err != nil {
			return err
		}
		result.CustomerID = customer.ID

		msg := &types.InboundMessage{
			CustomerID:        customer.ID,
			ProviderMessageID: strings.TrimSpace(in.ProviderMessageID),
			Direction:         types.MessageDirectionIn,
			MessageType:       "text",
			Text:              in.Text,
			ProviderTimestamp: in.ProviderTimestamp,
			ParsedPayload:     datatypes.JSON(parsedPayload),
		}
		stored, created, err := e.messages.CreateIfAbsent(ctx, tx, msg)
		if err != nil {
			return fmt.Errorf("store message: %w", err)
		}
		result.MessageID = stored.ID
		if !created {
			result.Duplicate = true
			return nil
		}

		c := draftflow.BuildContribution(draftflow.RawMessage{
			ProviderMessageID: stored.ProviderMessageID,
			Text:              in.Text,
			ProviderTimestamp: in.ProviderTimestamp,
		}, parsed)

		// Any contributed address becomes the customer's remembered
		// default right away, whatever happens to the draft later.
		if c.Delivery.Address != nil {
			if err := e.customers.UpdateDefaultAddress(ctx, tx, customer.ID, *c.Delivery.Address); err != nil {
				return fmt.Errorf("learn default address: %w", err)
			}
		}

		selIn, err := e.loadSelectorInput(ctx, tx, customer.ID, at, c)
		if err != nil {
			return err
		}
		sel := draftflow.SelectDraft(e.cfg, selIn)
		result.Selection = sel.Kind

		switch sel.Kind {
		case draftflow.SelectSkipNoise:
			e.log.Debug("noise message skipped", "customer_id", customer.ID.String(), "message_id", stored.ID.String())
			return nil

		case draftflow.SelectAmendOrder:
			deadline, err := e.openAmendmentDraft(ctx, tx, customer.ID, stored, c, sel, at, result, &pending)
			if err != nil {
				return err
			}
			if deadline != nil && result.DraftID != nil {
				scheduleDraftID = *result.DraftID
				scheduleAt = deadline
			}
			return nil

		case draftflow.SelectReuseAwaiting, draftflow.SelectReuseOpen:
			draft, err := e.drafts.GetByID(ctx, tx, sel.Draft.ID)
			if err != nil {
				return err
			}
			committed, err := e.mergeIntoDraft(ctx, tx, draft, stored, c, at, result, &pending)
			if err != nil {
				return err
			}
			if !committed && draft.Status == types.DraftStatusOpen && draft.CommitDeadlineAt != nil {
				scheduleDraftID = draft.ID
				scheduleAt = draft.CommitDeadlineAt
			}
			return nil

		default: // fresh draft
			draft := &types.OrderDraft{
				CustomerID:    customer.ID,
				Status:        types.DraftStatusOpen,
				OpenedAt:      at,
				LastMessageAt: at,
			}
			merged := draftflow.MergeAggregate(nil, c)
			if err := draft.SetAggregate(merged); err != nil {
				return err
			}
			deadline := at.Add(e.cfg.AggregationGap)
			draft.CommitDeadlineAt = &deadline
			if _, err := e.drafts.Create(ctx, tx, draft); err != nil {
				return fmt.Errorf("create draft: %w", err)
			}
			if err := e.linkMessage(ctx, tx, draft, stored, c); err != nil {
				return err
			}
			result.DraftID = &draft.ID

			if draftflow.ShouldCloseEarly(e.cfg, merged) {
				order, amended, err := e.commitDraft(ctx, tx, draft, merged, types.CloseReasonEarlySignal, at)
				if err != nil {
					return err
				}
				result.OrderID = &order.ID
				result.Committed = true
				pending = append(pending, e.commitEvents(draft, order, amended))
				return nil
			}

			scheduleDraftID = draft.ID
			scheduleAt = &deadline
			pending = append(pending, func() { e.notifier.DraftOpened(draft) })
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if scheduleAt != nil && e.scheduler != nil {
		if err := e.scheduler.ScheduleTimeout(ctx, scheduleDraftID, *scheduleAt); err != nil {
			// The sweeper picks the draft up even if scheduling fails.
			e.log.Warn("draft timeout scheduling failed",
				"draft_id", scheduleDraftID.String(), "error", err)
		}
	}
	for _, fn := range pending {
		fn()
	}
	return result, nil
}

// loadSelectorInput snapshots the customer's candidate drafts for routing.
func (e *draftEngine) loadSelectorInput(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, at time.Time, c draftflow.Contribution) (draftflow.SelectorInput, error) {
	in := draftflow.SelectorInput{At: at, Contribution: c}

	awaiting, err := e.drafts.FindAwaitingReply(ctx, tx, customerID)
	if err != nil {
		return in, err
	}
	if snap, err := snapshotFromDraft(awaiting); err != nil {
		return in, err
	} else if snap != nil {
		in.AwaitingDraft = snap
	}

	open, err := e.drafts.FindOpenByCustomer(ctx, tx, customerID)
	if err != nil {
		return in, err
	}
	if snap, err := snapshotFromDraft(open); err != nil {
		return in, err
	} else if snap != nil {
		in.OpenDraft = snap
	}

	committed, err := e.drafts.FindLatestCommitted(ctx, tx, customerID)
	if err != nil {
		return in, err
	}
	if snap, err := snapshotFromDraft(committed); err != nil {
		return in, err
	} else if snap != nil {
		in.LatestCommitted = snap
	}
	return in, nil
}

func snapshotFromDraft(draft *types.OrderDraft) (*draftflow.DraftSnapshot, error) {
	if draft == nil {
		return nil, nil
	}
	agg, err := draft.Aggregate()
	if err != nil {
		return nil, fmt.Errorf("decode aggregate for draft %s: %w", draft.ID.String(), err)
	}
	snap := &draftflow.DraftSnapshot{
		ID:          draft.ID,
		Status:      draft.Status,
		OrderID:     draft.OrderID,
		LastMessage: draft.LastMessageAt,
		ClosedAt:    draft.ClosedAt,
		CommittedAt: draft.CommittedAt,
		Control:     agg.Control,
	}
	if draft.Order != nil {
		snap.OrderStatus = draft.Order.Status
	}
	return snap, nil
}

// mergeIntoDraft folds one contribution into an existing draft, reopening a
// review-parked draft when the reply unblocks it, and committing early when
// the close-early toggle fires. Returns whether the draft committed.
func (e *draftEngine) mergeIntoDraft(ctx context.Context, tx *gorm.DB, draft *types.OrderDraft, stored *types.InboundMessage, c draftflow.Contribution, at time.Time, result *IngestResult, pending *[]func()) (bool, error) {
	agg, err := draft.Aggregate()
	if err != nil {
		return false, err
	}
	merged := draftflow.MergeAggregate(&agg, c)
	if err := draft.SetAggregate(merged); err != nil {
		return false, err
	}
	draft.LastMessageAt = at

	// Every absorbed message reopens the draft and restarts its window.
	// Review parking and timeout markers do not survive a reuse.
	draft.Status = types.DraftStatusOpen
	draft.ReviewReason = nil
	draft.CloseReason = nil
	draft.TimedOutAt = nil
	draft.ClosedAt = nil
	deadline := at.Add(e.cfg.AggregationGap)
	draft.CommitDeadlineAt = &deadline

	if err := e.linkMessage(ctx, tx, draft, stored, c); err != nil {
		return false, err
	}
	result.DraftID = &draft.ID

	if draftflow.ShouldCloseEarly(e.cfg, merged) {
		order, amended, err := e.commitDraft(ctx, tx, draft, merged, types.CloseReasonEarlySignal, at)
		if err != nil {
			return false, err
		}
		result.OrderID = &order.ID
		result.Committed = true
		*pending = append(*pending, e.commitEvents(draft, order, amended))
		return true, nil
	}

	if err := e.drafts.Save(ctx, tx, draft); err != nil {
		return false, err
	}
	selection := string(result.Selection)
	*pending = append(*pending, func() { e.notifier.DraftUpdated(draft, selection) })
	return false, nil
}

// openAmendmentDraft starts a follow-up draft pre-linked to the customer's
// freshly committed order. The amendment aggregates like any other draft
// and lands on the order only when this draft's own deadline resolves.
// Returns the commit deadline to schedule, nil when the draft closed early.
func (e *draftEngine) openAmendmentDraft(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, stored *types.InboundMessage, c draftflow.Contribution, sel draftflow.Selection, at time.Time, result *IngestResult, pending *[]func()) (*time.Time, error) {
	draft := &types.OrderDraft{
		CustomerID:    customerID,
		OrderID:       sel.AmendOrderID,
		Status:        types.DraftStatusOpen,
		OpenedAt:      at,
		LastMessageAt: at,
	}
	merged := draftflow.MergeAggregate(nil, c)
	if err := draft.SetAggregate(merged); err != nil {
		return nil, err
	}
	deadline := at.Add(e.cfg.AggregationGap)
	draft.CommitDeadlineAt = &deadline
	if _, err := e.drafts.Create(ctx, tx, draft); err != nil {
		return nil, fmt.Errorf("create amendment draft: %w", err)
	}
	if err := e.linkMessage(ctx, tx, draft, stored, c); err != nil {
		return nil, err
	}
	result.DraftID = &draft.ID
	result.OrderID = sel.AmendOrderID

	if draftflow.ShouldCloseEarly(e.cfg, merged) {
		order, amended, err := e.commitDraft(ctx, tx, draft, merged, types.CloseReasonEarlySignal, at)
		if err != nil {
			return nil, err
		}
		result.OrderID = &order.ID
		result.Committed = true
		*pending = append(*pending, e.commitEvents(draft, order, amended))
		return nil, nil
	}

	*pending = append(*pending, func() { e.notifier.DraftOpened(draft) })
	return &deadline, nil
}

func (e *draftEngine) linkMessage(ctx context.Context, tx *gorm.DB, draft *types.OrderDraft, stored *types.InboundMessage, c draftflow.Contribution) error {
	seq, err := e.draftMsgs.NextSequence(ctx, tx, draft.ID)
	if err != nil {
		return err
	}
	_, err = e.draftMsgs.CreateIfAbsent(ctx, tx, &types.DraftMessage{
		OrderDraftID:       draft.ID,
		InboundMessageID:   stored.ID,
		ProviderMessageID:  stored.ProviderMessageID,
		Sequence:           seq,
		MessageText:        stored.Text,
		ParsedIntent:       c.Intent,
		ParsedConfidence:   c.Confidence,
		ParsedPayload:      stored.ParsedPayload,
		HasItems:           c.Flags.HasItems,
		HasDeliveryAddress: c.Flags.HasDeliveryAddress,
		HasPaymentIntent:   c.Flags.HasPaymentIntent,
		HasClosingSignal:   c.Flags.HasClosingSignal,
	})
	return err
}

// commitDraft materializes the aggregate and moves the draft to COMMITTED.
// A draft pre-linked to a still-amendable order folds into that order;
// every other draft creates a fresh one. Reports whether it amended.
func (e *draftEngine) commitDraft(ctx context.Context, tx *gorm.DB, draft *types.OrderDraft, agg types.Aggregate, closeReason string, now time.Time) (*types.Order, bool, error) {
	var order *types.Order
	amended := false
	if draft.OrderID != nil {
		existing, err := e.ordersR.GetByID(ctx, tx, *draft.OrderID)
		if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, false, err
		}
		if existing != nil && types.IsAmendable(existing.Status) {
			if err := e.materializer.AmendFromDraft(ctx, tx, existing, agg); err != nil {
				return nil, false, err
			}
			order = existing
			amended = true
		}
	}
	if order == nil {
		// The linked order is gone or past amending; the aggregate still
		// deserves an order of its own.
		created, err := e.materializer.CreateFromDraft(ctx, tx, draft, agg)
		if err != nil {
			return nil, false, err
		}
		order = created
	}

	draft.Status = types.DraftStatusCommitted
	draft.OrderID = &order.ID
	reason := closeReason
	draft.CloseReason = &reason
	draft.CommittedAt = &now
	draft.ClosedAt = &now
	if closeReason == types.CloseReasonTimeout {
		draft.TimedOutAt = &now
	}
	draft.CommitDeadlineAt = nil
	draft.ReviewReason = nil
	if err := e.drafts.Save(ctx, tx, draft); err != nil {
		return nil, false, err
	}
	return order, amended, nil
}

// commitEvents is the post-commit notification set for one resolved draft.
func (e *draftEngine) commitEvents(draft *types.OrderDraft, order *types.Order, amended bool) func() {
	return func() {
		e.notifier.DraftCommitted(draft)
		if amended {
			e.notifier.OrderAmended(order, draft.ID)
		} else {
			e.notifier.OrderCreated(order)
		}
	}
}

func (e *draftEngine) FinalizeIfDue(ctx context.Context, draftID uuid.UUID) (string, error) {
	if e == nil || e.db == nil {
		return "", fmt.Errorf("draft engine not configured")
	}
	if draftID == uuid.Nil {
		return "", fmt.Errorf("%w: missing draft_id", pkgerrors.ErrInvalidArgument)
	}

	outcome := drafttimeout.OutcomeSkipped
	var pending []func()

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		probe, err := e.drafts.GetByID(ctx, tx, draftID)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrNotFound) {
				e.log.Warn("finalize for unknown draft", "draft_id", draftID.String())
				return nil
			}
			return err
		}
		if _, err := e.customers.LockByID(ctx, tx, probe.CustomerID); err != nil {
			return err
		}
		// Re-read now that the conversation is locked.
		draft, err := e.drafts.GetByID(ctx, tx, draftID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if draft.Status != types.DraftStatusOpen {
			return nil
		}
		if draft.CommitDeadlineAt == nil || now.Before(*draft.CommitDeadlineAt) {
			// A newer message pushed the deadline; this firing is stale.
			return nil
		}

		agg, err := draft.Aggregate()
		if err != nil {
			return err
		}
		verdict := draftflow.DecideOnTimeout(e.cfg, agg)
		if verdict.Commit {
			order, amended, err := e.commitDraft(ctx, tx, draft, agg, types.CloseReasonTimeout, now)
			if err != nil {
				return err
			}
			outcome = drafttimeout.OutcomeCommitted
			pending = append(pending, e.commitEvents(draft, order, amended))
			return nil
		}

		draft.Status = types.DraftStatusReadyForReview
		reason := verdict.ReviewReason
		draft.ReviewReason = &reason
		draft.TimedOutAt = &now
		draft.CommitDeadlineAt = nil
		if err := e.drafts.Save(ctx, tx, draft); err != nil {
			return err
		}
		outcome = drafttimeout.OutcomeReview
		pending = append(pending, func() { e.notifier.DraftReadyForReview(draft) })
		return nil
	})
	if err != nil {
		return "", err
	}

	for _, fn := range pending {
		fn()
	}
	return outcome, nil
}

func (e *draftEngine) ForceFinalize(ctx context.Context, draftID uuid.UUID) (*types.OrderDraft, *types.Order, error) {
	if e == nil || e.db == nil {
		return nil, nil, fmt.Errorf("draft engine not configured")
	}

	var outDraft *types.OrderDraft
	var outOrder *types.Order
	var outAmended bool

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		probe, err := e.drafts.GetByID(ctx, tx, draftID)
		if err != nil {
			return err
		}
		if _, err := e.customers.LockByID(ctx, tx, probe.CustomerID); err != nil {
			return err
		}
		draft, err := e.drafts.GetByID(ctx, tx, draftID)
		if err != nil {
			return err
		}

		switch draft.Status {
		case types.DraftStatusOpen, types.DraftStatusReadyForReview:
		default:
			return fmt.Errorf("%w: draft %s is %s", pkgerrors.ErrInvalidArgument, draftID.String(), draft.Status)
		}

		agg, err := draft.Aggregate()
		if err != nil {
			return err
		}
		if !agg.Flags.HasItems {
			return fmt.Errorf("%w: draft %s has no items", pkgerrors.ErrInvalidArgument, draftID.String())
		}

		order, amended, err := e.commitDraft(ctx, tx, draft, agg, types.CloseReasonManual, time.Now().UTC())
		if err != nil {
			return err
		}
		outDraft = draft
		outOrder = order
		outAmended = amended
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	e.commitEvents(outDraft, outOrder, outAmended)()
	return outDraft, outOrder, nil
}

func (e *draftEngine) SweepDue(ctx context.Context, limit int) (int, error) {
	due, err := e.drafts.ListDue(ctx, nil, time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, d := range due {
		outcome, err := e.FinalizeIfDue(ctx, d.ID)
		if err != nil {
			e.log.Error("sweep finalize failed", "draft_id", d.ID.String(), "error", err)
			continue
		}
		if outcome != drafttimeout.OutcomeSkipped {
			resolved++
		}
	}
	return resolved, nil
}

// RunSweeper polls for due drafts until ctx is canceled. It backs up the
// Temporal path and is the only finalizer when Temporal is not configured.
func (e *draftEngine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := e.SweepDue(ctx, 100); err != nil {
				e.log.Error("draft sweep failed", "error", err)
			} else if n > 0 {
				e.log.Info("draft sweep resolved drafts", "count", n)
			}
		}
	}
}
