package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadomm/orders-backend/internal/clients/twilio"
	"github.com/mercadomm/orders-backend/internal/data/repos"
	types "github.com/mercadomm/orders-backend/internal/domain"
	"github.com/mercadomm/orders-backend/internal/draftflow"
	pkgerrors "github.com/mercadomm/orders-backend/internal/pkg/errors"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

// OrderActions are the operator-facing controls: cancel drafts and orders,
// walk orders through fulfilment, force a commit, and ask the customer a
// clarification question over WhatsApp.
type OrderActions interface {
	CancelDraft(ctx context.Context, draftID uuid.UUID, reason string) (*types.OrderDraft, error)
	ForceFinalizeDraft(ctx context.Context, draftID uuid.UUID) (*types.OrderDraft, error)
	AskDraftQuestion(ctx context.Context, draftID uuid.UUID, question, replyType string) (*types.OrderDraft, error)

	CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) (*types.Order, error)
	MoveOrderStatus(ctx context.Context, orderID uuid.UUID, toStatus string) (*types.Order, error)
	// AskOrderQuestion reopens or creates a follow-up draft pre-linked to
	// the order and pins it on the customer's answer.
	AskOrderQuestion(ctx context.Context, orderID uuid.UUID, question, replyType string) (*types.OrderDraft, error)
}

type orderActions struct {
	db  *gorm.DB
	log *logger.Logger
	cfg draftflow.Config

	customers repos.CustomerRepo
	messages  repos.InboundMessageRepo
	drafts    repos.DraftRepo
	ordersR   repos.OrderRepo

	engine    DraftEngine
	scheduler DraftScheduler
	notifier  Notifier
	whatsapp  twilio.Client
}

func NewOrderActions(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg draftflow.Config,
	customers repos.CustomerRepo,
	messages repos.InboundMessageRepo,
	drafts repos.DraftRepo,
	ordersR repos.OrderRepo,
	engine DraftEngine,
	scheduler DraftScheduler,
	notifier Notifier,
	whatsapp twilio.Client,
) OrderActions {
	return &orderActions{
		db:        db,
		log:       baseLog.With("service", "OrderActions"),
		cfg:       cfg,
		customers: customers,
		messages:  messages,
		drafts:    drafts,
		ordersR:   ordersR,
		engine:    engine,
		scheduler: scheduler,
		notifier:  notifier,
		whatsapp:  whatsapp,
	}
}

func (s *orderActions) CancelDraft(ctx context.Context, draftID uuid.UUID, reason string) (*types.OrderDraft, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("order actions not configured")
	}

	var out *types.OrderDraft
	canceledNow := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := s.drafts.GetByID(ctx, tx, draftID)
		if err != nil {
			return err
		}
		switch draft.Status {
		case types.DraftStatusCanceled:
			out = draft
			return nil
		case types.DraftStatusOpen, types.DraftStatusReadyForReview:
		default:
			return fmt.Errorf("%w: draft %s is %s", pkgerrors.ErrInvalidArgument, draftID.String(), draft.Status)
		}

		now := time.Now().UTC()
		draft.Status = types.DraftStatusCanceled
		closeReason := types.CloseReasonManual
		draft.CloseReason = &closeReason
		if r := strings.TrimSpace(reason); r != "" {
			draft.ReviewReason = &r
		}
		draft.ClosedAt = &now
		draft.CommitDeadlineAt = nil
		if err := s.drafts.Save(ctx, tx, draft); err != nil {
			return err
		}
		out = draft
		canceledNow = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if canceledNow {
		s.notifier.DraftCanceled(out)
		s.log.Info("draft canceled", "draft_id", draftID.String(), "reason", reason)
	}
	return out, nil
}

func (s *orderActions) ForceFinalizeDraft(ctx context.Context, draftID uuid.UUID) (*types.OrderDraft, error) {
	if s == nil || s.engine == nil {
		return nil, fmt.Errorf("order actions not configured")
	}
	draft, _, err := s.engine.ForceFinalize(ctx, draftID)
	return draft, err
}

// AskDraftQuestion pins the draft on a customer answer, sends the question
// over WhatsApp and records the outbound message.
func (s *orderActions) AskDraftQuestion(ctx context.Context, draftID uuid.UUID, question, replyType string) (*types.OrderDraft, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("order actions not configured")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: missing question", pkgerrors.ErrInvalidArgument)
	}
	switch replyType {
	case types.ReplyTypeAddress, types.ReplyTypePayment:
	default:
		return nil, fmt.Errorf("%w: bad reply_type %q", pkgerrors.ErrInvalidArgument, replyType)
	}

	var out *types.OrderDraft
	var customer *types.Customer

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := s.drafts.GetByID(ctx, tx, draftID)
		if err != nil {
			return err
		}
		switch draft.Status {
		case types.DraftStatusOpen, types.DraftStatusReadyForReview:
		default:
			return fmt.Errorf("%w: draft %s is %s", pkgerrors.ErrInvalidArgument, draftID.String(), draft.Status)
		}

		customer, err = s.customers.GetByID(ctx, tx, draft.CustomerID)
		if err != nil {
			return err
		}

		agg, err := draft.Aggregate()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		armed := draftflow.WithAwaitingReply(agg, replyType, now, s.cfg.AskReplyWindow)
		if err := draft.SetAggregate(armed); err != nil {
			return err
		}
		// Asking reopens a review-parked draft; the reply window becomes
		// its new commit deadline.
		draft.Status = types.DraftStatusOpen
		draft.ReviewReason = nil
		draft.CloseReason = nil
		draft.TimedOutAt = nil
		draft.ClosedAt = nil
		draft.CommitDeadlineAt = armed.Control.AwaitingReplyUntil
		if err := s.drafts.Save(ctx, tx, draft); err != nil {
			return err
		}
		out = draft
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sendToCustomer(ctx, customer, question)
	s.scheduleReplyTimeout(ctx, out)
	s.notifier.DraftUpdated(out, "awaiting_customer_reply")
	s.log.Info("draft question sent",
		"draft_id", draftID.String(), "reply_type", replyType, "customer_id", out.CustomerID.String())
	return out, nil
}

// scheduleReplyTimeout arms the draft's timeout at its reply deadline. The
// sweeper backs this up, so a scheduling failure only gets logged.
func (s *orderActions) scheduleReplyTimeout(ctx context.Context, draft *types.OrderDraft) {
	if s.scheduler == nil || draft == nil || draft.CommitDeadlineAt == nil {
		return
	}
	if err := s.scheduler.ScheduleTimeout(ctx, draft.ID, *draft.CommitDeadlineAt); err != nil {
		s.log.Warn("draft timeout scheduling failed",
			"draft_id", draft.ID.String(), "error", err)
	}
}

func (s *orderActions) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) (*types.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("order actions not configured")
	}

	var out *types.Order
	canceledNow := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.ordersR.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case types.OrderStatusCanceled:
			out = order
			return nil
		case types.OrderStatusCompleted:
			return fmt.Errorf("%w: order %s is completed", pkgerrors.ErrInvalidArgument, orderID.String())
		}

		from := order.Status
		now := time.Now().UTC()
		order.Status = types.OrderStatusCanceled
		if r := strings.TrimSpace(reason); r != "" {
			order.CancelReason = &r
		}
		order.CanceledAt = &now
		if err := s.ordersR.Save(ctx, tx, order); err != nil {
			return err
		}
		if err := s.ordersR.AppendHistory(ctx, tx, &types.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: &from,
			ToStatus:   types.OrderStatusCanceled,
			ChangedBy:  types.ActorAdminCancel,
		}); err != nil {
			return err
		}
		out = order
		canceledNow = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if canceledNow {
		s.notifier.OrderCanceled(out)
		s.log.Info("order canceled", "order_id", orderID.String(), "reason", reason)
	}
	return out, nil
}

func (s *orderActions) MoveOrderStatus(ctx context.Context, orderID uuid.UUID, toStatus string) (*types.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("order actions not configured")
	}

	var out *types.Order
	var fromStatus string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.ordersR.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !types.CanTransition(order.Status, toStatus) {
			return fmt.Errorf("%w: order %s cannot move %s -> %s",
				pkgerrors.ErrInvalidArgument, orderID.String(), order.Status, toStatus)
		}

		fromStatus = order.Status
		now := time.Now().UTC()
		order.Status = toStatus
		switch toStatus {
		case types.OrderStatusInPicking:
			order.PickingStartedAt = &now
		case types.OrderStatusWaitingCourier:
			order.PickingFinishedAt = &now
		case types.OrderStatusOutForDelivery:
			order.OutForDeliveryAt = &now
		case types.OrderStatusCompleted:
			order.CompletedAt = &now
		}
		if err := s.ordersR.Save(ctx, tx, order); err != nil {
			return err
		}
		if err := s.ordersR.AppendHistory(ctx, tx, &types.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: &fromStatus,
			ToStatus:   toStatus,
			ChangedBy:  types.ActorAdminMoveStatus,
		}); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.OrderStatusChanged(out, fromStatus)
	s.log.Info("order status moved",
		"order_id", orderID.String(), "from", fromStatus, "to", toStatus)

	if copyText := statusCopy(toStatus); copyText != "" {
		customer, custErr := s.customers.GetByID(ctx, nil, out.CustomerID)
		if custErr != nil {
			s.log.Warn("status notification skipped; customer lookup failed",
				"order_id", orderID.String(), "error", custErr)
		} else {
			s.sendToCustomer(ctx, customer, copyText)
		}
	}
	return out, nil
}

// statusCopy is the customer-facing WhatsApp message for a status move.
// Terminal states get no message; cancellation has its own flow.
func statusCopy(status string) string {
	switch status {
	case types.OrderStatusInPicking:
		return "Estamos separando o seu pedido."
	case types.OrderStatusWaitingCourier:
		return "Seu pedido esta pronto e aguardando o entregador."
	case types.OrderStatusOutForDelivery:
		return "Seu pedido saiu para entrega."
	default:
		return ""
	}
}

// AskOrderQuestion sends the customer a question about a committed order
// and opens (or reuses) a follow-up draft pre-linked to it, pinned on the
// answer. The reply then routes back through the regular ingest path and
// amends the order when the draft resolves.
func (s *orderActions) AskOrderQuestion(ctx context.Context, orderID uuid.UUID, question, replyType string) (*types.OrderDraft, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("order actions not configured")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: missing question", pkgerrors.ErrInvalidArgument)
	}
	switch replyType {
	case types.ReplyTypeAddress, types.ReplyTypePayment:
	default:
		return nil, fmt.Errorf("%w: bad reply_type %q", pkgerrors.ErrInvalidArgument, replyType)
	}

	var out *types.OrderDraft
	var customer *types.Customer
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.ordersR.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !types.IsAmendable(order.Status) {
			return fmt.Errorf("%w: order %s is %s", pkgerrors.ErrInvalidArgument, orderID.String(), order.Status)
		}
		customer, err = s.customers.LockByID(ctx, tx, order.CustomerID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		draft, err := s.drafts.FindOpenByCustomer(ctx, tx, order.CustomerID)
		if err != nil {
			return err
		}
		if draft != nil && (draft.OrderID == nil || *draft.OrderID != orderID) {
			// An unrelated draft is in flight; do not hijack it.
			draft = nil
		}

		if draft == nil {
			draft = &types.OrderDraft{
				CustomerID:    order.CustomerID,
				OrderID:       &orderID,
				Status:        types.DraftStatusOpen,
				OpenedAt:      now,
				LastMessageAt: now,
			}
			agg := draftflow.NewAwaitingAggregate(replyType, now, s.cfg.AskReplyWindow)
			if err := draft.SetAggregate(agg); err != nil {
				return err
			}
			draft.CommitDeadlineAt = agg.Control.AwaitingReplyUntil
			if _, err := s.drafts.Create(ctx, tx, draft); err != nil {
				return err
			}
			created = true
		} else {
			agg, err := draft.Aggregate()
			if err != nil {
				return err
			}
			armed := draftflow.WithAwaitingReply(agg, replyType, now, s.cfg.AskReplyWindow)
			if err := draft.SetAggregate(armed); err != nil {
				return err
			}
			draft.ReviewReason = nil
			draft.CloseReason = nil
			draft.TimedOutAt = nil
			draft.ClosedAt = nil
			draft.CommitDeadlineAt = armed.Control.AwaitingReplyUntil
			if err := s.drafts.Save(ctx, tx, draft); err != nil {
				return err
			}
		}
		out = draft
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sendToCustomer(ctx, customer, question)
	s.scheduleReplyTimeout(ctx, out)
	if created {
		s.notifier.DraftOpened(out)
	} else {
		s.notifier.DraftUpdated(out, "awaiting_customer_reply")
	}
	s.log.Info("order question sent",
		"order_id", orderID.String(), "draft_id", out.ID.String(), "reply_type", replyType)
	return out, nil
}

// sendToCustomer delivers the message over WhatsApp and stores the outbound
// row. Delivery failures are logged, not propagated; the state change that
// triggered the send already committed.
func (s *orderActions) sendToCustomer(ctx context.Context, customer *types.Customer, body string) {
	if customer == nil {
		return
	}

	providerID := "out-" + uuid.NewString()
	if s.whatsapp != nil {
		msg, err := s.whatsapp.SendWhatsApp(ctx, customer.PhoneE164, body)
		if err != nil {
			s.log.Error("whatsapp send failed", "customer_id", customer.ID.String(), "error", err)
		} else if msg != nil && msg.SID != "" {
			providerID = msg.SID
		}
	} else {
		s.log.Warn("whatsapp client not configured; question not delivered",
			"customer_id", customer.ID.String())
	}

	if _, _, err := s.messages.CreateIfAbsent(ctx, nil, &types.InboundMessage{
		CustomerID:        customer.ID,
		ProviderMessageID: providerID,
		Direction:         types.MessageDirectionOut,
		MessageType:       "text",
		Text:              body,
	}); err != nil {
		s.log.Error("failed to record outbound message", "customer_id", customer.ID.String(), "error", err)
	}
}
