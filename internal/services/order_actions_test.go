package services

import (
	"context"
	"errors"
	"testing"

	types "github.com/mercadomm/orders-backend/internal/domain"
	"github.com/mercadomm/orders-backend/internal/draftflow"
	pkgerrors "github.com/mercadomm/orders-backend/internal/pkg/errors"
)

func TestCancelDraftIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()
	f.parser.responses["1 cafe"] = itemsParse("cafe")

	res := f.ingest(t, phone, "1 cafe")

	draft, err := f.actions.CancelDraft(context.Background(), *res.DraftID, "cliente desistiu")
	if err != nil {
		t.Fatalf("CancelDraft: %v", err)
	}
	if draft.Status != types.DraftStatusCanceled {
		t.Fatalf("status: want=%s got=%s", types.DraftStatusCanceled, draft.Status)
	}
	if draft.CloseReason == nil || *draft.CloseReason != types.CloseReasonManual {
		t.Fatalf("close reason: %v", draft.CloseReason)
	}
	if draft.CommitDeadlineAt != nil {
		t.Fatalf("canceled draft must not keep a deadline")
	}

	again, err := f.actions.CancelDraft(context.Background(), *res.DraftID, "de novo")
	if err != nil {
		t.Fatalf("repeated CancelDraft: %v", err)
	}
	if again.Status != types.DraftStatusCanceled {
		t.Fatalf("repeat cancel status: %s", again.Status)
	}
}

func TestForceFinalizeDraft(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()
	f.parser.responses["2 bananas"] = itemsParse("banana")

	res := f.ingest(t, phone, "2 bananas")

	draft, err := f.actions.ForceFinalizeDraft(context.Background(), *res.DraftID)
	if err != nil {
		t.Fatalf("ForceFinalizeDraft: %v", err)
	}
	if draft.Status != types.DraftStatusCommitted {
		t.Fatalf("status: want=%s got=%s", types.DraftStatusCommitted, draft.Status)
	}
	if draft.CloseReason == nil || *draft.CloseReason != types.CloseReasonManual {
		t.Fatalf("close reason: %v", draft.CloseReason)
	}
	if draft.OrderID == nil {
		t.Fatalf("forced commit must create an order")
	}
}

func TestForceFinalizeRejectsDraftWithoutItems(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()

	res := f.ingest(t, phone, "tem entrega hoje?")
	if _, err := f.actions.ForceFinalizeDraft(context.Background(), *res.DraftID); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestMoveOrderStatusWalksForwardOnly(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()
	f.parser.responses["1 farinha"] = itemsParse("farinha")

	res := f.ingest(t, phone, "1 farinha")
	draft, err := f.actions.ForceFinalizeDraft(context.Background(), *res.DraftID)
	if err != nil {
		t.Fatalf("ForceFinalizeDraft: %v", err)
	}

	order, err := f.actions.MoveOrderStatus(context.Background(), *draft.OrderID, types.OrderStatusInPicking)
	if err != nil {
		t.Fatalf("MoveOrderStatus: %v", err)
	}
	if order.Status != types.OrderStatusInPicking || order.PickingStartedAt == nil {
		t.Fatalf("move to picking: %+v", order)
	}

	if _, err := f.actions.MoveOrderStatus(context.Background(), order.ID, types.OrderStatusCompleted); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("skipping stages must fail, got %v", err)
	}
	if _, err := f.actions.MoveOrderStatus(context.Background(), order.ID, types.OrderStatusNew); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("moving backward must fail, got %v", err)
	}

	history, err := f.orders.ListHistory(context.Background(), nil, order.ID)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries: want=2 got=%d", len(history))
	}
	if history[1].ChangedBy != types.ActorAdminMoveStatus {
		t.Fatalf("history actor: %s", history[1].ChangedBy)
	}
}

func TestCancelOrder(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()
	f.parser.responses["1 sabao"] = itemsParse("sabao")

	res := f.ingest(t, phone, "1 sabao")
	draft, err := f.actions.ForceFinalizeDraft(context.Background(), *res.DraftID)
	if err != nil {
		t.Fatalf("ForceFinalizeDraft: %v", err)
	}

	order, err := f.actions.CancelOrder(context.Background(), *draft.OrderID, "sem estoque")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if order.Status != types.OrderStatusCanceled || order.CanceledAt == nil {
		t.Fatalf("cancel result: %+v", order)
	}

	again, err := f.actions.CancelOrder(context.Background(), order.ID, "de novo")
	if err != nil {
		t.Fatalf("repeated CancelOrder: %v", err)
	}
	if again.Status != types.OrderStatusCanceled {
		t.Fatalf("repeat cancel status: %s", again.Status)
	}
}
