package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadomm/orders-backend/internal/data/repos"
	"github.com/mercadomm/orders-backend/internal/data/repos/testutil"
	types "github.com/mercadomm/orders-backend/internal/domain"
	"github.com/mercadomm/orders-backend/internal/draftflow"
	"github.com/mercadomm/orders-backend/internal/pkg/phone"
	"github.com/mercadomm/orders-backend/internal/realtime"
	"github.com/mercadomm/orders-backend/internal/temporalx/drafttimeout"
)

// scriptedParser returns a canned parse per message text.
type scriptedParser struct {
	responses map[string]draftflow.ParsedOrder
}

func (p *scriptedParser) ParseMessage(ctx context.Context, customerName, text string) (draftflow.ParsedOrder, error) {
	if parsed, ok := p.responses[text]; ok {
		return parsed, nil
	}
	return draftflow.ParsedOrder{Intent: types.IntentUnclear}, nil
}

type engineFixture struct {
	db      *gorm.DB
	engine  DraftEngine
	actions OrderActions
	drafts  repos.DraftRepo
	orders  repos.OrderRepo
	links   repos.DraftMessageRepo
	parser  *scriptedParser
	cfg     draftflow.Config
}

var phoneSeq atomic.Int64

func uniquePhone() string {
	return fmt.Sprintf("+55119%08d", phoneSeq.Add(1)+time.Now().UnixNano()%1_000_000)
}

func newEngineFixture(t *testing.T, cfg draftflow.Config) *engineFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	customers := repos.NewCustomerRepo(db, log)
	messages := repos.NewInboundMessageRepo(db, log)
	drafts := repos.NewDraftRepo(db, log)
	links := repos.NewDraftMessageRepo(db, log)
	ordersR := repos.NewOrderRepo(db, log)

	materializer := NewOrderMaterializer(log, customers, ordersR)
	parser := &scriptedParser{responses: map[string]draftflow.ParsedOrder{}}
	notifier := NewNotifier(log, realtime.NewHub(log), nil)
	scheduler := NewNoopDraftScheduler(log)

	engine := NewDraftEngine(db, log, cfg, customers, messages, drafts, links, ordersR, materializer, parser, scheduler, notifier)
	actions := NewOrderActions(db, log, cfg, customers, messages, drafts, ordersR, engine, scheduler, notifier, nil)

	return &engineFixture{
		db:      db,
		engine:  engine,
		actions: actions,
		drafts:  drafts,
		orders:  ordersR,
		links:   links,
		parser:  parser,
		cfg:     cfg,
	}
}

func itemsParse(names ...string) draftflow.ParsedOrder {
	p := draftflow.ParsedOrder{Intent: types.IntentOrder}
	for _, n := range names {
		qty := 1.0
		p.Items = append(p.Items, draftflow.ParsedItem{Name: n, Quantity: &qty})
	}
	return p
}

func (f *engineFixture) ingest(t *testing.T, phone, text string) *IngestResult {
	t.Helper()
	res, err := f.engine.IngestMessage(context.Background(), IngestInput{
		ProviderMessageID: "wamid-" + uuid.NewString(),
		FromPhone:         phone,
		CustomerName:      "Dona Maria",
		Text:              text,
	})
	if err != nil {
		t.Fatalf("IngestMessage(%q): %v", text, err)
	}
	return res
}

func (f *engineFixture) expireDraft(t *testing.T, draftID uuid.UUID) {
	t.Helper()
	past := time.Now().UTC().Add(-time.Minute)
	if err := f.db.Model(&types.OrderDraft{}).
		Where("id = ?", draftID).
		Update("commit_deadline_at", past).Error; err != nil {
		t.Fatalf("expire draft: %v", err)
	}
}

func TestIngestOpensDraftAndMergesWithinGap(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()

	f.parser.responses["2kg de arroz"] = itemsParse("arroz")
	f.parser.responses["e um oleo"] = itemsParse("oleo")

	first := f.ingest(t, phone, "2kg de arroz")
	if first.Selection != draftflow.SelectFreshDraft {
		t.Fatalf("first selection: want=%s got=%s", draftflow.SelectFreshDraft, first.Selection)
	}
	if first.DraftID == nil {
		t.Fatalf("first ingest produced no draft")
	}

	second := f.ingest(t, phone, "e um oleo")
	if second.Selection != draftflow.SelectReuseOpen {
		t.Fatalf("second selection: want=%s got=%s", draftflow.SelectReuseOpen, second.Selection)
	}
	if second.DraftID == nil || *second.DraftID != *first.DraftID {
		t.Fatalf("second message should land on the same draft")
	}

	draft, err := f.drafts.GetByID(context.Background(), nil, *first.DraftID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	agg, err := draft.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(agg.Items) != 2 {
		t.Fatalf("items: want=2 got=%d", len(agg.Items))
	}
	if agg.Stats.MessageCount != 2 {
		t.Fatalf("message count: want=2 got=%d", agg.Stats.MessageCount)
	}
	if draft.CommitDeadlineAt == nil {
		t.Fatalf("open draft must carry a commit deadline")
	}

	linked, err := f.links.ListByDraft(context.Background(), nil, draft.ID)
	if err != nil {
		t.Fatalf("ListByDraft: %v", err)
	}
	if len(linked) != 2 || linked[0].Sequence != 1 || linked[1].Sequence != 2 {
		t.Fatalf("draft message links wrong: %+v", linked)
	}
}

func TestIngestDuplicateProviderMessageID(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()
	f.parser.responses["1 leite"] = itemsParse("leite")

	in := IngestInput{
		ProviderMessageID: "wamid-" + uuid.NewString(),
		FromPhone:         phone,
		CustomerName:      "Seu Jorge",
		Text:              "1 leite",
	}
	first, err := f.engine.IngestMessage(context.Background(), in)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	replay, err := f.engine.IngestMessage(context.Background(), in)
	if err != nil {
		t.Fatalf("replay ingest: %v", err)
	}
	if !replay.Duplicate {
		t.Fatalf("replay must report duplicate")
	}
	if replay.MessageID != first.MessageID {
		t.Fatalf("replay must resolve to the stored message")
	}

	draft, err := f.drafts.GetByID(context.Background(), nil, *first.DraftID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	agg, _ := draft.Aggregate()
	if agg.Stats.MessageCount != 1 {
		t.Fatalf("duplicate must not merge twice: count=%d", agg.Stats.MessageCount)
	}
}

func TestFinalizeCommitsDueDraft(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()
	f.parser.responses["3kg de feijao, pago no pix"] = func() draftflow.ParsedOrder {
		p := itemsParse("feijao")
		pix := "pix"
		p.PaymentMethod = &pix
		return p
	}()

	res := f.ingest(t, phone, "3kg de feijao, pago no pix")
	f.expireDraft(t, *res.DraftID)

	outcome, err := f.engine.FinalizeIfDue(context.Background(), *res.DraftID)
	if err != nil {
		t.Fatalf("FinalizeIfDue: %v", err)
	}
	if outcome != drafttimeout.OutcomeCommitted {
		t.Fatalf("outcome: want=%s got=%s", drafttimeout.OutcomeCommitted, outcome)
	}

	draft, err := f.drafts.GetByID(context.Background(), nil, *res.DraftID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if draft.Status != types.DraftStatusCommitted {
		t.Fatalf("draft status: want=%s got=%s", types.DraftStatusCommitted, draft.Status)
	}
	if draft.OrderID == nil || draft.CommittedAt == nil || draft.CommitDeadlineAt != nil {
		t.Fatalf("committed draft fields wrong: %+v", draft)
	}
	if draft.CloseReason == nil || *draft.CloseReason != types.CloseReasonTimeout {
		t.Fatalf("close reason: %v", draft.CloseReason)
	}

	order, err := f.orders.GetByID(context.Background(), nil, *draft.OrderID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != types.OrderStatusNew {
		t.Fatalf("order status: want=%s got=%s", types.OrderStatusNew, order.Status)
	}
	if len(order.Items) != 1 || order.Items[0].ProductName != "feijao" {
		t.Fatalf("order items wrong: %+v", order.Items)
	}

	// Stale re-fire is a no-op.
	again, err := f.engine.FinalizeIfDue(context.Background(), *res.DraftID)
	if err != nil {
		t.Fatalf("replayed finalize: %v", err)
	}
	if again != drafttimeout.OutcomeSkipped {
		t.Fatalf("replayed finalize: want=%s got=%s", drafttimeout.OutcomeSkipped, again)
	}
}

func TestFinalizeParksQuestionOnlyDraft(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()

	res := f.ingest(t, phone, "voces tem entrega hoje?")
	if res.DraftID == nil {
		t.Fatalf("question should open a draft")
	}
	f.expireDraft(t, *res.DraftID)

	outcome, err := f.engine.FinalizeIfDue(context.Background(), *res.DraftID)
	if err != nil {
		t.Fatalf("FinalizeIfDue: %v", err)
	}
	if outcome != drafttimeout.OutcomeReview {
		t.Fatalf("outcome: want=%s got=%s", drafttimeout.OutcomeReview, outcome)
	}

	draft, err := f.drafts.GetByID(context.Background(), nil, *res.DraftID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if draft.Status != types.DraftStatusReadyForReview {
		t.Fatalf("draft status: want=%s got=%s", types.DraftStatusReadyForReview, draft.Status)
	}
	if draft.ReviewReason == nil || *draft.ReviewReason != draftflow.ReviewPausedForCustomerQuestion {
		t.Fatalf("review reason: %v", draft.ReviewReason)
	}
}

func TestPostCommitAmendment(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()
	f.parser.responses["5 paes"] = itemsParse("pao frances")
	f.parser.responses["ah, e uma manteiga tambem"] = func() draftflow.ParsedOrder {
		p := itemsParse("manteiga")
		p.Delivery.Address = strPtr("Rua C 33")
		p.Observations = []string{"sem sal"}
		return p
	}()

	res := f.ingest(t, phone, "5 paes")
	f.expireDraft(t, *res.DraftID)
	if _, err := f.engine.FinalizeIfDue(context.Background(), *res.DraftID); err != nil {
		t.Fatalf("FinalizeIfDue: %v", err)
	}

	amend := f.ingest(t, phone, "ah, e uma manteiga tambem")
	if amend.Selection != draftflow.SelectAmendOrder {
		t.Fatalf("selection: want=%s got=%s", draftflow.SelectAmendOrder, amend.Selection)
	}
	if amend.OrderID == nil {
		t.Fatalf("amendment must report the linked order")
	}
	if amend.DraftID == nil || *amend.DraftID == *res.DraftID {
		t.Fatalf("amendment must open its own draft, got %v", amend.DraftID)
	}
	if amend.Committed {
		t.Fatalf("amendment must aggregate first, not commit on ingest")
	}

	// The follow-up draft is open, pre-linked and deadline-driven; the
	// order itself is untouched until that draft resolves.
	follow, err := f.drafts.GetByID(context.Background(), nil, *amend.DraftID)
	if err != nil {
		t.Fatalf("load follow-up draft: %v", err)
	}
	if follow.Status != types.DraftStatusOpen || follow.CommitDeadlineAt == nil {
		t.Fatalf("follow-up draft not open with deadline: %+v", follow)
	}
	if follow.OrderID == nil || *follow.OrderID != *amend.OrderID {
		t.Fatalf("follow-up draft not linked to the order: %v", follow.OrderID)
	}
	order, err := f.orders.GetByID(context.Background(), nil, *amend.OrderID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("order must stay unamended while the follow-up aggregates: items=%d", len(order.Items))
	}

	f.expireDraft(t, *amend.DraftID)
	outcome, err := f.engine.FinalizeIfDue(context.Background(), *amend.DraftID)
	if err != nil {
		t.Fatalf("finalize follow-up: %v", err)
	}
	if outcome != drafttimeout.OutcomeCommitted {
		t.Fatalf("outcome: want=%s got=%s", drafttimeout.OutcomeCommitted, outcome)
	}

	order, err = f.orders.GetByID(context.Background(), nil, *amend.OrderID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if len(order.Items) != 2 {
		t.Fatalf("amended order items: want=2 got=%d", len(order.Items))
	}
	if !strings.Contains(order.RawMessage, "--- AMENDMENT ---") {
		t.Fatalf("raw message must record the amendment: %q", order.RawMessage)
	}
	if order.DeliveryAddress == nil || *order.DeliveryAddress != "Rua C 33" {
		t.Fatalf("amendment address must overwrite the order's: %v", order.DeliveryAddress)
	}
	if order.Notes == nil || !strings.Contains(*order.Notes, "sem sal") {
		t.Fatalf("amendment observations must land in the notes: %v", order.Notes)
	}
	// The interpreted summary is replaced by the amendment's, not extended.
	if !strings.Contains(order.InterpretedText, "manteiga") || strings.Contains(order.InterpretedText, "pao frances") {
		t.Fatalf("interpreted text not replaced: %q", order.InterpretedText)
	}

	follow, err = f.drafts.GetByID(context.Background(), nil, *amend.DraftID)
	if err != nil {
		t.Fatalf("reload follow-up draft: %v", err)
	}
	if follow.Status != types.DraftStatusCommitted {
		t.Fatalf("follow-up draft status: want=%s got=%s", types.DraftStatusCommitted, follow.Status)
	}
	if follow.OrderID == nil || *follow.OrderID != order.ID {
		t.Fatalf("committed follow-up must stay linked to the amended order")
	}
}

func TestNoiseMessageSkipsDraft(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()
	f.parser.responses["bom dia"] = draftflow.ParsedOrder{Intent: types.IntentNotOrder}

	res := f.ingest(t, phone, "bom dia")
	if res.Selection != draftflow.SelectSkipNoise {
		t.Fatalf("selection: want=%s got=%s", draftflow.SelectSkipNoise, res.Selection)
	}
	if res.DraftID != nil {
		t.Fatalf("noise must not open a draft")
	}
	if res.MessageID == uuid.Nil {
		t.Fatalf("noise message must still be stored")
	}
}

func TestEarlyCloseOnClosingSignal(t *testing.T) {
	cfg := draftflow.DefaultConfig()
	cfg.CloseEarlyOnSignals = true
	f := newEngineFixture(t, cfg)
	phone := uniquePhone()

	f.parser.responses["2 cocas"] = itemsParse("coca-cola")
	f.parser.responses["pode fechar"] = draftflow.ParsedOrder{Intent: types.IntentOrder}

	f.ingest(t, phone, "2 cocas")
	res := f.ingest(t, phone, "pode fechar")
	if !res.Committed {
		t.Fatalf("closing signal with items should commit immediately")
	}
	if res.OrderID == nil {
		t.Fatalf("early close must create the order")
	}

	draft, err := f.drafts.GetByID(context.Background(), nil, *res.DraftID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if draft.CloseReason == nil || *draft.CloseReason != types.CloseReasonEarlySignal {
		t.Fatalf("close reason: %v", draft.CloseReason)
	}
}

func TestAskDraftQuestionPinsFollowupReply(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()
	f.parser.responses["1 arroz"] = itemsParse("arroz")

	res := f.ingest(t, phone, "1 arroz")

	if _, err := f.actions.AskDraftQuestion(context.Background(), *res.DraftID, "Qual o endereco de entrega?", types.ReplyTypeAddress); err != nil {
		t.Fatalf("AskDraftQuestion: %v", err)
	}

	reply := f.ingest(t, phone, "Rua das Flores 123")
	if reply.Selection != draftflow.SelectReuseAwaiting {
		t.Fatalf("selection: want=%s got=%s", draftflow.SelectReuseAwaiting, reply.Selection)
	}

	draft, err := f.drafts.GetByID(context.Background(), nil, *res.DraftID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	agg, _ := draft.Aggregate()
	if agg.Control.AwaitingCustomerReply {
		t.Fatalf("address reply must clear the awaiting state")
	}
	if !agg.Flags.HasDeliveryAddress {
		t.Fatalf("address reply must set the delivery flag")
	}
}

func TestAskOrderQuestionOpensLinkedFollowupDraft(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()
	f.parser.responses["10 laranjas"] = itemsParse("laranja")

	res := f.ingest(t, phone, "10 laranjas")
	f.expireDraft(t, *res.DraftID)
	if _, err := f.engine.FinalizeIfDue(context.Background(), *res.DraftID); err != nil {
		t.Fatalf("FinalizeIfDue: %v", err)
	}
	committed, err := f.drafts.GetByID(context.Background(), nil, *res.DraftID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if committed.OrderID == nil {
		t.Fatalf("commit must link the order")
	}

	follow, err := f.actions.AskOrderQuestion(context.Background(), *committed.OrderID, "Qual o endereco de entrega?", types.ReplyTypeAddress)
	if err != nil {
		t.Fatalf("AskOrderQuestion: %v", err)
	}
	if follow.OrderID == nil || *follow.OrderID != *committed.OrderID {
		t.Fatalf("question draft not linked to the order: %v", follow.OrderID)
	}
	if follow.Status != types.DraftStatusOpen || follow.CommitDeadlineAt == nil {
		t.Fatalf("question draft must be open with a reply deadline: %+v", follow)
	}
	agg, _ := follow.Aggregate()
	if !agg.Control.AwaitingCustomerReply || agg.Control.AwaitingReplyType != types.ReplyTypeAddress {
		t.Fatalf("awaiting triad not armed: %+v", agg.Control)
	}
	if agg.Control.AwaitingReplyUntil == nil || !follow.CommitDeadlineAt.Equal(*agg.Control.AwaitingReplyUntil) {
		t.Fatalf("commit deadline must match the reply window: %v vs %v",
			follow.CommitDeadlineAt, agg.Control.AwaitingReplyUntil)
	}

	reply := f.ingest(t, phone, "Rua das Flores 123")
	if reply.Selection != draftflow.SelectReuseAwaiting {
		t.Fatalf("selection: want=%s got=%s", draftflow.SelectReuseAwaiting, reply.Selection)
	}
	if reply.DraftID == nil || *reply.DraftID != follow.ID {
		t.Fatalf("reply must land on the question draft")
	}

	follow, err = f.drafts.GetByID(context.Background(), nil, follow.ID)
	if err != nil {
		t.Fatalf("reload question draft: %v", err)
	}
	agg, _ = follow.Aggregate()
	if agg.Control.AwaitingCustomerReply {
		t.Fatalf("address reply must clear the awaiting state")
	}
	if !agg.Flags.HasDeliveryAddress {
		t.Fatalf("address reply must set the delivery flag")
	}
}

func TestAskDraftQuestionReopensParkedDraft(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()

	res := f.ingest(t, phone, "voces tem entrega hoje?")
	f.expireDraft(t, *res.DraftID)
	if _, err := f.engine.FinalizeIfDue(context.Background(), *res.DraftID); err != nil {
		t.Fatalf("FinalizeIfDue: %v", err)
	}

	draft, err := f.actions.AskDraftQuestion(context.Background(), *res.DraftID, "Pode mandar o endereco?", types.ReplyTypeAddress)
	if err != nil {
		t.Fatalf("AskDraftQuestion: %v", err)
	}
	if draft.Status != types.DraftStatusOpen {
		t.Fatalf("asking must reopen the parked draft, got %s", draft.Status)
	}
	if draft.ReviewReason != nil || draft.TimedOutAt != nil {
		t.Fatalf("review markers must clear: reason=%v timedOut=%v", draft.ReviewReason, draft.TimedOutAt)
	}
	agg, _ := draft.Aggregate()
	if agg.Control.AwaitingReplyUntil == nil || draft.CommitDeadlineAt == nil ||
		!draft.CommitDeadlineAt.Equal(*agg.Control.AwaitingReplyUntil) {
		t.Fatalf("commit deadline must track the reply window: %v vs %v",
			draft.CommitDeadlineAt, agg.Control.AwaitingReplyUntil)
	}
}

func TestReuseReopensReviewParkedDraft(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()

	res := f.ingest(t, phone, "voces tem entrega hoje?")
	if _, err := f.actions.AskDraftQuestion(context.Background(), *res.DraftID, "Pode mandar o endereco?", types.ReplyTypeAddress); err != nil {
		t.Fatalf("AskDraftQuestion: %v", err)
	}
	f.expireDraft(t, *res.DraftID)
	if _, err := f.engine.FinalizeIfDue(context.Background(), *res.DraftID); err != nil {
		t.Fatalf("FinalizeIfDue: %v", err)
	}
	parked, err := f.drafts.GetByID(context.Background(), nil, *res.DraftID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if parked.Status != types.DraftStatusReadyForReview || parked.TimedOutAt == nil {
		t.Fatalf("draft should be parked for review: %+v", parked)
	}

	// The payment reply does not satisfy the address wait, but any reuse
	// still reopens the draft and restarts its window.
	reply := f.ingest(t, phone, "vou pagar no pix")
	if reply.Selection != draftflow.SelectReuseAwaiting {
		t.Fatalf("selection: want=%s got=%s", draftflow.SelectReuseAwaiting, reply.Selection)
	}

	draft, err := f.drafts.GetByID(context.Background(), nil, *res.DraftID)
	if err != nil {
		t.Fatalf("reload draft: %v", err)
	}
	if draft.Status != types.DraftStatusOpen {
		t.Fatalf("reuse must reopen the draft, got %s", draft.Status)
	}
	if draft.ReviewReason != nil || draft.TimedOutAt != nil || draft.ClosedAt != nil || draft.CloseReason != nil {
		t.Fatalf("terminal markers must clear on reuse: %+v", draft)
	}
	if draft.CommitDeadlineAt == nil || !draft.CommitDeadlineAt.After(time.Now().UTC().Add(-time.Second)) {
		t.Fatalf("reuse must restart the commit deadline: %v", draft.CommitDeadlineAt)
	}
	agg, _ := draft.Aggregate()
	if !agg.Control.AwaitingCustomerReply {
		t.Fatalf("unsatisfied wait must stay armed")
	}
}

func TestIngestLearnsDefaultAddress(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	p := uniquePhone()
	f.parser.responses["1 cafe, entrega na Rua B 22"] = func() draftflow.ParsedOrder {
		parsed := itemsParse("cafe")
		parsed.Delivery.Address = strPtr("Rua B 22")
		return parsed
	}()

	res := f.ingest(t, p, "1 cafe, entrega na Rua B 22")
	if res.Committed {
		t.Fatalf("draft must still be aggregating")
	}

	// The address is remembered as the customer's default at ingest time,
	// before any order exists.
	var customer types.Customer
	if err := f.db.Where("phone_e164 = ?", phone.E164(p)).First(&customer).Error; err != nil {
		t.Fatalf("load customer: %v", err)
	}
	if customer.DefaultDeliveryAddress == nil || *customer.DefaultDeliveryAddress != "Rua B 22" {
		t.Fatalf("default address not learned: %v", customer.DefaultDeliveryAddress)
	}
}

func TestFinalizeParksAddressOnlyDraft(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()

	res := f.ingest(t, phone, "Rua das Flores 123, Setor Sul")
	if res.DraftID == nil {
		t.Fatalf("an address message should open a draft")
	}
	f.expireDraft(t, *res.DraftID)

	outcome, err := f.engine.FinalizeIfDue(context.Background(), *res.DraftID)
	if err != nil {
		t.Fatalf("FinalizeIfDue: %v", err)
	}
	if outcome != drafttimeout.OutcomeReview {
		t.Fatalf("outcome: want=%s got=%s", drafttimeout.OutcomeReview, outcome)
	}

	draft, err := f.drafts.GetByID(context.Background(), nil, *res.DraftID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if draft.Status != types.DraftStatusReadyForReview {
		t.Fatalf("draft status: want=%s got=%s", types.DraftStatusReadyForReview, draft.Status)
	}
	if draft.ReviewReason == nil || *draft.ReviewReason != draftflow.ReviewNoItemsDetected {
		t.Fatalf("review reason: %v", draft.ReviewReason)
	}
	if draft.OrderID != nil {
		t.Fatalf("no order may exist for an item-free draft")
	}
}

func TestSweepDueResolvesExpiredDrafts(t *testing.T) {
	f := newEngineFixture(t, draftflow.DefaultConfig())
	phone := uniquePhone()
	f.parser.responses["6 ovos"] = itemsParse("ovos")

	res := f.ingest(t, phone, "6 ovos")
	f.expireDraft(t, *res.DraftID)

	n, err := f.engine.SweepDue(context.Background(), 50)
	if err != nil {
		t.Fatalf("SweepDue: %v", err)
	}
	if n < 1 {
		t.Fatalf("sweep should resolve at least the expired draft, got %d", n)
	}

	draft, err := f.drafts.GetByID(context.Background(), nil, *res.DraftID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if draft.Status != types.DraftStatusCommitted {
		t.Fatalf("swept draft status: want=%s got=%s", types.DraftStatusCommitted, draft.Status)
	}
}
