package orders

import (
	"context"
	"testing"

	"github.com/mercadomm/orders-backend/internal/data/repos/testutil"
	types "github.com/mercadomm/orders-backend/internal/domain"
)

func TestInboundMessageRepoDedup(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	customers := NewCustomerRepo(db, testutil.Logger(t))
	repo := NewInboundMessageRepo(db, testutil.Logger(t))
	ctx := context.Background()

	customer, err := customers.GetOrCreateByPhone(ctx, tx, "+5561988776655", "João")
	if err != nil {
		t.Fatalf("GetOrCreateByPhone: %v", err)
	}

	first, created, err := repo.CreateIfAbsent(ctx, tx, &types.InboundMessage{
		CustomerID:        customer.ID,
		ProviderMessageID: "wamid.dedup-1",
		Text:              "2kg de tomate",
	})
	if err != nil {
		t.Fatalf("CreateIfAbsent: %v", err)
	}
	if !created {
		t.Fatal("CreateIfAbsent: expected first insert to create")
	}

	replay, created, err := repo.CreateIfAbsent(ctx, tx, &types.InboundMessage{
		CustomerID:        customer.ID,
		ProviderMessageID: "wamid.dedup-1",
		Text:              "2kg de tomate",
	})
	if err != nil {
		t.Fatalf("CreateIfAbsent (replay): %v", err)
	}
	if created {
		t.Fatal("CreateIfAbsent: replay must not create")
	}
	if replay.ID != first.ID {
		t.Fatalf("CreateIfAbsent: replay returned %s, want %s", replay.ID, first.ID)
	}

	got, err := repo.GetByProviderID(ctx, tx, "wamid.dedup-1")
	if err != nil {
		t.Fatalf("GetByProviderID: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("GetByProviderID: unexpected row: %+v", got)
	}

	listed, err := repo.ListByCustomer(ctx, tx, customer.ID, 10)
	if err != nil {
		t.Fatalf("ListByCustomer: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("ListByCustomer: got %d rows, want 1", len(listed))
	}
}
