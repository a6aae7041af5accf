package realtime

import (
	"testing"
	"time"

	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan Message, timeout time.Duration) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for realtime message")
	}
	return Message{}
}

func TestHubBroadcastOrderingAndReconnect(t *testing.T) {
	hub := NewHub(mustTestLogger(t))

	clientA := hub.NewClient()
	hub.Subscribe(clientA, ChannelDrafts)

	first := Message{Channel: ChannelDrafts, Event: EventDraftOpened, Data: map[string]any{"seq": 1}}
	second := Message{Channel: ChannelDrafts, Event: EventDraftUpdated, Data: map[string]any{"seq": 2}}
	hub.Broadcast(first)
	hub.Broadcast(second)

	gotFirst := recvMessage(t, clientA.Outbound, time.Second)
	gotSecond := recvMessage(t, clientA.Outbound, time.Second)
	if gotFirst.Event != EventDraftOpened {
		t.Fatalf("first event: want=%s got=%s", EventDraftOpened, gotFirst.Event)
	}
	if gotSecond.Event != EventDraftUpdated {
		t.Fatalf("second event: want=%s got=%s", EventDraftUpdated, gotSecond.Event)
	}

	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}

	clientB := hub.NewClient()
	hub.Subscribe(clientB, ChannelDrafts)
	reconnect := Message{Channel: ChannelDrafts, Event: EventDraftCommitted, Data: map[string]any{"seq": 3}}
	hub.Broadcast(reconnect)
	gotReconnect := recvMessage(t, clientB.Outbound, time.Second)
	if gotReconnect.Event != EventDraftCommitted {
		t.Fatalf("reconnect event: want=%s got=%s", EventDraftCommitted, gotReconnect.Event)
	}
}

func TestHubChannelIsolation(t *testing.T) {
	hub := NewHub(mustTestLogger(t))

	draftClient := hub.NewClient()
	hub.Subscribe(draftClient, ChannelDrafts)
	orderClient := hub.NewClient()
	hub.Subscribe(orderClient, ChannelOrders)

	hub.Broadcast(Message{Channel: ChannelOrders, Event: EventOrderCreated})

	got := recvMessage(t, orderClient.Outbound, time.Second)
	if got.Event != EventOrderCreated {
		t.Fatalf("order event: want=%s got=%s", EventOrderCreated, got.Event)
	}
	select {
	case msg := <-draftClient.Outbound:
		t.Fatalf("draft subscriber received order event: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
