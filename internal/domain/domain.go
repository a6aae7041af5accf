package domain

import (
	"github.com/mercadomm/orders-backend/internal/domain/orders"
)

type Customer = orders.Customer
type InboundMessage = orders.InboundMessage
type OrderDraft = orders.OrderDraft
type DraftMessage = orders.DraftMessage
type Order = orders.Order
type OrderItem = orders.OrderItem
type OrderStatusHistory = orders.OrderStatusHistory

type Aggregate = orders.Aggregate
type AggregateItem = orders.AggregateItem
type AggregateDelivery = orders.AggregateDelivery
type AggregateFlags = orders.AggregateFlags
type AggregateControl = orders.AggregateControl
type AggregateMessage = orders.AggregateMessage

const (
	DraftStatusOpen           = orders.DraftStatusOpen
	DraftStatusReadyForReview = orders.DraftStatusReadyForReview
	DraftStatusCommitted      = orders.DraftStatusCommitted
	DraftStatusCanceled       = orders.DraftStatusCanceled
	DraftStatusExpired        = orders.DraftStatusExpired

	CloseReasonTimeout     = orders.CloseReasonTimeout
	CloseReasonManual      = orders.CloseReasonManual
	CloseReasonEarlySignal = orders.CloseReasonEarlySignal

	OrderStatusNew            = orders.OrderStatusNew
	OrderStatusInPicking      = orders.OrderStatusInPicking
	OrderStatusWaitingCourier = orders.OrderStatusWaitingCourier
	OrderStatusOutForDelivery = orders.OrderStatusOutForDelivery
	OrderStatusCompleted      = orders.OrderStatusCompleted
	OrderStatusCanceled       = orders.OrderStatusCanceled

	ActorSystemDraft     = orders.ActorSystemDraft
	ActorAdminCancel     = orders.ActorAdminCancel
	ActorAdminMoveStatus = orders.ActorAdminMoveStatus

	IntentOrder    = orders.IntentOrder
	IntentNotOrder = orders.IntentNotOrder
	IntentUnclear  = orders.IntentUnclear

	ReplyTypeAddress = orders.ReplyTypeAddress
	ReplyTypePayment = orders.ReplyTypePayment

	MessageDirectionIn  = orders.MessageDirectionIn
	MessageDirectionOut = orders.MessageDirectionOut
)

// CanTransition reports whether from -> to is a legal forward status move.
func CanTransition(from, to string) bool { return orders.CanTransition(from, to) }

// IsAmendable reports whether an order can still absorb draft amendments.
func IsAmendable(status string) bool { return orders.IsAmendable(status) }
