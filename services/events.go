package services

import (
	"github.com/yeremiapane/restaurant-order-engine/models"
)

type EventKind string

const (
	EventOrderCreated             EventKind = "order_created"
	EventParticipantLeft          EventKind = "participant_left"
	EventOrderCanceled            EventKind = "order_canceled"
	EventOrderConfirmed           EventKind = "order_confirmed"
	EventOrderUpdated             EventKind = "order_updated"
	EventItemsConfirmed           EventKind = "items_confirmed"
	EventItemAdded                EventKind = "item_added"
	EventItemUpdated              EventKind = "item_updated"
	EventOrderEdited              EventKind = "order_edited"
	EventItemRemoved              EventKind = "item_removed"
	EventOrderInviteSent          EventKind = "order_invite_sent"
	EventOrderInviteAccepted      EventKind = "order_invite_accepted"
	EventOrderInviteRejected      EventKind = "order_invite_rejected"
	EventItemInviteSent           EventKind = "item_invite_sent"
	EventItemInviteAccepted       EventKind = "item_invite_accepted"
	EventItemInviteRejected       EventKind = "item_invite_rejected"
	EventItemSharesAvailable      EventKind = "item_shares_available"
	EventCheckoutRequested        EventKind = "checkout_requested"
	EventSingleBillPaid           EventKind = "single_bill_paid"
	EventAllBillsPaid             EventKind = "all_bills_paid"
	EventPickupAwaitingAcceptance EventKind = "pickup_awaiting_acceptance"
	EventOrderAccepted            EventKind = "order_accepted"
	EventOrderRejected            EventKind = "order_rejected"
	EventOrderDelivered           EventKind = "order_delivered"
)

// ProjectionOp says how an event changes the "current order" projection of Subjects.
type ProjectionOp int

const (
	ProjectionNone ProjectionOp = iota
	ProjectionSet
	ProjectionCheckout
	ProjectionClear
)

// Event is a committed state change. Services return them after commit and
// the dispatcher turns them into projection updates and notifications.
type Event struct {
	Kind         EventKind
	OrderID      uint
	RestaurantID uint
	OrderType    models.OrderType
	ActorID      uint

	// Recipients are notified.
	Recipients []uint
	// Subjects have their current-order projection changed by Projection.
	Subjects   []uint
	Projection ProjectionOp

	Data map[string]interface{}
}

// Publisher receives events after the transaction that produced them has committed.
type Publisher interface {
	Publish(events ...Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(...Event) {}

func orderEvent(kind EventKind, order models.Order, actorID uint) Event {
	return Event{
		Kind:         kind,
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID,
		OrderType:    order.Type,
		ActorID:      actorID,
		Data:         map[string]interface{}{},
	}
}

// without returns ids minus skip, preserving order.
func without(ids []uint, skip uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}
