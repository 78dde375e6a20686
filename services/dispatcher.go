package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-order-engine/notification"
	"github.com/yeremiapane/restaurant-order-engine/projection"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

const handleTimeout = 10 * time.Second

// Dispatcher applies committed events to the current-order projection and
// notifies their recipients. Events of one order always go to the same
// worker, so they are handled in publish order.
type Dispatcher struct {
	store    projection.Store
	notifier notification.Notifier

	queues []chan Event
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewDispatcher(store projection.Store, notifier notification.Notifier, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &Dispatcher{store: store, notifier: notifier}
	for i := 0; i < workers; i++ {
		d.queues = append(d.queues, make(chan Event, queueSize))
	}
	return d
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i, q := range d.queues {
		d.wg.Add(1)
		go d.work(i, q)
	}
	utils.InfoLogger.Infof("Event dispatcher started with %d workers", len(d.queues))
}

// Stop refuses new events and waits for queued ones to be handled.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
	utils.InfoLogger.Info("Event dispatcher stopped")
}

// Publish enqueues events without blocking. A full queue drops the event.
func (d *Dispatcher) Publish(events ...Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range events {
		if d.closed {
			logDropped(e, "dispatcher stopped")
			continue
		}
		q := d.queues[int(e.OrderID%uint(len(d.queues)))]
		select {
		case q <- e:
		default:
			logDropped(e, "queue full")
		}
	}
}

func (d *Dispatcher) work(id int, q <-chan Event) {
	defer d.wg.Done()
	for e := range q {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		if err := d.Handle(ctx, e); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"worker":   id,
				"event":    e.Kind,
				"order_id": e.OrderID,
			}).Errorf("event handling failed: %v", err)
		}
		cancel()
	}
}

// Handle applies one event synchronously.
func (d *Dispatcher) Handle(ctx context.Context, e Event) error {
	var errs []error
	if d.store != nil && len(e.Subjects) > 0 {
		var err error
		switch e.Projection {
		case ProjectionSet:
			err = d.store.Set(ctx, e.Subjects, projection.Entry{
				OrderID:      e.OrderID,
				RestaurantID: e.RestaurantID,
				OrderType:    e.OrderType,
			})
		case ProjectionCheckout:
			err = d.store.MarkCheckout(ctx, e.Subjects, e.OrderID)
		case ProjectionClear:
			err = d.store.Clear(ctx, e.Subjects, e.OrderID)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("projection: %w", err))
		}
	}

	if d.notifier == nil {
		return errors.Join(errs...)
	}
	title, body := describe(e)
	seen := make(map[uint]bool, len(e.Recipients))
	for _, userID := range e.Recipients {
		if userID == 0 || seen[userID] {
			continue
		}
		seen[userID] = true
		data := map[string]interface{}{"order_id": e.OrderID}
		for k, v := range e.Data {
			data[k] = v
		}
		err := d.notifier.Notify(ctx, notification.Message{
			UserID:    userID,
			Action:    string(e.Kind),
			Title:     title,
			Body:      body,
			Data:      data,
			CreatedAt: time.Now(),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("notify user %d: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

func logDropped(e Event, reason string) {
	utils.ErrorLogger.WithFields(logrus.Fields{
		"event":    e.Kind,
		"order_id": e.OrderID,
	}).Errorf("event dropped: %s", reason)
}

// describe renders the user-facing title and body of an event.
func describe(e Event) (string, string) {
	id := e.OrderID
	switch e.Kind {
	case EventOrderCreated:
		return "Order created", fmt.Sprintf("Order #%d is open.", id)
	case EventParticipantLeft:
		return "Participant left", fmt.Sprintf("A participant left order #%d.", id)
	case EventOrderCanceled:
		return "Order canceled", fmt.Sprintf("Order #%d was canceled.", id)
	case EventOrderConfirmed:
		return "New order", fmt.Sprintf("Order #%d was confirmed and is ready to prepare.", id)
	case EventOrderUpdated:
		return "Order updated", fmt.Sprintf("New items were confirmed on order #%d.", id)
	case EventItemsConfirmed:
		return "Items confirmed", fmt.Sprintf("Items on order #%d were confirmed.", id)
	case EventItemAdded:
		if name, ok := e.Data["food_item"].(string); ok && name != "" {
			return "Item added", fmt.Sprintf("%s was added to order #%d.", name, id)
		}
		return "Item added", fmt.Sprintf("An item was added to order #%d.", id)
	case EventItemUpdated:
		return "Item updated", fmt.Sprintf("An item on order #%d was changed.", id)
	case EventOrderEdited:
		return "Order edited", fmt.Sprintf("A confirmed item on order #%d was changed.", id)
	case EventItemRemoved:
		return "Item removed", fmt.Sprintf("An item was removed from order #%d.", id)
	case EventOrderInviteSent:
		return "Order invitation", fmt.Sprintf("You were invited to join order #%d.", id)
	case EventOrderInviteAccepted:
		return "New participant", fmt.Sprintf("Someone joined order #%d.", id)
	case EventOrderInviteRejected:
		return "Invitation declined", fmt.Sprintf("Your invitation to order #%d was declined.", id)
	case EventItemInviteSent:
		return "Share request", fmt.Sprintf("You were asked to share an item on order #%d.", id)
	case EventItemInviteAccepted:
		return "Share accepted", fmt.Sprintf("Your share request on order #%d was accepted.", id)
	case EventItemInviteRejected:
		return "Share declined", fmt.Sprintf("Your share request on order #%d was declined.", id)
	case EventItemSharesAvailable:
		return "Pending share requests", fmt.Sprintf("You have share requests waiting on order #%d.", id)
	case EventCheckoutRequested:
		return "Checkout", fmt.Sprintf("Order #%d moved to checkout. Please pay your bill.", id)
	case EventSingleBillPaid:
		if amount, ok := e.Data["amount"].(string); ok {
			return "Bill paid", fmt.Sprintf("A payment of %s was made on order #%d.", amount, id)
		}
		return "Bill paid", fmt.Sprintf("A bill on order #%d was paid.", id)
	case EventAllBillsPaid:
		return "Order paid", fmt.Sprintf("All bills of order #%d are paid.", id)
	case EventPickupAwaitingAcceptance:
		return "Pickup order paid", fmt.Sprintf("Pickup order #%d is paid and waits for your decision.", id)
	case EventOrderAccepted:
		return "Order accepted", fmt.Sprintf("The restaurant accepted order #%d.", id)
	case EventOrderRejected:
		return "Order rejected", fmt.Sprintf("The restaurant rejected order #%d.", id)
	case EventOrderDelivered:
		return "Order delivered", fmt.Sprintf("Order #%d was delivered. Enjoy your meal!", id)
	}
	return "Order update", fmt.Sprintf("Order #%d changed.", id)
}
