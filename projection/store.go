package projection

import (
	"context"
	"errors"

	"github.com/yeremiapane/restaurant-order-engine/models"
)

// Entry is the "current order" of one user.
type Entry struct {
	UserID       uint             `json:"user_id"`
	OrderID      uint             `json:"order_id"`
	RestaurantID uint             `json:"restaurant_id"`
	OrderType    models.OrderType `json:"order_type"`
	InCheckout   bool             `json:"in_checkout"`
}

// Store keeps the current-order projection. MarkCheckout and Clear only touch
// users whose current order is orderID, so a late event never wipes a newer order.
type Store interface {
	Set(ctx context.Context, userIDs []uint, e Entry) error
	MarkCheckout(ctx context.Context, userIDs []uint, orderID uint) error
	Clear(ctx context.Context, userIDs []uint, orderID uint) error
	Get(ctx context.Context, userID uint) (Entry, bool, error)
}

// Chain writes to every store. Get asks the stores in order and returns the
// first hit, so a cold cache in front falls through to the database.
type Chain []Store

func (c Chain) Set(ctx context.Context, userIDs []uint, e Entry) error {
	var errs []error
	for _, s := range c {
		errs = append(errs, s.Set(ctx, userIDs, e))
	}
	return errors.Join(errs...)
}

func (c Chain) MarkCheckout(ctx context.Context, userIDs []uint, orderID uint) error {
	var errs []error
	for _, s := range c {
		errs = append(errs, s.MarkCheckout(ctx, userIDs, orderID))
	}
	return errors.Join(errs...)
}

func (c Chain) Clear(ctx context.Context, userIDs []uint, orderID uint) error {
	var errs []error
	for _, s := range c {
		errs = append(errs, s.Clear(ctx, userIDs, orderID))
	}
	return errors.Join(errs...)
}

func (c Chain) Get(ctx context.Context, userID uint) (Entry, bool, error) {
	var errs []error
	for _, s := range c {
		e, found, err := s.Get(ctx, userID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if found {
			return e, true, nil
		}
	}
	if len(errs) == len(c) {
		return Entry{}, false, errors.Join(errs...)
	}
	return Entry{}, false, nil
}
