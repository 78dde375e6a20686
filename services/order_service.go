package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-order-engine/models"
	"github.com/yeremiapane/restaurant-order-engine/utils"
	"gorm.io/gorm"
)

// OrderService drives the order state machine.
type OrderService struct {
	db      *gorm.DB
	events  Publisher
	gateway PaymentGateway
}

func NewOrderService(db *gorm.DB, events Publisher, gateway PaymentGateway) *OrderService {
	if events == nil {
		events = NopPublisher{}
	}
	return &OrderService{db: db, events: events, gateway: gateway}
}

type CreateOrderInput struct {
	Type         models.OrderType `json:"type" binding:"required"`
	RestaurantID uint             `json:"restaurant_id" binding:"required"`
	TableID      *uint            `json:"table_id"`
}

// CreateOrder opens an order with the caller as its first participant.
func (s *OrderService) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*models.Order, error) {
	if !actor.IsCustomer() {
		return nil, PermissionError("only customers can create orders")
	}
	if !in.Type.Valid() {
		return nil, ValidationError("unknown order type %q", in.Type)
	}

	var order models.Order
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		var restaurant models.Restaurant
		if err := tx.First(&restaurant, in.RestaurantID).Error; err != nil {
			return notFoundOr(err, "restaurant", in.RestaurantID)
		}

		switch in.Type {
		case models.OrderTypeInHouse:
			if in.TableID == nil {
				return ValidationError("in-house orders need a table")
			}
			var table models.RestaurantTable
			err := tx.Where("id = ? AND restaurant_id = ?", *in.TableID, restaurant.ID).First(&table).Error
			if err != nil {
				return notFoundOr(err, "table", *in.TableID)
			}
			if !table.IsActive {
				return ValidationError("table %d is not active", table.ID)
			}
		case models.OrderTypePickup:
			if in.TableID != nil {
				return ValidationError("pickup orders cannot have a table")
			}
		}

		order = models.Order{
			Type:               in.Type,
			RestaurantID:       restaurant.ID,
			TableID:            in.TableID,
			CreatedByID:        actor.UserID,
			Status:             models.OrderStatusOpen,
			RestaurantDecision: models.DecisionUndecided,
			TaxPercentage:      restaurant.TaxPercentage,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderParticipant{OrderID: order.ID, UserID: actor.UserID}).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{"order_id": order.ID, "type": order.Type, "user_id": actor.UserID}).Info("order created")

	ev := orderEvent(EventOrderCreated, order, actor.UserID)
	ev.Subjects = []uint{actor.UserID}
	ev.Projection = ProjectionSet
	s.events.Publish(ev)
	return &order, nil
}

// OrderDetail is an order with its items and the caller's cost summary.
type OrderDetail struct {
	Order   models.Order `json:"order"`
	Summary OrderSummary `json:"summary"`
}

// GetOrder is visible to participants, the owning restaurant and staff.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID uint) (*OrderDetail, error) {
	db := s.db.WithContext(ctx)
	var order models.Order
	err := withItems(db).Preload("Participants").Preload("Restaurant").First(&order, orderID).Error
	if err != nil {
		return nil, notFoundOr(err, "order", orderID)
	}

	if err := requireRestaurantActor(actor, order); err != nil {
		if err := requireParticipant(db, orderID, actor.UserID); err != nil {
			return nil, err
		}
	}
	return &OrderDetail{Order: order, Summary: Summarize(order, actor.UserID)}, nil
}

// LeaveOrder removes the caller from an open, unconfirmed order. The last
// participant to leave cancels the order.
func (s *OrderService) LeaveOrder(ctx context.Context, actor Actor, orderID uint) error {
	var (
		order     models.Order
		remaining []uint
		canceled  bool
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		if err := requireParticipant(tx, orderID, actor.UserID); err != nil {
			return err
		}
		if order.Status != models.OrderStatusOpen {
			return ConflictError("order %d is %s", orderID, order.Status)
		}
		if order.Confirmed {
			return ConflictError("order %d is already confirmed", orderID)
		}

		ids, err := participantIDs(tx, orderID)
		if err != nil {
			return err
		}
		if err := releaseShares(tx, orderID, actor.UserID, without(ids, actor.UserID)); err != nil {
			return err
		}

		res := tx.Where("order_id = ? AND user_id = ?", orderID, actor.UserID).Delete(&models.OrderParticipant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ConflictError("user %d already left order %d", actor.UserID, orderID)
		}

		if remaining, err = participantIDs(tx, orderID); err != nil {
			return err
		}
		if len(remaining) == 0 {
			canceled = true
			return tx.Model(&models.Order{}).
				Where("id = ? AND status = ?", orderID, models.OrderStatusOpen).
				Update("status", models.OrderStatusCanceled).Error
		}
		return nil
	})
	if err != nil {
		return err
	}

	ev := orderEvent(EventParticipantLeft, order, actor.UserID)
	ev.Recipients = remaining
	ev.Subjects = []uint{actor.UserID}
	ev.Projection = ProjectionClear
	events := []Event{ev}
	if canceled {
		events = append(events, orderEvent(EventOrderCanceled, order, actor.UserID))
		utils.InfoLogger.WithField("order_id", orderID).Info("order canceled, last participant left")
	}
	s.events.Publish(events...)
	return nil
}

// releaseShares drops the user's stake in every item of the order. Unconfirmed
// items nobody shares any more are removed. A confirmed item cannot be taken
// back, so it passes to the heirs; with no heirs the order is about to be
// canceled and the item stays as it is.
func releaseShares(tx *gorm.DB, orderID, userID uint, heirs []uint) error {
	itemIDs := tx.Model(&models.OrderItem{}).Select("id").Where("order_id = ?", orderID)
	if err := tx.Where("user_id = ? AND order_item_id IN (?)", userID, itemIDs).Delete(&models.OrderItemShare{}).Error; err != nil {
		return err
	}

	var orphans []models.OrderItem
	err := tx.Where("order_id = ? AND NOT EXISTS (SELECT 1 FROM order_item_shares s WHERE s.order_item_id = order_items.id)", orderID).
		Find(&orphans).Error
	if err != nil {
		return err
	}
	for _, item := range orphans {
		if item.Status != models.ItemStatusConfirmed {
			if err := deleteItem(tx, item.ID); err != nil {
				return err
			}
			continue
		}
		if len(heirs) == 0 {
			continue
		}
		shares := make([]models.OrderItemShare, 0, len(heirs))
		for _, heir := range heirs {
			shares = append(shares, models.OrderItemShare{OrderItemID: item.ID, UserID: heir})
		}
		if err := tx.Create(&shares).Error; err != nil {
			return err
		}
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id":      orderID,
			"order_item_id": item.ID,
			"left_by":       userID,
		}).Info("confirmed item passed to remaining participants")
	}
	return nil
}

// ConfirmCurrentItems moves every unconfirmed item of the order to confirmed.
func (s *OrderService) ConfirmCurrentItems(ctx context.Context, actor Actor, orderID uint) (int64, error) {
	var (
		order        models.Order
		confirmed    int64
		firstConfirm bool
		others       []uint
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		if err := requireParticipant(tx, orderID, actor.UserID); err != nil {
			return err
		}
		if order.Status != models.OrderStatusOpen {
			return ConflictError("order %d is %s", orderID, order.Status)
		}

		res := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND status = ?", orderID, models.ItemStatusUnconfirmed).
			Update("status", models.ItemStatusConfirmed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ValidationError("order %d has no unconfirmed items", orderID)
		}
		confirmed = res.RowsAffected

		if order.Type == models.OrderTypeInHouse {
			res := tx.Model(&models.Order{}).Where("id = ? AND confirmed = ?", orderID, false).Update("confirmed", true)
			if res.Error != nil {
				return res.Error
			}
			firstConfirm = res.RowsAffected == 1
		}

		ids, err := participantIDs(tx, orderID)
		others = without(ids, actor.UserID)
		return err
	})
	if err != nil {
		return 0, err
	}

	var ev Event
	switch {
	case order.Type == models.OrderTypePickup:
		ev = orderEvent(EventItemsConfirmed, order, actor.UserID)
		ev.Recipients = others
	case firstConfirm:
		ev = orderEvent(EventOrderConfirmed, order, actor.UserID)
		ev.Recipients = []uint{order.Restaurant.UserID}
	default:
		ev = orderEvent(EventOrderUpdated, order, actor.UserID)
		ev.Recipients = []uint{order.Restaurant.UserID}
	}
	ev.Data["confirmed_items"] = confirmed
	s.events.Publish(ev)
	return confirmed, nil
}

// AcceptOrder records the restaurant's decision on a paid pickup order.
// Acceptance captures every authorized payment before anything is committed
// on the order; a failed capture leaves the order undecided and retryable.
func (s *OrderService) AcceptOrder(ctx context.Context, actor Actor, orderID uint, sure bool) (*models.Order, error) {
	db := s.db.WithContext(ctx)
	order, err := loadOrder(db, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireRestaurantActor(actor, order); err != nil {
		return nil, err
	}
	if order.Type != models.OrderTypePickup {
		return nil, ValidationError("only pickup orders are accepted or rejected")
	}
	if order.RestaurantDecision != models.DecisionUndecided {
		return nil, ConflictError("order %d was already %s", orderID, order.RestaurantDecision)
	}

	if !sure {
		return s.rejectOrder(ctx, actor, order)
	}

	if order.Status != models.OrderStatusCheckout || !order.PaymentCompleted {
		return nil, ValidationError("order %d is not fully paid", orderID)
	}

	if err := s.captureAuthorized(ctx, orderID); err != nil {
		return nil, err
	}

	var participants []uint
	err = inTx(ctx, s.db, func(tx *gorm.DB) error {
		var held int64
		if err := tx.Model(&models.Transaction{}).
			Where("order_id = ? AND status = ?", orderID, models.PaymentStatusAuthorized).
			Count(&held).Error; err != nil {
			return err
		}
		if held > 0 {
			return ConflictError("order %d still has %d uncaptured payments", orderID, held)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND restaurant_decision = ? AND status = ?", orderID, models.DecisionUndecided, models.OrderStatusCheckout).
			Updates(map[string]interface{}{
				"restaurant_decision": models.DecisionAccepted,
				"status":              models.OrderStatusCompleted,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ConflictError("order %d was decided concurrently", orderID)
		}

		if _, err := postOrderEarning(tx, order); err != nil {
			return err
		}

		var err error
		participants, err = participantIDs(tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	order.RestaurantDecision = models.DecisionAccepted
	order.Status = models.OrderStatusCompleted
	utils.InfoLogger.WithFields(logrus.Fields{"order_id": orderID, "restaurant_id": order.RestaurantID}).Info("pickup order accepted")

	ev := orderEvent(EventOrderAccepted, order, actor.UserID)
	ev.Recipients = participants
	ev.Subjects = participants
	ev.Projection = ProjectionClear
	s.events.Publish(ev)
	return &order, nil
}

// captureAuthorized captures held payments one by one. Each captured
// transaction is settled immediately so a retry never captures it twice.
func (s *OrderService) captureAuthorized(ctx context.Context, orderID uint) error {
	var held []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusAuthorized).
		Order("id").Find(&held).Error; err != nil {
		return err
	}
	if len(held) > 0 && s.gateway == nil {
		return ExternalServiceError(nil, "payment gateway is not configured")
	}

	for _, t := range held {
		if t.GatewayTransactionID == nil {
			return ConflictError("transaction %d has no gateway transaction id", t.ID)
		}
		if err := s.gateway.Capture(ctx, *t.GatewayTransactionID, t.Amount); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{"order_id": orderID, "transaction_id": t.ID}).Errorf("capture failed: %v", err)
			return ExternalServiceError(err, "capture of transaction %d failed", t.ID)
		}
		err := s.db.WithContext(ctx).Model(&models.Transaction{}).
			Where("id = ? AND status = ?", t.ID, models.PaymentStatusAuthorized).
			Update("status", models.PaymentStatusSuccessful).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderService) rejectOrder(ctx context.Context, actor Actor, order models.Order) (*models.Order, error) {
	var participants []uint
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND restaurant_decision = ? AND status IN ?", order.ID, models.DecisionUndecided,
				[]models.OrderStatus{models.OrderStatusOpen, models.OrderStatusCheckout}).
			Updates(map[string]interface{}{
				"restaurant_decision": models.DecisionRejected,
				"status":              models.OrderStatusCanceled,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ConflictError("order %d can no longer be rejected", order.ID)
		}
		var err error
		participants, err = participantIDs(tx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	order.RestaurantDecision = models.DecisionRejected
	order.Status = models.OrderStatusCanceled
	utils.InfoLogger.WithField("order_id", order.ID).Info("pickup order rejected")

	ev := orderEvent(EventOrderRejected, order, actor.UserID)
	ev.Recipients = participants
	ev.Subjects = participants
	ev.Projection = ProjectionClear
	s.events.Publish(ev)
	return &order, nil
}

// DeliverOrder stamps a completed order as handed over to the customers.
func (s *OrderService) DeliverOrder(ctx context.Context, actor Actor, orderID uint) (*models.Order, error) {
	var (
		order        models.Order
		participants []uint
	)
	now := time.Now()
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if order, err = loadOrder(tx, orderID); err != nil {
			return err
		}
		if err := requireRestaurantActor(actor, order); err != nil {
			return err
		}
		if order.Status != models.OrderStatusCompleted {
			return ConflictError("order %d is %s, not completed", orderID, order.Status)
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND delivered_at IS NULL", orderID).
			Update("delivered_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ConflictError("order %d was already delivered", orderID)
		}
		participants, err = participantIDs(tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	order.DeliveredAt = &now
	ev := orderEvent(EventOrderDelivered, order, actor.UserID)
	ev.Recipients = participants
	s.events.Publish(ev)
	return &order, nil
}
