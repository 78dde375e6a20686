package services

import (
	"context"
	"fmt"

	"github.com/yeremiapane/restaurant-order-engine/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Actor is the authenticated caller of a core operation.
type Actor struct {
	UserID uint
	Role   models.Role
}

func (a Actor) IsCustomer() bool { return a.Role == models.RoleCustomer }

func (a Actor) IsStaff() bool { return a.Role == models.RoleStaff }

// inTx runs fn in a database transaction, rolling back on error or panic.
func inTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isParticipant(tx *gorm.DB, orderID, userID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.OrderParticipant{}).
		Where("order_id = ? AND user_id = ?", orderID, userID).
		Count(&n).Error
	return n > 0, err
}

func requireParticipant(tx *gorm.DB, orderID, userID uint) error {
	ok, err := isParticipant(tx, orderID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return PermissionError("user %d is not a participant of order %d", userID, orderID)
	}
	return nil
}

func participantIDs(tx *gorm.DB, orderID uint) ([]uint, error) {
	var ids []uint
	err := tx.Model(&models.OrderParticipant{}).
		Where("order_id = ?", orderID).
		Order("id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func loadOrder(tx *gorm.DB, orderID uint) (models.Order, error) {
	var order models.Order
	if err := tx.Preload("Restaurant").First(&order, orderID).Error; err != nil {
		return order, notFoundOr(err, "order", orderID)
	}
	return order, nil
}

// forUpdate makes a read take row locks until the transaction ends. Drivers
// without row locks (sqlite) drop the clause.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockOrder loads the order and holds its row lock, so operations that decide
// on the state of the whole order run one at a time.
func lockOrder(tx *gorm.DB, orderID uint) (models.Order, error) {
	var order models.Order
	if err := forUpdate(tx).Preload("Restaurant").First(&order, orderID).Error; err != nil {
		return order, notFoundOr(err, "order", orderID)
	}
	return order, nil
}

// withItems preloads everything the cost functions read.
func withItems(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id") }).
		Preload("Items.FoodItem").
		Preload("Items.AddOns.FoodAddOn").
		Preload("Items.AttributeMatrices.FoodAttributeMatrix").
		Preload("Items.Shares")
}

// requireRestaurantActor allows the restaurant that owns the order, or staff.
func requireRestaurantActor(actor Actor, order models.Order) error {
	if actor.IsStaff() {
		return nil
	}
	if actor.Role == models.RoleRestaurant && order.Restaurant.UserID == actor.UserID {
		return nil
	}
	return PermissionError("user %d may not act for restaurant %d", actor.UserID, order.RestaurantID)
}
