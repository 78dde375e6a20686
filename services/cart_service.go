package services

import (
	"context"

	"github.com/yeremiapane/restaurant-order-engine/models"
	"gorm.io/gorm"
)

// CartService manages the items of open orders.
type CartService struct {
	db     *gorm.DB
	events Publisher
}

func NewCartService(db *gorm.DB, events Publisher) *CartService {
	if events == nil {
		events = NopPublisher{}
	}
	return &CartService{db: db, events: events}
}

type AddOnInput struct {
	FoodAddOnID uint `json:"food_add_on_id" binding:"required"`
	Quantity    int  `json:"quantity"`
}

type AddItemInput struct {
	FoodItemID         uint         `json:"food_item_id" binding:"required"`
	Quantity           int          `json:"quantity"`
	AddOns             []AddOnInput `json:"add_ons"`
	AttributeMatrixIDs []uint       `json:"attribute_matrix_ids"`
}

type EditItemInput struct {
	Quantity           int          `json:"quantity"`
	AddOns             []AddOnInput `json:"add_ons"`
	AttributeMatrixIDs []uint       `json:"attribute_matrix_ids"`
}

// AddItem puts a food item into an open order; the caller becomes its first sharer.
func (s *CartService) AddItem(ctx context.Context, actor Actor, orderID uint, in AddItemInput) (*models.OrderItem, error) {
	if in.Quantity < 1 {
		return nil, ValidationError("quantity must be at least 1")
	}

	var (
		order  models.Order
		item   models.OrderItem
		others []uint
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if order, err = openOrderFor(tx, orderID, actor.UserID); err != nil {
			return err
		}

		var food models.FoodItem
		if err := tx.First(&food, in.FoodItemID).Error; err != nil {
			return notFoundOr(err, "food item", in.FoodItemID)
		}
		if food.RestaurantID != order.RestaurantID {
			return ValidationError("food item %d is not served by restaurant %d", food.ID, order.RestaurantID)
		}

		addOns, attrs, err := resolveSelections(tx, food.ID, in.AddOns, in.AttributeMatrixIDs)
		if err != nil {
			return err
		}

		item = models.OrderItem{
			OrderID:    orderID,
			FoodItemID: food.ID,
			Quantity:   in.Quantity,
			Status:     models.ItemStatusUnconfirmed,
			AddedByID:  actor.UserID,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if err := saveSelections(tx, item.ID, addOns, attrs); err != nil {
			return err
		}
		if err := tx.Create(&models.OrderItemShare{OrderItemID: item.ID, UserID: actor.UserID}).Error; err != nil {
			return err
		}

		if err := withItemRelations(tx).First(&item, item.ID).Error; err != nil {
			return err
		}
		ids, err := participantIDs(tx, orderID)
		others = without(ids, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	ev := orderEvent(EventItemAdded, order, actor.UserID)
	ev.Recipients = others
	ev.Data["order_item_id"] = item.ID
	ev.Data["food_item"] = item.FoodItem.Name
	s.events.Publish(ev)
	return &item, nil
}

// EditItem replaces quantity, add-ons and attributes of an item. Editing a
// confirmed item keeps it confirmed and tells the other participants.
func (s *CartService) EditItem(ctx context.Context, actor Actor, itemID uint, in EditItemInput) (*models.OrderItem, error) {
	if in.Quantity < 1 {
		return nil, ValidationError("quantity must be at least 1")
	}

	var (
		order  models.Order
		item   models.OrderItem
		others []uint
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&item, itemID).Error; err != nil {
			return notFoundOr(err, "order item", itemID)
		}
		var err error
		if order, err = openOrderFor(tx, item.OrderID, actor.UserID); err != nil {
			return err
		}

		addOns, attrs, err := resolveSelections(tx, item.FoodItemID, in.AddOns, in.AttributeMatrixIDs)
		if err != nil {
			return err
		}

		if err := tx.Where("order_item_id = ?", item.ID).Delete(&models.OrderItemAddOn{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_item_id = ?", item.ID).Delete(&models.OrderItemAttributeMatrix{}).Error; err != nil {
			return err
		}
		if err := saveSelections(tx, item.ID, addOns, attrs); err != nil {
			return err
		}
		if err := tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).Update("quantity", in.Quantity).Error; err != nil {
			return err
		}

		if err := withItemRelations(tx).First(&item, item.ID).Error; err != nil {
			return err
		}
		ids, err := participantIDs(tx, item.OrderID)
		others = without(ids, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	kind := EventItemUpdated
	if item.Status == models.ItemStatusConfirmed {
		kind = EventOrderEdited
	}
	ev := orderEvent(kind, order, actor.UserID)
	ev.Recipients = others
	ev.Data["order_item_id"] = item.ID
	s.events.Publish(ev)
	return &item, nil
}

// DeleteItem removes an unconfirmed item.
func (s *CartService) DeleteItem(ctx context.Context, actor Actor, itemID uint) error {
	var (
		order  models.Order
		item   models.OrderItem
		others []uint
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&item, itemID).Error; err != nil {
			return notFoundOr(err, "order item", itemID)
		}
		// confirmed items stay whoever asks
		if item.Status == models.ItemStatusConfirmed {
			return ConflictError("item %d is confirmed and cannot be deleted", itemID)
		}
		var err error
		if order, err = openOrderFor(tx, item.OrderID, actor.UserID); err != nil {
			return err
		}
		if err := deleteItem(tx, item.ID); err != nil {
			return err
		}
		ids, err := participantIDs(tx, item.OrderID)
		others = without(ids, actor.UserID)
		return err
	})
	if err != nil {
		return err
	}

	ev := orderEvent(EventItemRemoved, order, actor.UserID)
	ev.Recipients = others
	ev.Data["order_item_id"] = itemID
	s.events.Publish(ev)
	return nil
}

// openOrderFor loads an order the user participates in and that is still open.
func openOrderFor(tx *gorm.DB, orderID, userID uint) (models.Order, error) {
	order, err := loadOrder(tx, orderID)
	if err != nil {
		return order, err
	}
	if err := requireParticipant(tx, orderID, userID); err != nil {
		return order, err
	}
	if order.Status != models.OrderStatusOpen {
		return order, ConflictError("order %d is %s", orderID, order.Status)
	}
	return order, nil
}

// resolveSelections checks add-ons and attributes against the food item.
// Repeated ids keep the first occurrence.
func resolveSelections(tx *gorm.DB, foodItemID uint, addOns []AddOnInput, attrIDs []uint) ([]models.OrderItemAddOn, []models.OrderItemAttributeMatrix, error) {
	seen := make(map[uint]bool)
	var outAddOns []models.OrderItemAddOn
	for _, a := range addOns {
		if seen[a.FoodAddOnID] {
			continue
		}
		seen[a.FoodAddOnID] = true
		qty := a.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return nil, nil, ValidationError("add-on %d quantity must be positive", a.FoodAddOnID)
		}
		outAddOns = append(outAddOns, models.OrderItemAddOn{FoodAddOnID: a.FoodAddOnID, Quantity: qty})
	}
	if len(outAddOns) > 0 {
		ids := make([]uint, 0, len(outAddOns))
		for _, a := range outAddOns {
			ids = append(ids, a.FoodAddOnID)
		}
		var n int64
		if err := tx.Model(&models.FoodAddOn{}).Where("id IN ? AND food_item_id = ?", ids, foodItemID).Count(&n).Error; err != nil {
			return nil, nil, err
		}
		if int(n) != len(ids) {
			return nil, nil, ValidationError("add-ons %v do not all belong to food item %d", ids, foodItemID)
		}
	}

	seen = make(map[uint]bool)
	var outAttrs []models.OrderItemAttributeMatrix
	var attrList []uint
	for _, id := range attrIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		attrList = append(attrList, id)
		outAttrs = append(outAttrs, models.OrderItemAttributeMatrix{FoodAttributeMatrixID: id})
	}
	if len(attrList) > 0 {
		var n int64
		if err := tx.Model(&models.FoodAttributeMatrix{}).Where("id IN ? AND food_item_id = ?", attrList, foodItemID).Count(&n).Error; err != nil {
			return nil, nil, err
		}
		if int(n) != len(attrList) {
			return nil, nil, ValidationError("attributes %v do not all belong to food item %d", attrList, foodItemID)
		}
	}
	return outAddOns, outAttrs, nil
}

func saveSelections(tx *gorm.DB, itemID uint, addOns []models.OrderItemAddOn, attrs []models.OrderItemAttributeMatrix) error {
	for i := range addOns {
		addOns[i].OrderItemID = itemID
	}
	for i := range attrs {
		attrs[i].OrderItemID = itemID
	}
	if len(addOns) > 0 {
		if err := tx.Create(&addOns).Error; err != nil {
			return err
		}
	}
	if len(attrs) > 0 {
		if err := tx.Create(&attrs).Error; err != nil {
			return err
		}
	}
	return nil
}

// deleteItem removes an item and its children explicitly; sqlite does not enforce cascades by default.
func deleteItem(tx *gorm.DB, itemID uint) error {
	for _, child := range []interface{}{
		&models.OrderItemAddOn{},
		&models.OrderItemAttributeMatrix{},
		&models.OrderItemShare{},
		&models.OrderItemInvite{},
	} {
		if err := tx.Where("order_item_id = ?", itemID).Delete(child).Error; err != nil {
			return err
		}
	}
	return tx.Delete(&models.OrderItem{}, itemID).Error
}

func withItemRelations(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("FoodItem").
		Preload("AddOns.FoodAddOn").
		Preload("AttributeMatrices.FoodAttributeMatrix").
		Preload("Shares")
}
