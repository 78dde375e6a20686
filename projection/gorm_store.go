package projection

import (
	"context"
	"errors"

	"github.com/yeremiapane/restaurant-order-engine/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps the projection in the active_orders table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Set(ctx context.Context, userIDs []uint, e Entry) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.ActiveOrder, 0, len(userIDs))
	for _, id := range userIDs {
		orderID, restaurantID := e.OrderID, e.RestaurantID
		rows = append(rows, models.ActiveOrder{
			UserID:       id,
			OrderID:      &orderID,
			RestaurantID: &restaurantID,
			OrderType:    e.OrderType,
			InCheckout:   e.InCheckout,
		})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"order_id", "restaurant_id", "order_type", "in_checkout", "updated_at"}),
		}).
		Create(&rows).Error
}

func (s *GormStore) MarkCheckout(ctx context.Context, userIDs []uint, orderID uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.ActiveOrder{}).
		Where("user_id IN ? AND order_id = ?", userIDs, orderID).
		Update("in_checkout", true).Error
}

func (s *GormStore) Clear(ctx context.Context, userIDs []uint, orderID uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.ActiveOrder{}).
		Where("user_id IN ? AND order_id = ?", userIDs, orderID).
		Updates(map[string]interface{}{
			"order_id":      nil,
			"restaurant_id": nil,
			"order_type":    "",
			"in_checkout":   false,
		}).Error
}

func (s *GormStore) Get(ctx context.Context, userID uint) (Entry, bool, error) {
	var row models.ActiveOrder
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if row.OrderID == nil {
		return Entry{}, false, nil
	}
	e := Entry{
		UserID:     row.UserID,
		OrderID:    *row.OrderID,
		OrderType:  row.OrderType,
		InCheckout: row.InCheckout,
	}
	if row.RestaurantID != nil {
		e.RestaurantID = *row.RestaurantID
	}
	return e, true, nil
}
