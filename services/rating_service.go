package services

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-order-engine/models"
	"github.com/yeremiapane/restaurant-order-engine/utils"
	"gorm.io/gorm"
)

// RatingService records participants' feedback on completed orders.
type RatingService struct {
	db *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

type RatingInput struct {
	FoodItemRating        int `json:"food_item_rating"`
	RestaurantRating      int `json:"restaurant_rating"`
	CustomerServiceRating int `json:"customer_service_rating"`
	ApplicationRating     int `json:"application_rating"`
}

// RestaurantRating is the average of all ratings given to a restaurant.
type RestaurantRating struct {
	RestaurantID uint            `json:"restaurant_id"`
	Average      decimal.Decimal `json:"average"`
	Count        int64           `json:"count"`
}

// RateOrder stores the caller's rating of a completed order. Each participant
// rates an order once.
func (s *RatingService) RateOrder(ctx context.Context, actor Actor, orderID uint, in RatingInput) (*models.Rating, error) {
	rating := models.Rating{
		OrderID:               orderID,
		UserID:                actor.UserID,
		FoodItemRating:        in.FoodItemRating,
		RestaurantRating:      in.RestaurantRating,
		CustomerServiceRating: in.CustomerServiceRating,
		ApplicationRating:     in.ApplicationRating,
	}
	for _, score := range rating.Scores() {
		if score < 0 || score > models.MaxRatingScore {
			return nil, ValidationError("ratings must be between 0 and %d", models.MaxRatingScore)
		}
	}

	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		order, err := loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if err := requireParticipant(tx, orderID, actor.UserID); err != nil {
			return err
		}
		if order.Status != models.OrderStatusCompleted {
			return ConflictError("order %d is %s, only completed orders can be rated", orderID, order.Status)
		}
		rating.RestaurantID = order.RestaurantID
		if err := tx.Create(&rating).Error; err != nil {
			if isUniqueViolation(err) {
				return ConflictError("user %d already rated order %d", actor.UserID, orderID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":      orderID,
		"restaurant_id": rating.RestaurantID,
		"user_id":       actor.UserID,
	}).Info("order rated")
	return &rating, nil
}

// AverageRating averages the four scores of every rating of the restaurant.
// A restaurant nobody rated averages zero.
func (s *RatingService) AverageRating(ctx context.Context, restaurantID uint) (*RestaurantRating, error) {
	db := s.db.WithContext(ctx)
	if err := db.Select("id").First(&models.Restaurant{}, restaurantID).Error; err != nil {
		return nil, notFoundOr(err, "restaurant", restaurantID)
	}

	var row struct {
		Total decimal.NullDecimal
		Count int64
	}
	err := db.Model(&models.Rating{}).
		Select("SUM(food_item_rating + restaurant_rating + customer_service_rating + application_rating) AS total, COUNT(*) AS count").
		Where("restaurant_id = ?", restaurantID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	out := &RestaurantRating{RestaurantID: restaurantID, Average: decimal.Zero, Count: row.Count}
	if row.Count > 0 && row.Total.Valid {
		out.Average = row.Total.Decimal.Div(decimal.NewFromInt(row.Count * 4)).Round(2)
	}
	return out, nil
}
