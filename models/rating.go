package models

import "time"

// MaxRatingScore bounds each rating dimension; zero means not rated.
const MaxRatingScore = 5

// Rating is a participant's feedback on a completed order.
type Rating struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	OrderID               uint       `gorm:"not null;uniqueIndex:idx_rating_order_user" json:"order_id"`
	Order                 Order      `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	UserID                uint       `gorm:"not null;uniqueIndex:idx_rating_order_user" json:"user_id"`
	User                  User       `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	RestaurantID          uint       `gorm:"not null;index" json:"restaurant_id"`
	Restaurant            Restaurant `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	FoodItemRating        int        `gorm:"not null;default:0" json:"food_item_rating"`
	RestaurantRating      int        `gorm:"not null;default:0" json:"restaurant_rating"`
	CustomerServiceRating int        `gorm:"not null;default:0" json:"customer_service_rating"`
	ApplicationRating     int        `gorm:"not null;default:0" json:"application_rating"`
	CreatedAt             time.Time  `json:"created_at"`
}

// Scores returns the four dimensions in a fixed order.
func (r Rating) Scores() []int {
	return []int{r.FoodItemRating, r.RestaurantRating, r.CustomerServiceRating, r.ApplicationRating}
}
