package models

import (
	"time"
)

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Action    string    `gorm:"type:varchar(50);not null" json:"action"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Data      string    `gorm:"type:text" json:"data"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// ActiveOrder is the per-user "current order" projection maintained from domain events.
type ActiveOrder struct {
	UserID       uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	OrderID      *uint     `json:"order_id"`
	RestaurantID *uint     `json:"restaurant_id"`
	OrderType    OrderType `gorm:"type:varchar(20)" json:"order_type"`
	InCheckout   bool      `gorm:"not null;default:false" json:"in_checkout"`
	UpdatedAt    time.Time `json:"updated_at"`
}
