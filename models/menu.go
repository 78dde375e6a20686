package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FoodItem and its children are catalog rows; the order engine only reads them.
type FoodItem struct {
	ID                uint                  `gorm:"primaryKey" json:"id"`
	RestaurantID      uint                  `gorm:"not null;index" json:"restaurant_id"`
	Restaurant        Restaurant            `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Name              string                `gorm:"type:varchar(255);not null" json:"name"`
	Price             decimal.Decimal       `gorm:"type:decimal(9,3);not null" json:"price"`
	AddOns            []FoodAddOn           `gorm:"foreignKey:FoodItemID" json:"add_ons,omitempty"`
	AttributeMatrices []FoodAttributeMatrix `gorm:"foreignKey:FoodItemID" json:"attribute_matrices,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

type FoodAddOn struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	FoodItemID uint            `gorm:"not null;index" json:"food_item_id"`
	Name       string          `gorm:"type:varchar(255);not null" json:"name"`
	Price      decimal.Decimal `gorm:"type:decimal(9,3);not null" json:"price"`
}

type FoodAttributeMatrix struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	FoodItemID uint   `gorm:"not null;index" json:"food_item_id"`
	Name       string `gorm:"type:varchar(255);not null" json:"name"`
}
