package models

import (
	"time"
)

type ItemStatus string

const (
	ItemStatusUnconfirmed ItemStatus = "unconfirmed"
	ItemStatusConfirmed   ItemStatus = "confirmed"
)

type OrderItem struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	OrderID    uint       `gorm:"not null;index" json:"order_id"`
	Order      Order      `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	FoodItemID uint       `gorm:"not null" json:"food_item_id"`
	FoodItem   FoodItem   `gorm:"foreignKey:FoodItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"food_item"`
	Quantity   int        `gorm:"not null" json:"quantity"`
	Status     ItemStatus `gorm:"type:varchar(20);not null;default:'unconfirmed'" json:"status"`
	AddedByID  uint       `gorm:"not null" json:"added_by_id"`

	Shares            []OrderItemShare           `gorm:"foreignKey:OrderItemID" json:"shares"`
	AddOns            []OrderItemAddOn           `gorm:"foreignKey:OrderItemID" json:"add_ons"`
	AttributeMatrices []OrderItemAttributeMatrix `gorm:"foreignKey:OrderItemID" json:"attribute_matrices"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SharedBy reports whether userID is one of the item's sharers.
func (i OrderItem) SharedBy(userID uint) bool {
	for _, s := range i.Shares {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// OrderItemShare is one user's stake in an item's cost.
type OrderItemShare struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderItemID uint      `gorm:"not null;uniqueIndex:idx_item_share" json:"order_item_id"`
	OrderItem   OrderItem `gorm:"foreignKey:OrderItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_item_share;index" json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type OrderItemAddOn struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderItemID uint      `gorm:"not null;uniqueIndex:idx_item_add_on" json:"order_item_id"`
	OrderItem   OrderItem `gorm:"foreignKey:OrderItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	FoodAddOnID uint      `gorm:"not null;uniqueIndex:idx_item_add_on" json:"food_add_on_id"`
	FoodAddOn   FoodAddOn `gorm:"foreignKey:FoodAddOnID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"food_add_on"`
	Quantity    int       `gorm:"not null;default:1" json:"quantity"`
}

type OrderItemAttributeMatrix struct {
	ID                    uint                `gorm:"primaryKey" json:"id"`
	OrderItemID           uint                `gorm:"not null;uniqueIndex:idx_item_attribute" json:"order_item_id"`
	OrderItem             OrderItem           `gorm:"foreignKey:OrderItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	FoodAttributeMatrixID uint                `gorm:"not null;uniqueIndex:idx_item_attribute" json:"food_attribute_matrix_id"`
	FoodAttributeMatrix   FoodAttributeMatrix `gorm:"foreignKey:FoodAttributeMatrixID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"food_attribute_matrix"`
}
