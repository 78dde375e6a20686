package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderTypePickup  OrderType = "pickup"
	OrderTypeInHouse OrderType = "in_house"
)

func (t OrderType) Valid() bool {
	return t == OrderTypePickup || t == OrderTypeInHouse
}

type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusCheckout  OrderStatus = "checkout"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// RestaurantDecision records the restaurant's answer on a pickup order.
type RestaurantDecision string

const (
	DecisionUndecided RestaurantDecision = "undecided"
	DecisionAccepted  RestaurantDecision = "accepted"
	DecisionRejected  RestaurantDecision = "rejected"
)

type Order struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	Type               OrderType          `gorm:"type:varchar(20);not null" json:"type"`
	RestaurantID       uint               `gorm:"not null;index" json:"restaurant_id"`
	Restaurant         Restaurant         `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	TableID            *uint              `gorm:"index" json:"table_id,omitempty"`
	Table              *RestaurantTable   `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"table,omitempty"`
	CreatedByID        uint               `gorm:"not null" json:"created_by_id"`
	Status             OrderStatus        `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	Confirmed          bool               `gorm:"not null;default:false" json:"confirmed"`
	RestaurantDecision RestaurantDecision `gorm:"type:varchar(20);not null;default:'undecided'" json:"restaurant_decision"`
	PaymentCompleted   bool               `gorm:"not null;default:false" json:"payment_completed"`
	TaxPercentage      decimal.Decimal    `gorm:"type:decimal(6,2);not null;default:0" json:"tax_percentage"`
	DeliveredAt        *time.Time         `json:"delivered_at,omitempty"`
	Participants       []OrderParticipant `gorm:"foreignKey:OrderID" json:"participants,omitempty"`
	Items              []OrderItem        `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// ParticipantIDs returns the user ids of the loaded participants.
func (o Order) ParticipantIDs() []uint {
	ids := make([]uint, 0, len(o.Participants))
	for _, p := range o.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

type OrderParticipant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;uniqueIndex:idx_order_participant" json:"order_id"`
	Order     Order     `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_order_participant;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
