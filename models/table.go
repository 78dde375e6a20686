package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Restaurant struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;uniqueIndex" json:"user_id"`
	User            User            `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Name            string          `gorm:"type:varchar(255);not null" json:"name"`
	TaxPercentage   decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"tax_percentage"`
	PickupOrderCut  decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"pickup_order_cut"`
	InhouseOrderCut decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"inhouse_order_cut"`
	PickupEarning   decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"pickup_earning"`
	InhouseEarning  decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"inhouse_earning"`
	TotalEarning    decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"total_earning"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderCut returns the platform percentage taken from orders of the given type.
func (r Restaurant) OrderCut(t OrderType) decimal.Decimal {
	if t == OrderTypePickup {
		return r.PickupOrderCut
	}
	return r.InhouseOrderCut
}

type RestaurantTable struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RestaurantID uint       `gorm:"not null;index" json:"restaurant_id"`
	Restaurant   Restaurant `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	TableNumber  string     `gorm:"type:varchar(50);not null" json:"table_number"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
