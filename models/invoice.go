package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	OrderID uint  `gorm:"not null;uniqueIndex" json:"order_id"`
	Order   Order `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	// OrderCut is the platform percentage captured at checkout.
	OrderCut          decimal.Decimal     `gorm:"type:decimal(6,2);not null;default:0" json:"order_cut"`
	AppEarning        decimal.NullDecimal `gorm:"type:decimal(9,3)" json:"app_earning"`
	RestaurantEarning decimal.NullDecimal `gorm:"type:decimal(9,3)" json:"restaurant_earning"`
	Items             []InvoiceItem       `gorm:"foreignKey:InvoiceID" json:"items"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Total sums the amounts of the loaded items.
func (inv Invoice) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range inv.Items {
		total = total.Add(it.Amount)
	}
	return total
}

// AllPaid reports whether every loaded item is paid. An invoice with no items is not paid.
func (inv Invoice) AllPaid() bool {
	if len(inv.Items) == 0 {
		return false
	}
	for _, it := range inv.Items {
		if !it.Paid {
			return false
		}
	}
	return true
}

type InvoiceItem struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	InvoiceID     uint            `gorm:"not null;uniqueIndex:idx_invoice_user" json:"invoice_id"`
	Invoice       Invoice         `gorm:"foreignKey:InvoiceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	UserID        uint            `gorm:"not null;uniqueIndex:idx_invoice_user" json:"user_id"`
	GeneralAmount decimal.Decimal `gorm:"type:decimal(9,3);not null" json:"general_amount"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(9,3);not null" json:"tax_amount"`
	Amount        decimal.Decimal `gorm:"type:decimal(9,3);not null" json:"amount"`
	Paid          bool            `gorm:"not null;default:false" json:"paid"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
