package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusInvalid    PaymentStatus = "invalid"
	PaymentStatusAuthorized PaymentStatus = "authorized"
)

// Transaction is one payment attempt by a user against one or more invoice items.
type Transaction struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	UserID               uint            `gorm:"not null;index" json:"user_id"`
	OrderID              uint            `gorm:"not null;index" json:"order_id"`
	Order                Order           `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	GatewayOrderID       string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"gateway_order_id"`
	GatewayTransactionID *string         `gorm:"type:varchar(64);index" json:"gateway_transaction_id,omitempty"`
	Status               PaymentStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Currency             string          `gorm:"type:varchar(3);not null" json:"currency"`
	Amount               decimal.Decimal `gorm:"type:decimal(9,3);not null" json:"amount"`
	InvoiceItems         []InvoiceItem   `gorm:"many2many:transaction_invoice_items;" json:"invoice_items,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}
