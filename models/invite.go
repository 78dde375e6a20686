package models

import "time"

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRejected InviteStatus = "rejected"
)

type OrderInvite struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	OrderID       uint         `gorm:"not null;index:idx_order_invite_pair" json:"order_id"`
	Order         Order        `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	InvitedByID   uint         `gorm:"not null;index:idx_order_invite_pair" json:"invited_by_id"`
	InvitedUserID uint         `gorm:"not null;index:idx_order_invite_pair" json:"invited_user_id"`
	Status        InviteStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type OrderItemInvite struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	OrderItemID   uint         `gorm:"not null;index:idx_item_invite_pair" json:"order_item_id"`
	OrderItem     OrderItem    `gorm:"foreignKey:OrderItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	InvitedByID   uint         `gorm:"not null;index:idx_item_invite_pair" json:"invited_by_id"`
	InvitedUserID uint         `gorm:"not null;index:idx_item_invite_pair" json:"invited_user_id"`
	Status        InviteStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
