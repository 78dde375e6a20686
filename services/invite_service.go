package services

import (
	"context"

	"github.com/yeremiapane/restaurant-order-engine/models"
	"gorm.io/gorm"
)

// InviteService handles order join requests and item share requests.
type InviteService struct {
	db        *gorm.DB
	events    Publisher
	maxInvite int
}

// NewInviteService caps invites per (order or item, inviter, invitee) at maxInvite.
func NewInviteService(db *gorm.DB, events Publisher, maxInvite int) *InviteService {
	if events == nil {
		events = NopPublisher{}
	}
	if maxInvite <= 0 {
		maxInvite = 3
	}
	return &InviteService{db: db, events: events, maxInvite: maxInvite}
}

// InviteToOrder asks another customer to join an open order.
func (s *InviteService) InviteToOrder(ctx context.Context, actor Actor, orderID, inviteeID uint) (*models.OrderInvite, error) {
	if inviteeID == actor.UserID {
		return nil, ValidationError("cannot invite yourself")
	}

	var (
		order  models.Order
		invite models.OrderInvite
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if order, err = openOrderFor(tx, orderID, actor.UserID); err != nil {
			return err
		}
		if err := requireCustomer(tx, inviteeID); err != nil {
			return err
		}

		joined, err := isParticipant(tx, orderID, inviteeID)
		if err != nil {
			return err
		}
		if joined {
			return ValidationError("user %d already participates in order %d", inviteeID, orderID)
		}

		var sent int64
		if err := tx.Model(&models.OrderInvite{}).
			Where("order_id = ? AND invited_by_id = ? AND invited_user_id = ?", orderID, actor.UserID, inviteeID).
			Count(&sent).Error; err != nil {
			return err
		}
		if int(sent) >= s.maxInvite {
			return ValidationError("invite limit of %d reached for user %d on order %d", s.maxInvite, inviteeID, orderID)
		}

		invite = models.OrderInvite{
			OrderID:       orderID,
			InvitedByID:   actor.UserID,
			InvitedUserID: inviteeID,
			Status:        models.InviteStatusPending,
		}
		return tx.Create(&invite).Error
	})
	if err != nil {
		return nil, err
	}

	ev := orderEvent(EventOrderInviteSent, order, actor.UserID)
	ev.Recipients = []uint{inviteeID}
	ev.Data["invite_id"] = invite.ID
	s.events.Publish(ev)
	return &invite, nil
}

// RespondToOrderInvite is the invitee's one-shot answer.
func (s *InviteService) RespondToOrderInvite(ctx context.Context, actor Actor, inviteID uint, accept bool) (*models.OrderInvite, error) {
	var (
		order       models.Order
		invite      models.OrderInvite
		others      []uint
		itemInvites []uint
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&invite, inviteID).Error; err != nil {
			return notFoundOr(err, "order invite", inviteID)
		}
		if invite.InvitedUserID != actor.UserID {
			return PermissionError("invite %d is not addressed to user %d", inviteID, actor.UserID)
		}
		if invite.Status != models.InviteStatusPending {
			return ConflictError("invite %d was already %s", inviteID, invite.Status)
		}

		var err error
		if order, err = loadOrder(tx, invite.OrderID); err != nil {
			return err
		}

		status := models.InviteStatusRejected
		if accept {
			if order.Status != models.OrderStatusOpen {
				return ConflictError("order %d is %s", order.ID, order.Status)
			}
			status = models.InviteStatusAccepted
		}

		res := tx.Model(&models.OrderInvite{}).
			Where("id = ? AND status = ?", invite.ID, models.InviteStatusPending).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ConflictError("invite %d was answered concurrently", inviteID)
		}
		invite.Status = status

		if !accept {
			return nil
		}

		participant := models.OrderParticipant{OrderID: order.ID, UserID: actor.UserID}
		if err := tx.Where(&participant).FirstOrCreate(&participant).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.OrderItemInvite{}).
			Joins("JOIN order_items ON order_items.id = order_item_invites.order_item_id").
			Where("order_items.order_id = ? AND order_item_invites.invited_user_id = ? AND order_item_invites.status = ?",
				order.ID, actor.UserID, models.InviteStatusPending).
			Pluck("order_item_invites.id", &itemInvites).Error; err != nil {
			return err
		}

		ids, err := participantIDs(tx, order.ID)
		others = without(ids, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !accept {
		ev := orderEvent(EventOrderInviteRejected, order, actor.UserID)
		ev.Recipients = []uint{invite.InvitedByID}
		ev.Data["invite_id"] = invite.ID
		s.events.Publish(ev)
		return &invite, nil
	}

	accepted := orderEvent(EventOrderInviteAccepted, order, actor.UserID)
	accepted.Recipients = others
	accepted.Subjects = []uint{actor.UserID}
	accepted.Projection = ProjectionSet
	accepted.Data["invite_id"] = invite.ID
	events := []Event{accepted}
	if len(itemInvites) > 0 {
		avail := orderEvent(EventItemSharesAvailable, order, actor.UserID)
		avail.Recipients = []uint{actor.UserID}
		avail.Data["item_invite_ids"] = itemInvites
		events = append(events, avail)
	}
	s.events.Publish(events...)
	return &invite, nil
}

// InviteToItem asks a user to share one item. The invitee must participate in
// the order or hold a pending invite to it; the share is only taken once they join.
func (s *InviteService) InviteToItem(ctx context.Context, actor Actor, itemID, inviteeID uint) (*models.OrderItemInvite, error) {
	if inviteeID == actor.UserID {
		return nil, ValidationError("cannot invite yourself")
	}

	var (
		order  models.Order
		invite models.OrderItemInvite
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		var item models.OrderItem
		if err := tx.Preload("Shares").First(&item, itemID).Error; err != nil {
			return notFoundOr(err, "order item", itemID)
		}
		var err error
		if order, err = openOrderFor(tx, item.OrderID, actor.UserID); err != nil {
			return err
		}
		if item.SharedBy(inviteeID) {
			return ValidationError("user %d already shares item %d", inviteeID, itemID)
		}

		joined, err := isParticipant(tx, order.ID, inviteeID)
		if err != nil {
			return err
		}
		if !joined {
			var pending int64
			if err := tx.Model(&models.OrderInvite{}).
				Where("order_id = ? AND invited_user_id = ? AND status = ?", order.ID, inviteeID, models.InviteStatusPending).
				Count(&pending).Error; err != nil {
				return err
			}
			if pending == 0 {
				return ValidationError("user %d is not a participant of order %d", inviteeID, order.ID)
			}
		}

		var sent int64
		if err := tx.Model(&models.OrderItemInvite{}).
			Where("order_item_id = ? AND invited_by_id = ? AND invited_user_id = ?", itemID, actor.UserID, inviteeID).
			Count(&sent).Error; err != nil {
			return err
		}
		if int(sent) >= s.maxInvite {
			return ValidationError("invite limit of %d reached for user %d on item %d", s.maxInvite, inviteeID, itemID)
		}

		invite = models.OrderItemInvite{
			OrderItemID:   itemID,
			InvitedByID:   actor.UserID,
			InvitedUserID: inviteeID,
			Status:        models.InviteStatusPending,
		}
		return tx.Create(&invite).Error
	})
	if err != nil {
		return nil, err
	}

	ev := orderEvent(EventItemInviteSent, order, actor.UserID)
	ev.Recipients = []uint{inviteeID}
	ev.Data["item_invite_id"] = invite.ID
	ev.Data["order_item_id"] = itemID
	s.events.Publish(ev)
	return &invite, nil
}

// RespondToItemInvite accepts or rejects a share request. Accepting requires
// the invitee to be an order participant by now.
func (s *InviteService) RespondToItemInvite(ctx context.Context, actor Actor, inviteID uint, accept bool) (*models.OrderItemInvite, error) {
	var (
		order  models.Order
		invite models.OrderItemInvite
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&invite, inviteID).Error; err != nil {
			return notFoundOr(err, "item invite", inviteID)
		}
		if invite.InvitedUserID != actor.UserID {
			return PermissionError("invite %d is not addressed to user %d", inviteID, actor.UserID)
		}
		if invite.Status != models.InviteStatusPending {
			return ConflictError("invite %d was already %s", inviteID, invite.Status)
		}

		var item models.OrderItem
		if err := tx.First(&item, invite.OrderItemID).Error; err != nil {
			return notFoundOr(err, "order item", invite.OrderItemID)
		}
		var err error
		if accept {
			if order, err = openOrderFor(tx, item.OrderID, actor.UserID); err != nil {
				return err
			}
		} else if order, err = loadOrder(tx, item.OrderID); err != nil {
			return err
		}

		status := models.InviteStatusRejected
		if accept {
			status = models.InviteStatusAccepted
		}
		res := tx.Model(&models.OrderItemInvite{}).
			Where("id = ? AND status = ?", invite.ID, models.InviteStatusPending).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ConflictError("invite %d was answered concurrently", inviteID)
		}
		invite.Status = status

		if !accept {
			return nil
		}
		share := models.OrderItemShare{OrderItemID: item.ID, UserID: actor.UserID}
		return tx.Where(&share).FirstOrCreate(&share).Error
	})
	if err != nil {
		return nil, err
	}

	kind := EventItemInviteRejected
	if accept {
		kind = EventItemInviteAccepted
	}
	ev := orderEvent(kind, order, actor.UserID)
	ev.Recipients = []uint{invite.InvitedByID}
	ev.Data["item_invite_id"] = invite.ID
	ev.Data["order_item_id"] = invite.OrderItemID
	s.events.Publish(ev)
	return &invite, nil
}

func requireCustomer(tx *gorm.DB, userID uint) error {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		return notFoundOr(err, "user", userID)
	}
	if user.Role != models.RoleCustomer {
		return ValidationError("user %d is not a customer", userID)
	}
	return nil
}
