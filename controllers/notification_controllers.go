package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-order-engine/notification"
	"github.com/yeremiapane/restaurant-order-engine/projection"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

type NotificationController struct {
	Store       *notification.Store
	ActiveOrder projection.Store
}

func NewNotificationController(store *notification.Store, active projection.Store) *NotificationController {
	return &NotificationController{Store: store, ActiveOrder: active}
}

// GetNotifications lists the caller's notifications, newest first. ?unread=true and ?limit=n are optional.
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	unread, _ := strconv.ParseBool(c.Query("unread"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	notifs, err := nc.Store.List(c.Request.Context(), actor.UserID, unread, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", notifs)
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "notif_id")
	if !ok {
		return
	}

	err := nc.Store.MarkRead(c.Request.Context(), actor.UserID, id)
	if errors.Is(err, notification.ErrNotFound) {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification read", gin.H{"id": id})
}

// GetActiveOrder returns the caller's current order, or null data when there is none.
func (nc *NotificationController) GetActiveOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	entry, found, err := nc.ActiveOrder.Get(c.Request.Context(), actor.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !found {
		utils.RespondJSON(c, http.StatusOK, "No active order", nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active order", entry)
}
