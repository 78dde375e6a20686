package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-order-engine/services"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

type InviteController struct {
	Invites *services.InviteService
}

func NewInviteController(invites *services.InviteService) *InviteController {
	return &InviteController{Invites: invites}
}

type inviteRequest struct {
	InviteeID uint `json:"invitee_id" binding:"required"`
}

type inviteResponse struct {
	Accept *bool `json:"accept" binding:"required"`
}

// InviteToOrder -> POST /api/orders/:order_id/invites
func (ic *InviteController) InviteToOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	var body inviteRequest
	if !bindJSON(c, &body) {
		return
	}

	invite, err := ic.Invites.InviteToOrder(c.Request.Context(), actor, orderID, body.InviteeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Invite sent", invite)
}

// RespondToOrderInvite -> PATCH /api/order-invites/:invite_id with {"accept": bool}
func (ic *InviteController) RespondToOrderInvite(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	inviteID, ok := paramID(c, "invite_id")
	if !ok {
		return
	}
	var body inviteResponse
	if !bindJSON(c, &body) {
		return
	}

	invite, err := ic.Invites.RespondToOrderInvite(c.Request.Context(), actor, inviteID, *body.Accept)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Invite "+string(invite.Status), invite)
}

func (ic *InviteController) InviteToItem(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	itemID, ok := paramID(c, "item_id")
	if !ok {
		return
	}
	var body inviteRequest
	if !bindJSON(c, &body) {
		return
	}

	invite, err := ic.Invites.InviteToItem(c.Request.Context(), actor, itemID, body.InviteeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Invite sent", invite)
}

func (ic *InviteController) RespondToItemInvite(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	inviteID, ok := paramID(c, "invite_id")
	if !ok {
		return
	}
	var body inviteResponse
	if !bindJSON(c, &body) {
		return
	}

	invite, err := ic.Invites.RespondToItemInvite(c.Request.Context(), actor, inviteID, *body.Accept)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Invite "+string(invite.Status), invite)
}

// ListOrderInvites -> GET /api/order-invites?order_id=&status=
func (ic *InviteController) ListOrderInvites(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var filter services.OrderInviteFilter
	if !bindQuery(c, &filter) {
		return
	}

	invites, err := ic.Invites.ListOrderInvites(c.Request.Context(), actor, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order invites", invites)
}
