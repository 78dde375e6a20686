package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-order-engine/services"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

// RestaurantController serves the restaurant side of an order.
type RestaurantController struct {
	Orders *services.OrderService
}

func NewRestaurantController(orders *services.OrderService) *RestaurantController {
	return &RestaurantController{Orders: orders}
}

// AcceptOrder -> {"sure": true} accepts a paid pickup order, {"sure": false} rejects it.
func (rc *RestaurantController) AcceptOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	var body struct {
		Sure *bool `json:"sure" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	order, err := rc.Orders.AcceptOrder(c.Request.Context(), actor, orderID, *body.Sure)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	msg := "Order accepted"
	if !*body.Sure {
		msg = "Order rejected"
	}
	utils.RespondJSON(c, http.StatusOK, msg, order)
}

func (rc *RestaurantController) DeliverOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	order, err := rc.Orders.DeliverOrder(c.Request.Context(), actor, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order delivered", order)
}
