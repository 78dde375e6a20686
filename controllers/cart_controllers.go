package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-order-engine/services"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

type CartController struct {
	Cart *services.CartService
}

func NewCartController(cart *services.CartService) *CartController {
	return &CartController{Cart: cart}
}

// AddItem -> POST /api/orders/:order_id/items
func (cc *CartController) AddItem(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	var body services.AddItemInput
	if !bindJSON(c, &body) {
		return
	}

	item, err := cc.Cart.AddItem(c.Request.Context(), actor, orderID, body)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Item added", item)
}

func (cc *CartController) EditItem(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	itemID, ok := paramID(c, "item_id")
	if !ok {
		return
	}
	var body services.EditItemInput
	if !bindJSON(c, &body) {
		return
	}

	item, err := cc.Cart.EditItem(c.Request.Context(), actor, itemID, body)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item updated", item)
}

func (cc *CartController) DeleteItem(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	itemID, ok := paramID(c, "item_id")
	if !ok {
		return
	}

	if err := cc.Cart.DeleteItem(c.Request.Context(), actor, itemID); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item deleted", gin.H{"item_id": itemID})
}

func (cc *CartController) ListItems(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var filter services.OrderItemFilter
	if !bindQuery(c, &filter) {
		return
	}

	items, err := cc.Cart.ListItems(c.Request.Context(), actor, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order items", items)
}
