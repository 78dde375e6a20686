package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-order-engine/services"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

type OrderController struct {
	Orders   *services.OrderService
	Invoices *services.InvoiceService
}

func NewOrderController(orders *services.OrderService, invoices *services.InvoiceService) *OrderController {
	return &OrderController{Orders: orders, Invoices: invoices}
}

// CreateOrder -> POST /api/orders
func (oc *OrderController) CreateOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var body services.CreateOrderInput
	if !bindJSON(c, &body) {
		return
	}

	order, err := oc.Orders.CreateOrder(c.Request.Context(), actor, body)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// GetOrder -> order detail with the caller's cost summary
func (oc *OrderController) GetOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	detail, err := oc.Orders.GetOrder(c.Request.Context(), actor, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", detail)
}

func (oc *OrderController) LeaveOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	if err := oc.Orders.LeaveOrder(c.Request.Context(), actor, orderID); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Left order", gin.H{"order_id": orderID})
}

// ConfirmItems confirms every unconfirmed item of the order.
func (oc *OrderController) ConfirmItems(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	n, err := oc.Orders.ConfirmCurrentItems(c.Request.Context(), actor, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Items confirmed", gin.H{"order_id": orderID, "confirmed": n})
}

func (oc *OrderController) Checkout(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	invoice, err := oc.Invoices.Checkout(c.Request.Context(), actor, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Checkout started", invoice)
}

func (oc *OrderController) GetInvoice(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	invoice, err := oc.Invoices.GetInvoice(c.Request.Context(), actor, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Invoice", invoice)
}

// ListOrders -> GET /api/orders?type=&status=&restaurant_id=&table_id=&restaurant_decision=&created_from=&created_to=
func (oc *OrderController) ListOrders(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var filter services.OrderFilter
	if !bindQuery(c, &filter) {
		return
	}

	orders, err := oc.Orders.ListOrders(c.Request.Context(), actor, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Orders", orders)
}

// ListInvoices -> GET /api/invoices?created_from=&created_to=
func (oc *OrderController) ListInvoices(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var filter services.InvoiceFilter
	if !bindQuery(c, &filter) {
		return
	}

	invoices, err := oc.Invoices.ListInvoices(c.Request.Context(), actor, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Invoices", invoices)
}
