package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-order-engine/services"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

type PaymentController struct {
	Transactions *services.TransactionService
}

func NewPaymentController(transactions *services.TransactionService) *PaymentController {
	return &PaymentController{Transactions: transactions}
}

type verifyRequest struct {
	TransactionID string `json:"transaction_id" form:"transaction_id" binding:"required"`
}

// CreateTransaction -> POST /api/orders/:order_id/transactions with the invoice items to pay for.
func (pc *PaymentController) CreateTransaction(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	var body struct {
		InvoiceItemIDs []uint `json:"invoice_item_ids" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	txn, err := pc.Transactions.CreateTransaction(c.Request.Context(), actor, orderID, body.InvoiceItemIDs)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Transaction created", txn)
}

func (pc *PaymentController) GetTransaction(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "transaction_id")
	if !ok {
		return
	}

	txn, err := pc.Transactions.GetTransaction(c.Request.Context(), actor, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Transaction", txn)
}

// VerifyTransaction is polled by the client after the gateway redirect.
func (pc *PaymentController) VerifyTransaction(c *gin.Context) {
	if _, ok := actorFromContext(c); !ok {
		return
	}
	var body verifyRequest
	if !bindJSON(c, &body) {
		return
	}
	pc.verify(c, body.TransactionID)
}

// Webhook receives the gateway callback, as form or JSON. The signature is
// checked by middlewares.WebhookSignature.
func (pc *PaymentController) Webhook(c *gin.Context) {
	var body verifyRequest
	if err := c.ShouldBind(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	pc.verify(c, body.TransactionID)
}

func (pc *PaymentController) verify(c *gin.Context, gatewayTransactionID string) {
	txn, err := pc.Transactions.VerifyTransaction(c.Request.Context(), gatewayTransactionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Transaction "+string(txn.Status), txn)
}
