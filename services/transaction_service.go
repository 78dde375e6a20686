package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-order-engine/models"
	"github.com/yeremiapane/restaurant-order-engine/utils"
	"gorm.io/gorm"
)

const maxGatewayOrderIDAttempts = 5

// TransactionService creates payment attempts and reconciles gateway results.
type TransactionService struct {
	db       *gorm.DB
	events   Publisher
	gateway  PaymentGateway
	currency string
	// newSuffix yields the random part of gateway order ids.
	newSuffix func() string
}

func NewTransactionService(db *gorm.DB, events Publisher, gateway PaymentGateway, currency string) *TransactionService {
	if events == nil {
		events = NopPublisher{}
	}
	return &TransactionService{
		db:        db,
		events:    events,
		gateway:   gateway,
		currency:  strings.ToUpper(currency),
		newSuffix: randomSuffix,
	}
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}

// CreateTransaction opens a payment attempt for the given invoice items of a
// checked-out order. The amount is the sum of the items.
func (s *TransactionService) CreateTransaction(ctx context.Context, actor Actor, orderID uint, invoiceItemIDs []uint) (*models.Transaction, error) {
	ids := uniqueIDs(invoiceItemIDs)
	if len(ids) == 0 {
		return nil, ValidationError("at least one invoice item is required")
	}

	var txn models.Transaction
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if err := requireParticipant(tx, orderID, actor.UserID); err != nil {
			return err
		}
		if order.Status != models.OrderStatusCheckout {
			return ConflictError("order %d is %s, not in checkout", orderID, order.Status)
		}

		var invoice models.Invoice
		found, err := findInvoice(tx, orderID, &invoice)
		if err != nil {
			return err
		}
		if !found {
			return NotFoundError("order %d has no invoice", orderID)
		}

		byID := make(map[uint]models.InvoiceItem, len(invoice.Items))
		for _, it := range invoice.Items {
			byID[it.ID] = it
		}
		amount := decimal.Zero
		items := make([]models.InvoiceItem, 0, len(ids))
		for _, id := range ids {
			it, ok := byID[id]
			if !ok {
				return ValidationError("invoice item %d does not belong to order %d", id, orderID)
			}
			if it.Paid {
				return ValidationError("invoice item %d is already paid", id)
			}
			amount = amount.Add(it.Amount)
			items = append(items, it)
		}
		if err := requireUnheld(tx, ids); err != nil {
			return err
		}

		gatewayOrderID, err := s.generateGatewayOrderID(tx, orderID)
		if err != nil {
			return err
		}

		txn = models.Transaction{
			UserID:         actor.UserID,
			OrderID:        orderID,
			GatewayOrderID: gatewayOrderID,
			Status:         models.PaymentStatusPending,
			Currency:       s.currency,
			Amount:         amount,
			InvoiceItems:   items,
		}
		return tx.Omit("InvoiceItems.*").Create(&txn).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":         orderID,
		"transaction_id":   txn.ID,
		"gateway_order_id": txn.GatewayOrderID,
		"amount":           txn.Amount.String(),
	}).Info("transaction created")
	return &txn, nil
}

// requireUnheld rejects items that a pending or authorized transaction
// already covers. Failed and invalid attempts release their items.
func requireUnheld(tx *gorm.DB, invoiceItemIDs []uint) error {
	var held []uint
	err := tx.Table("transaction_invoice_items").
		Joins("JOIN transactions ON transactions.id = transaction_invoice_items.transaction_id").
		Where("transaction_invoice_items.invoice_item_id IN ?", invoiceItemIDs).
		Where("transactions.status IN ?", []models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusAuthorized}).
		Order("transaction_invoice_items.invoice_item_id").
		Pluck("transaction_invoice_items.invoice_item_id", &held).Error
	if err != nil {
		return err
	}
	if len(held) > 0 {
		return ConflictError("invoice item %d is held by another payment", held[0])
	}
	return nil
}

// generateGatewayOrderID draws random ids until one is unused, giving up after
// maxGatewayOrderIDAttempts.
func (s *TransactionService) generateGatewayOrderID(tx *gorm.DB, orderID uint) (string, error) {
	for attempt := 0; attempt < maxGatewayOrderIDAttempts; attempt++ {
		candidate := fmt.Sprintf("ORD-%d-%s", orderID, s.newSuffix())
		var n int64
		if err := tx.Model(&models.Transaction{}).Where("gateway_order_id = ?", candidate).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no unique gateway order id for order %d after %d attempts", orderID, maxGatewayOrderIDAttempts)
}

// VerifyTransaction reconciles a gateway payment with its transaction. It
// serves both client polling and the gateway webhook; a transaction that has
// left PENDING is returned unchanged, so duplicate deliveries are harmless.
func (s *TransactionService) VerifyTransaction(ctx context.Context, gatewayTransactionID string) (*models.Transaction, error) {
	gatewayTransactionID = strings.TrimSpace(gatewayTransactionID)
	if gatewayTransactionID == "" {
		return nil, ValidationError("transaction_id is required")
	}
	if s.gateway == nil {
		return nil, ExternalServiceError(nil, "payment gateway is not configured")
	}

	result, err := s.gateway.Verify(ctx, gatewayTransactionID)
	if err != nil {
		utils.ErrorLogger.WithField("gateway_transaction_id", gatewayTransactionID).Errorf("verify failed: %v", err)
		return nil, ExternalServiceError(err, "payment verification failed")
	}

	var (
		txn    models.Transaction
		events []Event
	)
	err = inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Preload("InvoiceItems").Where("gateway_order_id = ?", result.OrderID).First(&txn).Error; err != nil {
			if IsKind(notFoundOr(err, "transaction", 0), KindNotFound) {
				return NotFoundError("transaction for gateway order %s not found", result.OrderID)
			}
			return err
		}
		if txn.Status != models.PaymentStatusPending {
			return nil
		}

		order, err := lockOrder(tx, txn.OrderID)
		if err != nil {
			return err
		}

		status := s.classify(order.Type, txn, result)
		gatewayID := result.TransactionID
		if gatewayID == "" {
			gatewayID = gatewayTransactionID
		}

		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", txn.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":                 status,
				"gateway_transaction_id": gatewayID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			// another delivery settled it first
			return tx.First(&txn, txn.ID).Error
		}
		txn.Status = status
		txn.GatewayTransactionID = &gatewayID

		if status != models.PaymentStatusSuccessful && status != models.PaymentStatusAuthorized {
			utils.InfoLogger.WithFields(logrus.Fields{
				"transaction_id": txn.ID,
				"status":         status,
				"response_code":  result.ResponseCode,
			}).Warn("payment not accepted")
			return nil
		}

		events, err = s.settle(tx, order, txn)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(events...)
	return &txn, nil
}

// classify maps a gateway result onto the terminal transaction status.
func (s *TransactionService) classify(orderType models.OrderType, txn models.Transaction, result *VerifyResult) models.PaymentStatus {
	var accepted bool
	switch orderType {
	case models.OrderTypeInHouse:
		accepted = result.ResponseCode == ResponseCodeSuccess
	case models.OrderTypePickup:
		accepted = result.ResponseCode == ResponseCodeAuthorized || result.ResponseCode == ResponseCodeAuthorizedAlt
	}
	if !accepted {
		return models.PaymentStatusFailed
	}

	amount, err := result.AmountDecimal()
	if err != nil || !amount.Equal(txn.Amount) || strings.TrimSpace(result.Currency) != txn.Currency {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"transaction_id":    txn.ID,
			"expected_amount":   txn.Amount.String(),
			"reported_amount":   result.Amount.String(),
			"expected_currency": txn.Currency,
			"reported_currency": result.Currency,
		}).Error("gateway amount mismatch")
		return models.PaymentStatusInvalid
	}

	if orderType == models.OrderTypePickup {
		return models.PaymentStatusAuthorized
	}
	return models.PaymentStatusSuccessful
}

// settle marks the paid invoice items and completes the order when nothing is
// left to pay. The caller holds the order row lock from lockOrder, so
// settlements of one order see each other's items.
func (s *TransactionService) settle(tx *gorm.DB, order models.Order, txn models.Transaction) ([]Event, error) {
	itemIDs := make([]uint, 0, len(txn.InvoiceItems))
	paidFor := make([]uint, 0, len(txn.InvoiceItems))
	for _, it := range txn.InvoiceItems {
		itemIDs = append(itemIDs, it.ID)
		paidFor = append(paidFor, it.UserID)
	}
	if len(itemIDs) > 0 {
		if err := tx.Model(&models.InvoiceItem{}).Where("id IN ?", itemIDs).Update("paid", true).Error; err != nil {
			return nil, err
		}
	}

	var invoice models.Invoice
	found, err := findInvoice(tx, order.ID, &invoice)
	if err != nil {
		return nil, err
	}
	// a locking read sees rows committed after this transaction's snapshot
	if found {
		err = forUpdate(tx).Where("invoice_id = ?", invoice.ID).Order("id").Find(&invoice.Items).Error
		if err != nil {
			return nil, err
		}
	}
	participants, err := participantIDs(tx, order.ID)
	if err != nil {
		return nil, err
	}

	paid := orderEvent(EventSingleBillPaid, order, txn.UserID)
	paid.Recipients = append(without(participants, txn.UserID), order.Restaurant.UserID)
	paid.Data["transaction_id"] = txn.ID
	paid.Data["paid_for"] = paidFor
	paid.Data["amount"] = utils.FormatAmount(txn.Amount, txn.Currency)

	if !invoice.AllPaid() || order.Status != models.OrderStatusCheckout {
		return []Event{paid}, nil
	}

	switch order.Type {
	case models.OrderTypeInHouse:
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusCheckout).
			Updates(map[string]interface{}{
				"payment_completed": true,
				"status":            models.OrderStatusCompleted,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected != 1 {
			return []Event{paid}, nil
		}
		order.Status = models.OrderStatusCompleted
		if _, err := postOrderEarning(tx, order); err != nil {
			return nil, err
		}
		all := orderEvent(EventAllBillsPaid, order, txn.UserID)
		all.Recipients = append(append([]uint{}, participants...), order.Restaurant.UserID)
		all.Subjects = participants
		all.Projection = ProjectionClear
		return []Event{all}, nil

	case models.OrderTypePickup:
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("payment_completed", true).Error; err != nil {
			return nil, err
		}
		waiting := orderEvent(EventPickupAwaitingAcceptance, order, txn.UserID)
		waiting.Recipients = []uint{order.Restaurant.UserID}
		return []Event{paid, waiting}, nil
	}
	return []Event{paid}, nil
}

// GetTransaction is visible to the payer and the order's participants.
func (s *TransactionService) GetTransaction(ctx context.Context, actor Actor, id uint) (*models.Transaction, error) {
	db := s.db.WithContext(ctx)
	var txn models.Transaction
	if err := db.Preload("InvoiceItems").First(&txn, id).Error; err != nil {
		return nil, notFoundOr(err, "transaction", id)
	}
	if txn.UserID != actor.UserID && !actor.IsStaff() {
		if err := requireParticipant(db, txn.OrderID, actor.UserID); err != nil {
			return nil, err
		}
	}
	return &txn, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
