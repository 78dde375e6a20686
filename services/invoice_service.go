package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-order-engine/models"
	"github.com/yeremiapane/restaurant-order-engine/utils"
	"gorm.io/gorm"
)

// errCheckoutLost marks a checkout that found another request already won the race.
var errCheckoutLost = errors.New("checkout already performed")

// InvoiceService turns an open order into an invoice split per participant.
type InvoiceService struct {
	db     *gorm.DB
	events Publisher
}

func NewInvoiceService(db *gorm.DB, events Publisher) *InvoiceService {
	if events == nil {
		events = NopPublisher{}
	}
	return &InvoiceService{db: db, events: events}
}

// Checkout moves an open order to CHECKOUT and creates its invoice in one
// transaction. It is idempotent: once an invoice exists it is returned as is,
// and concurrent callers all receive the single winning invoice.
func (s *InvoiceService) Checkout(ctx context.Context, actor Actor, orderID uint) (*models.Invoice, error) {
	var (
		invoice      models.Invoice
		order        models.Order
		participants []uint
		created      bool
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		if err := requireParticipant(tx, orderID, actor.UserID); err != nil {
			return err
		}

		found, err := findInvoice(tx, orderID, &invoice)
		if err != nil || found {
			return err
		}
		if order.Status != models.OrderStatusOpen {
			return ConflictError("order %d is %s", orderID, order.Status)
		}

		var full models.Order
		if err := withItems(tx).First(&full, orderID).Error; err != nil {
			return err
		}
		if participants, err = participantIDs(tx, orderID); err != nil {
			return err
		}
		lines := invoiceLines(full, participants)
		if len(lines) == 0 {
			return ValidationError("order %d has no confirmed items", orderID)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.OrderStatusOpen).
			Update("status", models.OrderStatusCheckout)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return errCheckoutLost
		}

		invoice = models.Invoice{
			OrderID:  orderID,
			OrderCut: order.Restaurant.OrderCut(order.Type),
		}
		if err := tx.Create(&invoice).Error; err != nil {
			if isUniqueViolation(err) {
				return errCheckoutLost
			}
			return err
		}
		for i := range lines {
			lines[i].InvoiceID = invoice.ID
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		invoice.Items = lines
		created = true
		return nil
	})
	if errors.Is(err, errCheckoutLost) {
		return s.lostCheckout(ctx, orderID)
	}
	if err != nil {
		return nil, err
	}

	if created {
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id":   orderID,
			"invoice_id": invoice.ID,
			"lines":      len(invoice.Items),
			"total":      invoice.Total().String(),
		}).Info("order checked out")

		ev := orderEvent(EventCheckoutRequested, order, actor.UserID)
		ev.Recipients = append(without(participants, actor.UserID), order.Restaurant.UserID)
		ev.Subjects = participants
		ev.Projection = ProjectionCheckout
		ev.Data["invoice_id"] = invoice.ID
		s.events.Publish(ev)
	}
	return &invoice, nil
}

// lostCheckout resolves a checkout that another transaction changed under us:
// the winner's invoice when there is one, otherwise the order's actual state.
func (s *InvoiceService) lostCheckout(ctx context.Context, orderID uint) (*models.Invoice, error) {
	db := s.db.WithContext(ctx)
	var invoice models.Invoice
	found, err := findInvoice(db, orderID, &invoice)
	if err != nil {
		return nil, err
	}
	if found {
		return &invoice, nil
	}
	var current models.Order
	if err := db.Select("id", "status").First(&current, orderID).Error; err != nil {
		return nil, notFoundOr(err, "order", orderID)
	}
	if current.Status == models.OrderStatusCheckout {
		return nil, ConflictError("checkout of order %d is in progress", orderID)
	}
	return nil, ConflictError("order %d is %s", orderID, current.Status)
}

// GetInvoice is visible to participants, the owning restaurant and staff.
func (s *InvoiceService) GetInvoice(ctx context.Context, actor Actor, orderID uint) (*models.Invoice, error) {
	db := s.db.WithContext(ctx)
	order, err := loadOrder(db, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireRestaurantActor(actor, order); err != nil {
		if err := requireParticipant(db, orderID, actor.UserID); err != nil {
			return nil, err
		}
	}

	var invoice models.Invoice
	found, err := findInvoice(db, orderID, &invoice)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, NotFoundError("order %d has no invoice", orderID)
	}
	return &invoice, nil
}

func findInvoice(tx *gorm.DB, orderID uint, out *models.Invoice) (bool, error) {
	err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("invoice_items.id") }).
		Where("order_id = ?", orderID).
		First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// invoiceLines builds one line per participant sharing at least one confirmed
// item. The lines add up to the rounded sum of the exact shares.
func invoiceLines(order models.Order, participants []uint) []models.InvoiceItem {
	var (
		lines                     []models.InvoiceItem
		exactGeneral, exactAmount decimal.Decimal
	)
	for _, userID := range participants {
		if !sharesConfirmedItem(order, userID) {
			continue
		}
		summary := Summarize(order, userID)
		exactGeneral = exactGeneral.Add(summary.SharedWithoutTax)
		exactAmount = exactAmount.Add(summary.SharedWithTax)
		general, tax, amount := invoiceLine(summary)
		lines = append(lines, models.InvoiceItem{
			UserID:        userID,
			GeneralAmount: general,
			TaxAmount:     tax,
			Amount:        amount,
		})
	}
	balanceLines(lines, exactGeneral, exactAmount)
	return lines
}

func sharesConfirmedItem(order models.Order, userID uint) bool {
	for _, item := range order.Items {
		if item.Status == models.ItemStatusConfirmed && item.SharedBy(userID) {
			return true
		}
	}
	return false
}
