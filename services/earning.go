package services

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-order-engine/models"
	"github.com/yeremiapane/restaurant-order-engine/utils"
	"gorm.io/gorm"
)

// Earning is the split of a settled invoice.
type Earning struct {
	Total      decimal.Decimal
	App        decimal.Decimal
	Restaurant decimal.Decimal
}

// SplitEarning takes cut percent of total for the platform; the rest goes to the restaurant.
func SplitEarning(total, cut decimal.Decimal) Earning {
	app := total.Mul(cut).Div(hundred).Round(MoneyPlaces)
	return Earning{
		Total:      total,
		App:        app,
		Restaurant: total.Sub(app).Round(MoneyPlaces),
	}
}

// postOrderEarning writes the invoice earnings and credits the restaurant.
// It runs inside the caller's transaction and does nothing when the invoice
// already carries earnings, so it is safe to call more than once.
func postOrderEarning(tx *gorm.DB, order models.Order) (bool, error) {
	var invoice models.Invoice
	if err := tx.Preload("Items").Where("order_id = ?", order.ID).First(&invoice).Error; err != nil {
		return false, notFoundOr(err, "invoice for order", order.ID)
	}
	if invoice.AppEarning.Valid {
		return false, nil
	}

	e := SplitEarning(invoice.Total(), invoice.OrderCut)

	res := tx.Model(&models.Invoice{}).
		Where("id = ? AND app_earning IS NULL", invoice.ID).
		Updates(map[string]interface{}{
			"app_earning":        e.App,
			"restaurant_earning": e.Restaurant,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}

	bucket := "inhouse_earning"
	if order.Type == models.OrderTypePickup {
		bucket = "pickup_earning"
	}
	err := tx.Model(&models.Restaurant{}).
		Where("id = ?", order.RestaurantID).
		Updates(map[string]interface{}{
			bucket:          gorm.Expr(bucket+" + ?", e.Restaurant),
			"total_earning": gorm.Expr("total_earning + ?", e.Restaurant),
		}).Error
	if err != nil {
		return false, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":           order.ID,
		"restaurant_id":      order.RestaurantID,
		"app_earning":        e.App.String(),
		"restaurant_earning": e.Restaurant.String(),
	}).Info("order earning posted")
	return true, nil
}
