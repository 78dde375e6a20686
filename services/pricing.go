package services

import (
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-order-engine/models"
)

var hundred = decimal.NewFromInt(100)

// MoneyPlaces is the scale of every stored amount.
const MoneyPlaces = 3

// ItemTotalWithoutTax is (sum of add-on price x add-on quantity) x item quantity
// plus food price x item quantity. FoodItem and AddOns.FoodAddOn must be loaded.
func ItemTotalWithoutTax(item models.OrderItem) decimal.Decimal {
	qty := decimal.NewFromInt(int64(item.Quantity))
	total := decimal.Zero
	for _, a := range item.AddOns {
		total = total.Add(a.FoodAddOn.Price.Mul(decimal.NewFromInt(int64(a.Quantity))).Mul(qty))
	}
	return total.Add(item.FoodItem.Price.Mul(qty))
}

func ItemTotalWithTax(item models.OrderItem, taxPercentage decimal.Decimal) decimal.Decimal {
	return withTax(ItemTotalWithoutTax(item), taxPercentage)
}

// ItemSharedWithoutTax splits the item total evenly among its sharers.
// An item with no sharers is charged in full.
func ItemSharedWithoutTax(item models.OrderItem) decimal.Decimal {
	return share(ItemTotalWithoutTax(item), len(item.Shares))
}

func ItemSharedWithTax(item models.OrderItem, taxPercentage decimal.Decimal) decimal.Decimal {
	return share(ItemTotalWithTax(item, taxPercentage), len(item.Shares))
}

func withTax(amount, taxPercentage decimal.Decimal) decimal.Decimal {
	return amount.Add(amount.Mul(taxPercentage).Div(hundred))
}

func share(total decimal.Decimal, sharers int) decimal.Decimal {
	if sharers <= 0 {
		return total
	}
	return total.Div(decimal.NewFromInt(int64(sharers)))
}

// OrderSummary holds order totals over confirmed items and the requesting user's share.
type OrderSummary struct {
	TotalWithoutTax  decimal.Decimal `json:"total_without_tax"`
	TotalWithTax     decimal.Decimal `json:"total_with_tax"`
	TotalTax         decimal.Decimal `json:"total_tax"`
	SharedWithoutTax decimal.Decimal `json:"shared_without_tax"`
	SharedWithTax    decimal.Decimal `json:"shared_with_tax"`
	SharedTax        decimal.Decimal `json:"shared_tax"`
}

// Summarize computes OrderSummary for userID. Items must be loaded with withItems.
func Summarize(order models.Order, userID uint) OrderSummary {
	var s OrderSummary
	for _, item := range order.Items {
		if item.Status != models.ItemStatusConfirmed {
			continue
		}
		s.TotalWithoutTax = s.TotalWithoutTax.Add(ItemTotalWithoutTax(item))
		s.TotalWithTax = s.TotalWithTax.Add(ItemTotalWithTax(item, order.TaxPercentage))
		if item.SharedBy(userID) {
			s.SharedWithoutTax = s.SharedWithoutTax.Add(ItemSharedWithoutTax(item))
			s.SharedWithTax = s.SharedWithTax.Add(ItemSharedWithTax(item, order.TaxPercentage))
		}
	}
	s.TotalTax = s.TotalWithTax.Sub(s.TotalWithoutTax)
	s.SharedTax = s.SharedWithTax.Sub(s.SharedWithoutTax)
	return s
}

// invoiceLine rounds a user's share into the three stored invoice amounts.
func invoiceLine(s OrderSummary) (general, tax, amount decimal.Decimal) {
	general = s.SharedWithoutTax.Round(MoneyPlaces)
	tax = s.SharedTax.Round(MoneyPlaces)
	return general, tax, general.Add(tax)
}

// balanceLines puts the rounding residual of independently rounded lines on
// the last line, so that the lines sum to the exact totals rounded once.
func balanceLines(lines []models.InvoiceItem, exactGeneral, exactAmount decimal.Decimal) {
	if len(lines) == 0 {
		return
	}
	general, amount := decimal.Zero, decimal.Zero
	for _, l := range lines {
		general = general.Add(l.GeneralAmount)
		amount = amount.Add(l.Amount)
	}
	last := &lines[len(lines)-1]
	last.GeneralAmount = last.GeneralAmount.Add(exactGeneral.Round(MoneyPlaces).Sub(general))
	last.Amount = last.Amount.Add(exactAmount.Round(MoneyPlaces).Sub(amount))
	last.TaxAmount = last.Amount.Sub(last.GeneralAmount)
}
