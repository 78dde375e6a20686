package database

import (
	"fmt"

	"github.com/yeremiapane/restaurant-order-engine/models"
	"github.com/yeremiapane/restaurant-order-engine/utils"
	"gorm.io/gorm"
)

// Models lists every table owned by the service, parents first.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Restaurant{},
		&models.RestaurantTable{},
		&models.FoodItem{},
		&models.FoodAddOn{},
		&models.FoodAttributeMatrix{},
		&models.Order{},
		&models.OrderParticipant{},
		&models.OrderInvite{},
		&models.OrderItem{},
		&models.OrderItemShare{},
		&models.OrderItemAddOn{},
		&models.OrderItemAttributeMatrix{},
		&models.OrderItemInvite{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.Transaction{},
		&models.Rating{},
		&models.Notification{},
		&models.ActiveOrder{},
	}
}

// Migrate creates or updates the schema and verifies the unique indexes the
// settlement code relies on for concurrent checkout and payment callbacks.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	required := []struct {
		model interface{}
		index string
	}{
		{&models.Invoice{}, "idx_invoices_order_id"},
		{&models.InvoiceItem{}, "idx_invoice_user"},
		{&models.Transaction{}, "idx_transactions_gateway_order_id"},
		{&models.OrderParticipant{}, "idx_order_participant"},
		{&models.OrderItemShare{}, "idx_item_share"},
		{&models.Rating{}, "idx_rating_order_user"},
	}
	for _, r := range required {
		if !db.Migrator().HasIndex(r.model, r.index) {
			if err := db.Migrator().CreateIndex(r.model, r.index); err != nil {
				return fmt.Errorf("create index %s: %w", r.index, err)
			}
		}
	}

	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}
