package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-order-engine/models"
	"github.com/yeremiapane/restaurant-order-engine/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrate_CreatesUniqueIndexes(t *testing.T) {
	utils.InitLogger("error")
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	// second run is a no-op
	require.NoError(t, Migrate(db))

	assert.True(t, db.Migrator().HasTable(&models.Transaction{}))
	assert.True(t, db.Migrator().HasTable("transaction_invoice_items"))
	assert.True(t, db.Migrator().HasIndex(&models.Invoice{}, "idx_invoices_order_id"))
	assert.True(t, db.Migrator().HasIndex(&models.Rating{}, "idx_rating_order_user"))

	user := models.User{Name: "a", Email: "a@example.com", Role: models.RoleRestaurant}
	require.NoError(t, db.Create(&user).Error)
	restaurant := models.Restaurant{UserID: user.ID, Name: "r"}
	require.NoError(t, db.Create(&restaurant).Error)
	order := models.Order{Type: models.OrderTypePickup, RestaurantID: restaurant.ID, CreatedByID: user.ID}
	require.NoError(t, db.Create(&order).Error)

	require.NoError(t, db.Create(&models.Invoice{OrderID: order.ID}).Error)
	err = db.Create(&models.Invoice{OrderID: order.ID}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
