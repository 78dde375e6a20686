package services

import (
	"context"
	"time"

	"github.com/yeremiapane/restaurant-order-engine/models"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Page bounds a list query.
type Page struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

func (p Page) apply(db *gorm.DB) (*gorm.DB, error) {
	if p.Limit < 0 || p.Offset < 0 {
		return nil, ValidationError("limit and offset must not be negative")
	}
	limit := p.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return db.Limit(limit).Offset(p.Offset), nil
}

// CreatedRange keeps rows created within [CreatedFrom, CreatedTo]. Either end
// may be open.
type CreatedRange struct {
	CreatedFrom *time.Time `form:"created_from"`
	CreatedTo   *time.Time `form:"created_to"`
}

func (r CreatedRange) apply(db *gorm.DB, column string) (*gorm.DB, error) {
	if r.CreatedFrom != nil && r.CreatedTo != nil && r.CreatedFrom.After(*r.CreatedTo) {
		return nil, ValidationError("created_from is after created_to")
	}
	if r.CreatedFrom != nil {
		db = db.Where(column+" >= ?", *r.CreatedFrom)
	}
	if r.CreatedTo != nil {
		db = db.Where(column+" <= ?", *r.CreatedTo)
	}
	return db, nil
}

type OrderFilter struct {
	ID           *uint                     `form:"id"`
	Type         models.OrderType          `form:"type"`
	Status       models.OrderStatus        `form:"status"`
	RestaurantID *uint                     `form:"restaurant_id"`
	TableID      *uint                     `form:"table_id"`
	Decision     models.RestaurantDecision `form:"restaurant_decision"`
	CreatedByID  *uint                     `form:"created_by"`
	CreatedRange
	Page
}

type OrderItemFilter struct {
	OrderID    *uint             `form:"order_id"`
	FoodItemID *uint             `form:"food_item_id"`
	Quantity   *int              `form:"quantity"`
	Status     models.ItemStatus `form:"status"`
	AddedByID  *uint             `form:"added_by"`
	Page
}

type InvoiceFilter struct {
	CreatedRange
	Page
}

type OrderInviteFilter struct {
	OrderID *uint               `form:"order_id"`
	Status  models.InviteStatus `form:"status"`
	Page
}

// restaurantOrderIDs selects the ids of orders placed at restaurants owned by userID.
func restaurantOrderIDs(db *gorm.DB, userID uint) *gorm.DB {
	owned := db.Session(&gorm.Session{NewDB: true}).Model(&models.Restaurant{}).Select("id").Where("user_id = ?", userID)
	return db.Session(&gorm.Session{NewDB: true}).Model(&models.Order{}).Select("id").Where("restaurant_id IN (?)", owned)
}

// participantOrderIDs selects the ids of orders userID takes part in.
func participantOrderIDs(db *gorm.DB, userID uint) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).Model(&models.OrderParticipant{}).Select("order_id").Where("user_id = ?", userID)
}

// ListOrders returns the orders visible to the caller: customers see orders
// they created, joined or were invited to, restaurants see their own orders,
// staff see everything.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, f OrderFilter) ([]models.Order, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Order{})
	switch actor.Role {
	case models.RoleCustomer:
		invited := db.Session(&gorm.Session{NewDB: true}).Model(&models.OrderInvite{}).Select("order_id").Where("invited_user_id = ?", actor.UserID)
		q = q.Where("created_by_id = ? OR id IN (?) OR id IN (?)", actor.UserID, participantOrderIDs(db, actor.UserID), invited)
	case models.RoleRestaurant:
		q = q.Where("id IN (?)", restaurantOrderIDs(db, actor.UserID))
	case models.RoleStaff:
	default:
		return nil, PermissionError("role %q may not list orders", actor.Role)
	}

	if f.ID != nil {
		q = q.Where("id = ?", *f.ID)
	}
	if f.Type != "" {
		if !f.Type.Valid() {
			return nil, ValidationError("unknown order type %q", f.Type)
		}
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.RestaurantID != nil {
		q = q.Where("restaurant_id = ?", *f.RestaurantID)
	}
	if f.TableID != nil {
		q = q.Where("table_id = ?", *f.TableID)
	}
	if f.Decision != "" {
		q = q.Where("restaurant_decision = ?", f.Decision)
	}
	if f.CreatedByID != nil {
		q = q.Where("created_by_id = ?", *f.CreatedByID)
	}
	q, err := f.CreatedRange.apply(q, "created_at")
	if err != nil {
		return nil, err
	}
	if q, err = f.Page.apply(q); err != nil {
		return nil, err
	}

	orders := []models.Order{}
	if err := q.Order("id DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListItems returns order items the caller added or shares, the items of a
// restaurant's orders, or everything for staff.
func (s *CartService) ListItems(ctx context.Context, actor Actor, f OrderItemFilter) ([]models.OrderItem, error) {
	db := s.db.WithContext(ctx)
	q := withItemRelations(db).Model(&models.OrderItem{})
	switch actor.Role {
	case models.RoleCustomer:
		shared := db.Session(&gorm.Session{NewDB: true}).Model(&models.OrderItemShare{}).Select("order_item_id").Where("user_id = ?", actor.UserID)
		q = q.Where("added_by_id = ? OR id IN (?)", actor.UserID, shared)
	case models.RoleRestaurant:
		q = q.Where("order_id IN (?)", restaurantOrderIDs(db, actor.UserID))
	case models.RoleStaff:
	default:
		return nil, PermissionError("role %q may not list order items", actor.Role)
	}

	if f.OrderID != nil {
		q = q.Where("order_id = ?", *f.OrderID)
	}
	if f.FoodItemID != nil {
		q = q.Where("food_item_id = ?", *f.FoodItemID)
	}
	if f.Quantity != nil {
		q = q.Where("quantity = ?", *f.Quantity)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AddedByID != nil {
		q = q.Where("added_by_id = ?", *f.AddedByID)
	}
	q, err := f.Page.apply(q)
	if err != nil {
		return nil, err
	}

	items := []models.OrderItem{}
	if err := q.Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListInvoices returns the invoices of orders the caller takes part in, of a
// restaurant's orders, or everything for staff.
func (s *InvoiceService) ListInvoices(ctx context.Context, actor Actor, f InvoiceFilter) ([]models.Invoice, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Invoice{}).Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("invoice_items.id") })
	switch actor.Role {
	case models.RoleCustomer:
		q = q.Where("order_id IN (?)", participantOrderIDs(db, actor.UserID))
	case models.RoleRestaurant:
		q = q.Where("order_id IN (?)", restaurantOrderIDs(db, actor.UserID))
	case models.RoleStaff:
	default:
		return nil, PermissionError("role %q may not list invoices", actor.Role)
	}

	q, err := f.CreatedRange.apply(q, "created_at")
	if err != nil {
		return nil, err
	}
	if q, err = f.Page.apply(q); err != nil {
		return nil, err
	}

	invoices := []models.Invoice{}
	if err := q.Order("id DESC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// ListOrderInvites returns invites the caller sent or received, the invites
// on a restaurant's orders, or everything for staff.
func (s *InviteService) ListOrderInvites(ctx context.Context, actor Actor, f OrderInviteFilter) ([]models.OrderInvite, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.OrderInvite{})
	switch actor.Role {
	case models.RoleCustomer:
		q = q.Where("invited_by_id = ? OR invited_user_id = ?", actor.UserID, actor.UserID)
	case models.RoleRestaurant:
		q = q.Where("order_id IN (?)", restaurantOrderIDs(db, actor.UserID))
	case models.RoleStaff:
	default:
		return nil, PermissionError("role %q may not list invites", actor.Role)
	}

	if f.OrderID != nil {
		q = q.Where("order_id = ?", *f.OrderID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q, err := f.Page.apply(q)
	if err != nil {
		return nil, err
	}

	invites := []models.OrderInvite{}
	if err := q.Order("id DESC").Find(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}
