package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-order-engine/models"
)

func orderIDs(orders []models.Order) []uint {
	ids := make([]uint, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestListOrders_ScopedByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.openOrder(t, models.OrderTypeInHouse, f.alice)
	joined := f.openOrder(t, models.OrderTypePickup, f.bob, f.alice)
	invited := f.openOrder(t, models.OrderTypePickup, f.carol)
	_, err := f.invites.InviteToOrder(ctx, actorOf(f.carol), invited.ID, f.alice.ID)
	require.NoError(t, err)
	other := f.openOrder(t, models.OrderTypePickup, f.bob)

	elsewhereOwner := models.User{Name: "rival", Email: "rival@example.com", Role: models.RoleRestaurant}
	require.NoError(t, f.db.Create(&elsewhereOwner).Error)
	elsewhere := models.Restaurant{UserID: elsewhereOwner.ID, Name: "Rival"}
	require.NoError(t, f.db.Create(&elsewhere).Error)

	orders, err := f.orders.ListOrders(ctx, actorOf(f.alice), OrderFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{mine.ID, joined.ID, invited.ID}, orderIDs(orders))

	orders, err = f.orders.ListOrders(ctx, actorOf(f.owner), OrderFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{mine.ID, joined.ID, invited.ID, other.ID}, orderIDs(orders))

	orders, err = f.orders.ListOrders(ctx, actorOf(elsewhereOwner), OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)

	orders, err = f.orders.ListOrders(ctx, actorOf(f.staff), OrderFilter{Page: Page{Limit: 2}})
	require.NoError(t, err)
	// newest first
	assert.Equal(t, []uint{other.ID, invited.ID}, orderIDs(orders))
}

func TestListOrders_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := actorOf(f.owner)

	inHouse := f.openOrder(t, models.OrderTypeInHouse, f.alice)
	pickup := f.openOrder(t, models.OrderTypePickup, f.bob)
	_, err := f.orders.AcceptOrder(ctx, owner, pickup.ID, false)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter OrderFilter
		want   []uint
	}{
		{"type", OrderFilter{Type: models.OrderTypeInHouse}, []uint{inHouse.ID}},
		{"status", OrderFilter{Status: models.OrderStatusCanceled}, []uint{pickup.ID}},
		{"table", OrderFilter{TableID: &f.table.ID}, []uint{inHouse.ID}},
		{"decision", OrderFilter{Decision: models.DecisionRejected}, []uint{pickup.ID}},
		{"restaurant", OrderFilter{RestaurantID: &f.restaurant.ID}, []uint{pickup.ID, inHouse.ID}},
		{"created by", OrderFilter{CreatedByID: &f.bob.ID}, []uint{pickup.ID}},
		{"id", OrderFilter{ID: &inHouse.ID}, []uint{inHouse.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := f.orders.ListOrders(ctx, owner, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, orderIDs(orders))
		})
	}

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	orders, err := f.orders.ListOrders(ctx, owner, OrderFilter{CreatedRange: CreatedRange{CreatedFrom: &past, CreatedTo: &future}})
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	orders, err = f.orders.ListOrders(ctx, owner, OrderFilter{CreatedRange: CreatedRange{CreatedFrom: &future}})
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = f.orders.ListOrders(ctx, owner, OrderFilter{CreatedRange: CreatedRange{CreatedFrom: &future, CreatedTo: &past}})
	requireKind(t, err, KindValidation)
	_, err = f.orders.ListOrders(ctx, owner, OrderFilter{Type: "delivery"})
	requireKind(t, err, KindValidation)
	_, err = f.orders.ListOrders(ctx, owner, OrderFilter{Page: Page{Offset: -1}})
	requireKind(t, err, KindValidation)
	_, err = f.orders.ListOrders(ctx, Actor{UserID: f.alice.ID, Role: "guest"}, OrderFilter{})
	requireKind(t, err, KindPermission)
}

func TestListItems_ScopedByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.openOrder(t, models.OrderTypeInHouse, f.alice, f.bob, f.carol)
	shared := f.addShared(t, order, f.burger, 1, f.alice, f.bob)
	own := f.addShared(t, order, f.fries, 2, f.carol)

	items, err := f.carts.ListItems(ctx, actorOf(f.bob), OrderItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, shared.ID, items[0].ID)
	assert.Len(t, items[0].Shares, 2)

	items, err = f.carts.ListItems(ctx, actorOf(f.owner), OrderItemFilter{OrderID: &order.ID})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	qty := 2
	items, err = f.carts.ListItems(ctx, actorOf(f.staff), OrderItemFilter{Quantity: &qty, AddedByID: &f.carol.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, own.ID, items[0].ID)

	f.confirm(t, order, f.alice)
	items, err = f.carts.ListItems(ctx, actorOf(f.carol), OrderItemFilter{Status: models.ItemStatusUnconfirmed})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListInvoices_ScopedByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, invoice := inHouseCheckout(t, f)

	for _, u := range []models.User{f.alice, f.bob, f.owner, f.staff} {
		invoices, err := f.invoices.ListInvoices(ctx, actorOf(u), InvoiceFilter{})
		require.NoError(t, err, u.Name)
		require.Len(t, invoices, 1, u.Name)
		assert.Equal(t, invoice.ID, invoices[0].ID)
		assert.Equal(t, order.ID, invoices[0].OrderID)
		assert.Len(t, invoices[0].Items, 2)
	}

	invoices, err := f.invoices.ListInvoices(ctx, actorOf(f.carol), InvoiceFilter{})
	require.NoError(t, err)
	assert.Empty(t, invoices)

	future := time.Now().Add(time.Hour)
	invoices, err = f.invoices.ListInvoices(ctx, actorOf(f.staff), InvoiceFilter{CreatedRange: CreatedRange{CreatedFrom: &future}})
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestListOrderInvites_ScopedByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.openOrder(t, models.OrderTypeInHouse, f.alice)
	toBob, err := f.invites.InviteToOrder(ctx, actorOf(f.alice), order.ID, f.bob.ID)
	require.NoError(t, err)
	toCarol, err := f.invites.InviteToOrder(ctx, actorOf(f.alice), order.ID, f.carol.ID)
	require.NoError(t, err)
	_, err = f.invites.RespondToOrderInvite(ctx, actorOf(f.carol), toCarol.ID, false)
	require.NoError(t, err)

	invites, err := f.invites.ListOrderInvites(ctx, actorOf(f.bob), OrderInviteFilter{})
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, toBob.ID, invites[0].ID)

	invites, err = f.invites.ListOrderInvites(ctx, actorOf(f.alice), OrderInviteFilter{})
	require.NoError(t, err)
	assert.Len(t, invites, 2)

	invites, err = f.invites.ListOrderInvites(ctx, actorOf(f.owner), OrderInviteFilter{OrderID: &order.ID, Status: models.InviteStatusRejected})
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, toCarol.ID, invites[0].ID)
}
