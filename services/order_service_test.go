package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-order-engine/models"
	"gorm.io/gorm"
)

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, actorOf(f.alice), CreateOrderInput{
		Type: models.OrderTypeInHouse, RestaurantID: f.restaurant.ID, TableID: &f.table.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOpen, order.Status)
	assert.Equal(t, models.DecisionUndecided, order.RestaurantDecision)
	assert.True(t, d("10").Equal(order.TaxPercentage))

	ids, err := participantIDs(f.db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{f.alice.ID}, ids)

	ev, ok := f.events.last(EventOrderCreated)
	require.True(t, ok)
	assert.Equal(t, ProjectionSet, ev.Projection)
	assert.Equal(t, []uint{f.alice.ID}, ev.Subjects)
}

func TestCreateOrder_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := models.RestaurantTable{RestaurantID: f.restaurant.ID, TableNumber: "T2"}
	require.NoError(t, f.db.Create(&inactive).Error)
	require.NoError(t, f.db.Model(&inactive).Update("is_active", false).Error)

	tests := []struct {
		name  string
		actor Actor
		in    CreateOrderInput
		kind  ErrorKind
	}{
		{"restaurant user", actorOf(f.owner), CreateOrderInput{Type: models.OrderTypePickup, RestaurantID: f.restaurant.ID}, KindPermission},
		{"unknown type", actorOf(f.alice), CreateOrderInput{Type: "delivery", RestaurantID: f.restaurant.ID}, KindValidation},
		{"in-house without table", actorOf(f.alice), CreateOrderInput{Type: models.OrderTypeInHouse, RestaurantID: f.restaurant.ID}, KindValidation},
		{"pickup with table", actorOf(f.alice), CreateOrderInput{Type: models.OrderTypePickup, RestaurantID: f.restaurant.ID, TableID: &f.table.ID}, KindValidation},
		{"inactive table", actorOf(f.alice), CreateOrderInput{Type: models.OrderTypeInHouse, RestaurantID: f.restaurant.ID, TableID: &inactive.ID}, KindValidation},
		{"unknown restaurant", actorOf(f.alice), CreateOrderInput{Type: models.OrderTypePickup, RestaurantID: 999}, KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(ctx, tt.actor, tt.in)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestGetOrder_SummaryForCaller(t *testing.T) {
	f := newFixture(t)
	order := f.openOrder(t, models.OrderTypeInHouse, f.alice, f.bob)
	f.addShared(t, order, f.burger, 1, f.alice, f.bob)
	f.addShared(t, order, f.fries, 2, f.bob)
	f.confirm(t, order, f.bob)

	detail, err := f.orders.GetOrder(context.Background(), actorOf(f.alice), order.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Order.Items, 2)
	assert.True(t, d("19").Equal(detail.Summary.TotalWithoutTax), detail.Summary.TotalWithoutTax.String())
	assert.True(t, d("5").Equal(detail.Summary.SharedWithoutTax))
	assert.True(t, d("5.5").Equal(detail.Summary.SharedWithTax))

	_, err = f.orders.GetOrder(context.Background(), actorOf(f.carol), order.ID)
	requireKind(t, err, KindPermission)
}

func TestLeaveOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.openOrder(t, models.OrderTypeInHouse, f.alice, f.bob)
	shared := f.addShared(t, order, f.burger, 1, f.alice, f.bob)
	own := f.addShared(t, order, f.fries, 1, f.bob)

	require.NoError(t, f.orders.LeaveOrder(ctx, actorOf(f.bob), order.ID))

	var item models.OrderItem
	require.NoError(t, f.db.Preload("Shares").First(&item, shared.ID).Error)
	assert.False(t, item.SharedBy(f.bob.ID))
	assert.True(t, item.SharedBy(f.alice.ID))
	err := f.db.First(&models.OrderItem{}, own.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	ev, ok := f.events.last(EventParticipantLeft)
	require.True(t, ok)
	assert.Equal(t, []uint{f.alice.ID}, ev.Recipients)
	assert.Equal(t, ProjectionClear, ev.Projection)

	err = f.orders.LeaveOrder(ctx, actorOf(f.bob), order.ID)
	requireKind(t, err, KindPermission)

	require.NoError(t, f.orders.LeaveOrder(ctx, actorOf(f.alice), order.ID))
	assert.Equal(t, models.OrderStatusCanceled, f.reloadOrder(t, order.ID).Status)
	assert.Equal(t, 1, f.events.count(EventOrderCanceled))
}

func TestLeaveOrder_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	confirmed := f.openOrder(t, models.OrderTypeInHouse, f.alice, f.bob)
	f.addShared(t, confirmed, f.burger, 1, f.alice)
	f.confirm(t, confirmed, f.alice)
	requireKind(t, f.orders.LeaveOrder(ctx, actorOf(f.bob), confirmed.ID), KindConflict)

	ids, err := participantIDs(f.db, confirmed.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestLeaveOrder_PickupHandsOverConfirmedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// a pickup order never sets confirmed, so leaving stays possible
	pickup := f.openOrder(t, models.OrderTypePickup, f.alice, f.bob, f.carol)
	item := f.addShared(t, pickup, f.burger, 1, f.alice)
	f.confirm(t, pickup, f.alice)
	require.False(t, f.reloadOrder(t, pickup.ID).Confirmed)

	require.NoError(t, f.orders.LeaveOrder(ctx, actorOf(f.alice), pickup.ID))
	ids, err := participantIDs(f.db, pickup.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{f.bob.ID, f.carol.ID}, ids)

	var handed models.OrderItem
	require.NoError(t, f.db.Preload("Shares").First(&handed, item.ID).Error)
	assert.Equal(t, models.ItemStatusConfirmed, handed.Status)
	assert.False(t, handed.SharedBy(f.alice.ID))
	assert.True(t, handed.SharedBy(f.bob.ID))
	assert.True(t, handed.SharedBy(f.carol.ID))

	require.NoError(t, f.orders.LeaveOrder(ctx, actorOf(f.bob), pickup.ID))
	require.NoError(t, f.orders.LeaveOrder(ctx, actorOf(f.carol), pickup.ID))
	assert.Equal(t, models.OrderStatusCanceled, f.reloadOrder(t, pickup.ID).Status)
	ids, err = participantIDs(f.db, pickup.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestConfirmCurrentItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.openOrder(t, models.OrderTypeInHouse, f.alice, f.bob)

	_, err := f.orders.ConfirmCurrentItems(ctx, actorOf(f.alice), order.ID)
	requireKind(t, err, KindValidation)

	f.addShared(t, order, f.burger, 1, f.alice)
	f.addShared(t, order, f.fries, 1, f.bob)
	n, err := f.orders.ConfirmCurrentItems(ctx, actorOf(f.alice), order.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.True(t, f.reloadOrder(t, order.ID).Confirmed)

	ev, ok := f.events.last(EventOrderConfirmed)
	require.True(t, ok)
	assert.Equal(t, []uint{f.owner.ID}, ev.Recipients)

	f.addShared(t, order, f.fries, 1, f.alice)
	f.confirm(t, order, f.bob)
	_, ok = f.events.last(EventOrderUpdated)
	assert.True(t, ok)
	assert.Equal(t, 1, f.events.count(EventOrderConfirmed))
}

func TestConfirmCurrentItems_PickupNotifiesParticipants(t *testing.T) {
	f := newFixture(t)
	order := f.openOrder(t, models.OrderTypePickup, f.alice, f.bob)
	f.addShared(t, order, f.burger, 1, f.alice)
	f.confirm(t, order, f.alice)

	assert.False(t, f.reloadOrder(t, order.ID).Confirmed)
	ev, ok := f.events.last(EventItemsConfirmed)
	require.True(t, ok)
	assert.Equal(t, []uint{f.bob.ID}, ev.Recipients)
}

// paidPickup returns a pickup order of alice and bob whose two bills are
// authorized by the gateway.
func paidPickup(t *testing.T, f *fixture) (models.Order, []models.Transaction) {
	t.Helper()
	ctx := context.Background()
	order := f.openOrder(t, models.OrderTypePickup, f.alice, f.bob)
	f.addShared(t, order, f.burger, 1, f.alice)
	f.addShared(t, order, f.burger, 1, f.bob)
	f.confirm(t, order, f.alice)
	invoice := f.checkout(t, order, f.alice)

	var txns []models.Transaction
	for i, u := range []models.User{f.alice, f.bob} {
		line := lineFor(t, invoice, u.ID)
		txn, err := f.transactions.CreateTransaction(ctx, actorOf(u), order.ID, []uint{line.ID})
		require.NoError(t, err)
		gatewayID := []string{"GW-A", "GW-B"}[i]
		f.gateway.On("Verify", gatewayID).Return(&VerifyResult{
			OrderID: txn.GatewayOrderID, TransactionID: gatewayID, ResponseCode: ResponseCodeAuthorized,
			Amount: "11.000", Currency: "SAR",
		}, nil)
		verified, err := f.transactions.VerifyTransaction(ctx, gatewayID)
		require.NoError(t, err)
		require.Equal(t, models.PaymentStatusAuthorized, verified.Status)
		txns = append(txns, *verified)
	}
	return f.reloadOrder(t, order.ID), txns
}

func TestAcceptOrder_CapturesAndCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := paidPickup(t, f)
	require.True(t, order.PaymentCompleted)
	require.Equal(t, models.OrderStatusCheckout, order.Status)

	f.gateway.On("Capture", "GW-A", amountIs("11")).Return(nil).Once()
	f.gateway.On("Capture", "GW-B", amountIs("11")).Return(nil).Once()

	accepted, err := f.orders.AcceptOrder(ctx, actorOf(f.owner), order.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccepted, accepted.RestaurantDecision)
	assert.Equal(t, models.OrderStatusCompleted, f.reloadOrder(t, order.ID).Status)

	var statuses []models.PaymentStatus
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("order_id = ?", order.ID).Pluck("status", &statuses).Error)
	assert.Equal(t, []models.PaymentStatus{models.PaymentStatusSuccessful, models.PaymentStatusSuccessful}, statuses)

	// 22 total at a 5% pickup cut
	r := f.reloadRestaurant(t)
	assert.True(t, d("20.9").Equal(r.PickupEarning), r.PickupEarning.String())
	assert.True(t, d("20.9").Equal(r.TotalEarning))
	assert.True(t, r.InhouseEarning.IsZero())

	ev, ok := f.events.last(EventOrderAccepted)
	require.True(t, ok)
	assert.Equal(t, ProjectionClear, ev.Projection)

	_, err = f.orders.AcceptOrder(ctx, actorOf(f.owner), order.ID, true)
	requireKind(t, err, KindConflict)
	f.gateway.AssertExpectations(t)
}

func TestAcceptOrder_CaptureFailureLeavesOrderUndecided(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := paidPickup(t, f)

	f.gateway.On("Capture", "GW-A", amountIs("11")).Return(nil).Once()
	f.gateway.On("Capture", "GW-B", amountIs("11")).Return(errors.New("gateway timeout")).Once()

	_, err := f.orders.AcceptOrder(ctx, actorOf(f.owner), order.ID, true)
	requireKind(t, err, KindExternalService)

	reloaded := f.reloadOrder(t, order.ID)
	assert.Equal(t, models.DecisionUndecided, reloaded.RestaurantDecision)
	assert.Equal(t, models.OrderStatusCheckout, reloaded.Status)
	assert.True(t, f.reloadRestaurant(t).TotalEarning.IsZero())

	// the retry only captures what is still held
	f.gateway.On("Capture", "GW-B", amountIs("11")).Return(nil).Once()
	_, err = f.orders.AcceptOrder(ctx, actorOf(f.owner), order.ID, true)
	require.NoError(t, err)
	f.gateway.AssertNumberOfCalls(t, "Capture", 3)
	assert.True(t, d("20.9").Equal(f.reloadRestaurant(t).TotalEarning))
}

func TestAcceptOrder_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := paidPickup(t, f)

	rejected, err := f.orders.AcceptOrder(ctx, actorOf(f.owner), order.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionRejected, rejected.RestaurantDecision)
	assert.Equal(t, models.OrderStatusCanceled, f.reloadOrder(t, order.ID).Status)
	assert.True(t, f.reloadRestaurant(t).TotalEarning.IsZero())

	ev, ok := f.events.last(EventOrderRejected)
	require.True(t, ok)
	assert.ElementsMatch(t, []uint{f.alice.ID, f.bob.ID}, ev.Subjects)
	f.gateway.AssertNotCalled(t, "Capture", "GW-A", amountIs("11"))
}

func TestAcceptOrder_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inHouse := f.openOrder(t, models.OrderTypeInHouse, f.alice)
	_, err := f.orders.AcceptOrder(ctx, actorOf(f.owner), inHouse.ID, true)
	requireKind(t, err, KindValidation)

	unpaid := f.openOrder(t, models.OrderTypePickup, f.alice)
	_, err = f.orders.AcceptOrder(ctx, actorOf(f.owner), unpaid.ID, true)
	requireKind(t, err, KindValidation)

	_, err = f.orders.AcceptOrder(ctx, actorOf(f.alice), unpaid.ID, true)
	requireKind(t, err, KindPermission)

	// staff may decide for any restaurant
	_, err = f.orders.AcceptOrder(ctx, actorOf(f.staff), unpaid.ID, false)
	require.NoError(t, err)
}

func TestDeliverOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.openOrder(t, models.OrderTypeInHouse, f.alice)

	_, err := f.orders.DeliverOrder(ctx, actorOf(f.owner), order.ID)
	requireKind(t, err, KindConflict)

	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", models.OrderStatusCompleted).Error)
	_, err = f.orders.DeliverOrder(ctx, actorOf(f.bob), order.ID)
	requireKind(t, err, KindPermission)

	delivered, err := f.orders.DeliverOrder(ctx, actorOf(f.owner), order.ID)
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveredAt)
	assert.NotNil(t, f.reloadOrder(t, order.ID).DeliveredAt)

	_, err = f.orders.DeliverOrder(ctx, actorOf(f.owner), order.ID)
	requireKind(t, err, KindConflict)
}
