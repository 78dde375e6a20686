package router

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-order-engine/database"
	"github.com/yeremiapane/restaurant-order-engine/kds"
	"github.com/yeremiapane/restaurant-order-engine/models"
	"github.com/yeremiapane/restaurant-order-engine/notification"
	"github.com/yeremiapane/restaurant-order-engine/projection"
	"github.com/yeremiapane/restaurant-order-engine/services"
	"github.com/yeremiapane/restaurant-order-engine/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const webhookSecret = "hook-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.InitLogger("error")
	utils.SetJWTSecret("router-secret")
	m.Run()
}

// fakeGateway answers verify calls with whatever payment was registered for a gateway transaction id.
type fakeGateway struct {
	mu       sync.Mutex
	payments map[string]map[string]string
}

func (g *fakeGateway) pay(gatewayTxnID, gatewayOrderID, amount string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[gatewayTxnID] = map[string]string{
		"order_id":       gatewayOrderID,
		"transaction_id": gatewayTxnID,
		"response_code":  services.ResponseCodeSuccess,
		"result":         "Payment is completed",
		"amount":         amount,
		"currency":       "SAR",
	}
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	payment, ok := g.payments[r.PostForm.Get("transaction_id")]
	g.mu.Unlock()
	if !ok {
		http.Error(w, "unknown transaction", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payment)
}

type testApp struct {
	t          *testing.T
	db         *gorm.DB
	router     *gin.Engine
	dispatcher *services.Dispatcher
	gateway    *fakeGateway

	owner      models.User
	alice      models.User
	bob        models.User
	restaurant models.Restaurant
	table      models.RestaurantTable
	burger     models.FoodItem
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	app := &testApp{t: t, db: db, gateway: &fakeGateway{payments: map[string]map[string]string{}}}
	server := httptest.NewServer(app.gateway)
	t.Cleanup(server.Close)
	gateway := services.NewGatewayService(services.GatewayConfig{
		MerchantEmail: "merchant@example.com",
		SecretKey:     "secret",
		VerifyURL:     server.URL + "/verify",
		CaptureURL:    server.URL + "/capture",
		WebhookSecret: webhookSecret,
	})

	app.owner = models.User{Name: "owner", Email: "owner@example.com", Role: models.RoleRestaurant}
	app.alice = models.User{Name: "alice", Email: "alice@example.com", Role: models.RoleCustomer}
	app.bob = models.User{Name: "bob", Email: "bob@example.com", Role: models.RoleCustomer}
	require.NoError(t, db.Create(&app.owner).Error)
	require.NoError(t, db.Create(&app.alice).Error)
	require.NoError(t, db.Create(&app.bob).Error)

	app.restaurant = models.Restaurant{
		UserID:          app.owner.ID,
		Name:            "Bistro",
		TaxPercentage:   decimal.NewFromInt(10),
		PickupOrderCut:  decimal.NewFromInt(5),
		InhouseOrderCut: decimal.NewFromInt(10),
	}
	require.NoError(t, db.Create(&app.restaurant).Error)
	app.table = models.RestaurantTable{RestaurantID: app.restaurant.ID, TableNumber: "T1", IsActive: true}
	require.NoError(t, db.Create(&app.table).Error)
	app.burger = models.FoodItem{RestaurantID: app.restaurant.ID, Name: "Burger", Price: decimal.NewFromInt(10)}
	require.NoError(t, db.Create(&app.burger).Error)

	notifications := notification.NewStore(db)
	active := projection.NewGormStore(db)
	hub := kds.NewHub()
	app.dispatcher = services.NewDispatcher(active, notification.Fanout{notifications, hub}, 2, 64)
	app.dispatcher.Start()
	t.Cleanup(app.dispatcher.Stop)

	app.router = SetupRouter(Deps{
		Orders:           services.NewOrderService(db, app.dispatcher, gateway),
		Invoices:         services.NewInvoiceService(db, app.dispatcher),
		Cart:             services.NewCartService(db, app.dispatcher),
		Invites:          services.NewInviteService(db, app.dispatcher, 3),
		Transactions:     services.NewTransactionService(db, app.dispatcher, gateway, "SAR"),
		Ratings:          services.NewRatingService(db),
		Notifications:    notifications,
		ActiveOrders:     active,
		Hub:              hub,
		ValidateWebhook:  gateway.ValidateSignature,
		WebhookRateLimit: 100,
	})
	return app
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testApp) do(user *models.User, method, path string, body interface{}) (int, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := utils.GenerateToken(user.ID, string(user.Role))
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (a *testApp) webhook(form url.Values, signature string) int {
	a.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Gateway-Signature", signature)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w.Code
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func decode(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestInHouseOrderLifecycle(t *testing.T) {
	app := newTestApp(t)

	code, env := app.do(&app.alice, http.MethodPost, "/api/orders", gin.H{
		"type": "in_house", "restaurant_id": app.restaurant.ID, "table_id": app.table.ID,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var order models.Order
	decode(t, env, &order)
	orderPath := fmt.Sprintf("/api/orders/%d", order.ID)

	// bob joins through an invite
	code, env = app.do(&app.alice, http.MethodPost, orderPath+"/invites", gin.H{"invitee_id": app.bob.ID})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var invite models.OrderInvite
	decode(t, env, &invite)
	code, env = app.do(&app.bob, http.MethodPatch, fmt.Sprintf("/api/order-invites/%d", invite.ID), gin.H{"accept": true})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = app.do(&app.alice, http.MethodPost, orderPath+"/items", gin.H{"food_item_id": app.burger.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = app.do(&app.alice, http.MethodPost, orderPath+"/confirm", nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = app.do(&app.bob, http.MethodPost, orderPath+"/checkout", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var invoice models.Invoice
	decode(t, env, &invoice)
	// bob shares nothing, so only alice is billed
	require.Len(t, invoice.Items, 1)
	line := invoice.Items[0]
	assert.Equal(t, app.alice.ID, line.UserID)
	assert.True(t, decimal.RequireFromString("11").Equal(line.Amount))

	code, env = app.do(&app.alice, http.MethodPost, orderPath+"/transactions", gin.H{"invoice_item_ids": []uint{line.ID}})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var txn models.Transaction
	decode(t, env, &txn)

	app.gateway.pay("PT-1", txn.GatewayOrderID, "11.000")
	form := url.Values{"transaction_id": {"PT-1"}}
	assert.Equal(t, http.StatusUnauthorized, app.webhook(form, "bad"))
	assert.Equal(t, http.StatusOK, app.webhook(form, sign(form.Encode())))
	// redelivery is idempotent
	assert.Equal(t, http.StatusOK, app.webhook(form, sign(form.Encode())))

	code, env = app.do(&app.bob, http.MethodGet, orderPath, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var detail struct {
		Order models.Order `json:"order"`
	}
	decode(t, env, &detail)
	assert.Equal(t, models.OrderStatusCompleted, detail.Order.Status)

	var restaurant models.Restaurant
	require.NoError(t, app.db.First(&restaurant, app.restaurant.ID).Error)
	assert.True(t, decimal.RequireFromString("9.9").Equal(restaurant.TotalEarning), restaurant.TotalEarning.String())

	app.dispatcher.Stop()

	code, env = app.do(&app.bob, http.MethodGet, "/api/me/active-order", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "No active order", env.Message)

	code, env = app.do(&app.bob, http.MethodGet, "/api/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, code)
	var notifs []models.Notification
	decode(t, env, &notifs)
	require.NotEmpty(t, notifs)
	assert.Equal(t, string(services.EventAllBillsPaid), notifs[0].Action)

	code, _ = app.do(&app.bob, http.MethodPatch, fmt.Sprintf("/api/notifications/%d/read", notifs[0].ID), nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = app.do(&app.alice, http.MethodPatch, fmt.Sprintf("/api/notifications/%d/read", notifs[0].ID), nil)
	assert.Equal(t, http.StatusNotFound, code)

	// list views are scoped by role
	var orders []models.Order
	code, env = app.do(&app.owner, http.MethodGet, "/api/orders?status=completed&type=in_house", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &orders)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	code, env = app.do(&app.bob, http.MethodGet, "/api/orders?status=open", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &orders)
	assert.Empty(t, orders)

	code, _ = app.do(&app.alice, http.MethodGet, "/api/orders?created_from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	var invites []models.OrderInvite
	code, env = app.do(&app.bob, http.MethodGet, "/api/order-invites?status=accepted", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &invites)
	require.Len(t, invites, 1)
	assert.Equal(t, invite.ID, invites[0].ID)

	var invoices []models.Invoice
	code, env = app.do(&app.owner, http.MethodGet, "/api/invoices", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &invoices)
	require.Len(t, invoices, 1)
	assert.True(t, invoices[0].Items[0].Paid)

	var items []models.OrderItem
	code, env = app.do(&app.alice, http.MethodGet, fmt.Sprintf("/api/order-items?order_id=%d", order.ID), nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &items)
	assert.Len(t, items, 1)

	// ratings on the completed order
	rating := gin.H{"food_item_rating": 5, "restaurant_rating": 4, "customer_service_rating": 4, "application_rating": 3}
	code, env = app.do(&app.alice, http.MethodPost, orderPath+"/ratings", rating)
	require.Equal(t, http.StatusCreated, code, env.Message)
	code, _ = app.do(&app.alice, http.MethodPost, orderPath+"/ratings", rating)
	assert.Equal(t, http.StatusConflict, code)

	code, env = app.do(&app.bob, http.MethodGet, fmt.Sprintf("/api/restaurants/%d/rating", app.restaurant.ID), nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var avg services.RestaurantRating
	decode(t, env, &avg)
	assert.EqualValues(t, 1, avg.Count)
	assert.True(t, decimal.RequireFromString("4").Equal(avg.Average), avg.Average.String())
}

func TestErrorMapping(t *testing.T) {
	app := newTestApp(t)

	code, _ := app.do(nil, http.MethodGet, "/api/orders/1", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = app.do(&app.alice, http.MethodGet, "/api/orders/999", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = app.do(&app.alice, http.MethodGet, "/api/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = app.do(&app.alice, http.MethodPost, "/api/orders", gin.H{"type": "in_house"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := app.do(&app.alice, http.MethodPost, "/api/orders", gin.H{"type": "pickup", "restaurant_id": app.restaurant.ID})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var order models.Order
	decode(t, env, &order)

	// bob is not a participant
	code, _ = app.do(&app.bob, http.MethodGet, fmt.Sprintf("/api/orders/%d", order.ID), nil)
	assert.Equal(t, http.StatusForbidden, code)

	// customers cannot reach restaurant routes
	code, _ = app.do(&app.alice, http.MethodPost, fmt.Sprintf("/api/restaurant/orders/%d/accept", order.ID), gin.H{"sure": true})
	assert.Equal(t, http.StatusForbidden, code)

	// the order is not paid yet
	code, _ = app.do(&app.owner, http.MethodPost, fmt.Sprintf("/api/restaurant/orders/%d/accept", order.ID), gin.H{"sure": true})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = app.do(&app.owner, http.MethodPost, fmt.Sprintf("/api/restaurant/orders/%d/accept", order.ID), gin.H{"sure": false})
	assert.Equal(t, http.StatusOK, code)

	code, _ = app.do(&app.owner, http.MethodPost, fmt.Sprintf("/api/restaurant/orders/%d/accept", order.ID), gin.H{"sure": false})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = app.do(&app.owner, http.MethodPost, fmt.Sprintf("/api/restaurant/orders/%d/accept", order.ID), gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	// the gateway has never heard of this transaction
	code, _ = app.do(&app.alice, http.MethodPost, "/api/transactions/verify", gin.H{"transaction_id": "nope"})
	assert.Equal(t, http.StatusBadGateway, code)
}
