package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-order-engine/controllers"
	"github.com/yeremiapane/restaurant-order-engine/kds"
	"github.com/yeremiapane/restaurant-order-engine/middlewares"
	"github.com/yeremiapane/restaurant-order-engine/models"
	"github.com/yeremiapane/restaurant-order-engine/notification"
	"github.com/yeremiapane/restaurant-order-engine/projection"
	"github.com/yeremiapane/restaurant-order-engine/services"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Orders        *services.OrderService
	Invoices      *services.InvoiceService
	Cart          *services.CartService
	Invites       *services.InviteService
	Transactions  *services.TransactionService
	Ratings       *services.RatingService
	Notifications *notification.Store
	ActiveOrders  projection.Store
	Hub           *kds.Hub

	// ValidateWebhook checks a gateway callback body against its signature header.
	ValidateWebhook  func(body []byte, signature string) bool
	WebhookRateLimit int
	CORSOrigin       string
	HSTS             bool
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders(d.HSTS))
	r.Use(middlewares.CORSMiddlewares(d.CORSOrigin))

	orderCtrl := controllers.NewOrderController(d.Orders, d.Invoices)
	cartCtrl := controllers.NewCartController(d.Cart)
	inviteCtrl := controllers.NewInviteController(d.Invites)
	paymentCtrl := controllers.NewPaymentController(d.Transactions)
	restaurantCtrl := controllers.NewRestaurantController(d.Orders)
	notificationCtrl := controllers.NewNotificationController(d.Notifications, d.ActiveOrders)
	kdsCtrl := controllers.NewKDSController(d.Hub, d.CORSOrigin)
	ratingCtrl := controllers.NewRatingController(d.Ratings)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	validate := d.ValidateWebhook
	if validate == nil {
		validate = func([]byte, string) bool { return true }
	}
	limit := d.WebhookRateLimit
	if limit <= 0 {
		limit = 20
	}
	webhookLimiter := middlewares.NewRateLimiter(limit, limit)
	r.POST("/webhooks/gateway",
		webhookLimiter.RateLimit(),
		middlewares.LogPaymentRequest(),
		middlewares.WebhookSignature(validate),
		paymentCtrl.Webhook,
	)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	r.GET("/ws", middlewares.AuthMiddleware(), kdsCtrl.Handler)

	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware())

	// ORDERS
	api.GET("/orders", orderCtrl.ListOrders)
	api.POST("/orders", orderCtrl.CreateOrder)
	api.GET("/orders/:order_id", orderCtrl.GetOrder)
	api.POST("/orders/:order_id/leave", orderCtrl.LeaveOrder)
	api.POST("/orders/:order_id/confirm", orderCtrl.ConfirmItems)
	api.POST("/orders/:order_id/checkout", orderCtrl.Checkout)
	api.GET("/orders/:order_id/invoice", orderCtrl.GetInvoice)
	api.GET("/invoices", orderCtrl.ListInvoices)

	// CART
	api.GET("/order-items", cartCtrl.ListItems)
	api.POST("/orders/:order_id/items", cartCtrl.AddItem)
	api.PATCH("/order-items/:item_id", cartCtrl.EditItem)
	api.DELETE("/order-items/:item_id", cartCtrl.DeleteItem)

	// INVITES
	api.GET("/order-invites", inviteCtrl.ListOrderInvites)
	api.POST("/orders/:order_id/invites", inviteCtrl.InviteToOrder)
	api.PATCH("/order-invites/:invite_id", inviteCtrl.RespondToOrderInvite)
	api.POST("/order-items/:item_id/invites", inviteCtrl.InviteToItem)
	api.PATCH("/order-item-invites/:invite_id", inviteCtrl.RespondToItemInvite)

	// PAYMENTS
	payments := api.Group("")
	payments.Use(middlewares.LogPaymentRequest())
	{
		payments.POST("/orders/:order_id/transactions", paymentCtrl.CreateTransaction)
		payments.GET("/transactions/:transaction_id", paymentCtrl.GetTransaction)
		payments.POST("/transactions/verify", paymentCtrl.VerifyTransaction)
	}

	// RATINGS
	api.POST("/orders/:order_id/ratings", ratingCtrl.RateOrder)
	api.GET("/restaurants/:restaurant_id/rating", ratingCtrl.GetRestaurantRating)

	// NOTIFICATIONS
	api.GET("/notifications", notificationCtrl.GetNotifications)
	api.PATCH("/notifications/:notif_id/read", notificationCtrl.MarkRead)
	api.GET("/me/active-order", notificationCtrl.GetActiveOrder)

	// RESTAURANT
	restaurant := api.Group("/restaurant")
	restaurant.Use(middlewares.RequireRole(models.RoleRestaurant, models.RoleStaff))
	{
		restaurant.POST("/orders/:order_id/accept", restaurantCtrl.AcceptOrder)
		restaurant.POST("/orders/:order_id/deliver", restaurantCtrl.DeliverOrder)
	}

	return r
}
