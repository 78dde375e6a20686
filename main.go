package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/yeremiapane/restaurant-order-engine/config"
	"github.com/yeremiapane/restaurant-order-engine/database"
	"github.com/yeremiapane/restaurant-order-engine/kds"
	"github.com/yeremiapane/restaurant-order-engine/notification"
	"github.com/yeremiapane/restaurant-order-engine/projection"
	"github.com/yeremiapane/restaurant-order-engine/router"
	"github.com/yeremiapane/restaurant-order-engine/services"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	utils.InitLogger(cfg.LogLevel)
	utils.SetJWTSecret(cfg.JWTSecret)
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate: %v", err)
	}

	gatewayConfig := services.GatewayConfig{
		MerchantEmail: cfg.Gateway.MerchantEmail,
		SecretKey:     cfg.Gateway.SecretKey,
		VerifyURL:     cfg.Gateway.VerifyURL,
		CaptureURL:    cfg.Gateway.CaptureURL,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Timeout:       cfg.Gateway.Timeout,
	}
	if err := gatewayConfig.Validate(); err != nil {
		utils.InfoLogger.Warnf("Payment gateway is not fully configured: %v", err)
	}
	if gatewayConfig.WebhookSecret == "" {
		utils.InfoLogger.Warn("GATEWAY_WEBHOOK_SECRET is empty, webhook signatures are not checked")
	}
	gateway := services.NewGatewayService(gatewayConfig)

	// Current-order projection: the database always, redis in front of it when configured.
	var activeOrders projection.Store = projection.NewGormStore(db)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			utils.InfoLogger.Warnf("Redis at %s unavailable, using the database only: %v", cfg.RedisAddr, err)
			rdb.Close()
		} else {
			defer rdb.Close()
			activeOrders = projection.Chain{projection.NewRedisStore(rdb), activeOrders}
			utils.InfoLogger.Infof("Redis connected at %s", cfg.RedisAddr)
		}
	}

	notifications := notification.NewStore(db)
	notifiers := notification.Fanout{notifications, kds.Default()}
	if cfg.RabbitMQURL != "" {
		rabbit, err := notification.DialRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			utils.InfoLogger.Warnf("RabbitMQ unavailable, notifications stay local: %v", err)
		} else {
			defer rabbit.Close()
			notifiers = append(notifiers, rabbit)
		}
	}

	dispatcher := services.NewDispatcher(activeOrders, notifiers, cfg.DispatchWorkers, cfg.DispatchQueueSize)
	dispatcher.Start()

	r := router.SetupRouter(router.Deps{
		Orders:           services.NewOrderService(db, dispatcher, gateway),
		Invoices:         services.NewInvoiceService(db, dispatcher),
		Cart:             services.NewCartService(db, dispatcher),
		Invites:          services.NewInviteService(db, dispatcher, cfg.MaxOrderInviteTry),
		Transactions:     services.NewTransactionService(db, dispatcher, gateway, cfg.PaymentCurrency),
		Ratings:          services.NewRatingService(db),
		Notifications:    notifications,
		ActiveOrders:     activeOrders,
		Hub:              kds.Default(),
		ValidateWebhook:  gateway.ValidateSignature,
		WebhookRateLimit: cfg.WebhookRateLimit,
		CORSOrigin:       cfg.CORSOrigin,
		HSTS:             cfg.GinMode == "release",
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Infof("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.InfoLogger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.Errorf("Server shutdown: %v", err)
	}
	// requests are drained, so no new events arrive while the queues empty
	dispatcher.Stop()
}
