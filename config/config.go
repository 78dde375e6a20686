package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds runtime settings read from the environment (and .env via godotenv in main).
type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	DBDriver string
	DBDSN    string

	JWTSecret string

	// MaxOrderInviteTry caps how many invites one user may send to the same invitee per order.
	MaxOrderInviteTry int
	PaymentCurrency   string

	Gateway GatewayConfig

	RabbitMQURL string
	RedisAddr   string
	RedisDB     int

	DispatchWorkers   int
	DispatchQueueSize int

	WebhookRateLimit int
	CORSOrigin       string
}

type GatewayConfig struct {
	MerchantEmail string
	SecretKey     string
	VerifyURL     string
	CaptureURL    string
	Timeout       time.Duration
	WebhookSecret string
}

// Load reads and validates the configuration, applying defaults for missing values.
func Load() (Config, error) {
	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DBDriver:        strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBDSN:           getEnv("DB_DSN", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		PaymentCurrency: strings.ToUpper(getEnv("PAYMENT_CURRENCY", "SAR")),
		Gateway: GatewayConfig{
			MerchantEmail: getEnv("GATEWAY_MERCHANT_EMAIL", ""),
			SecretKey:     getEnv("GATEWAY_SECRET_KEY", ""),
			VerifyURL:     getEnv("GATEWAY_VERIFY_URL", "https://www.paytabs.com/apiv2/verify_payment_transaction"),
			CaptureURL:    getEnv("GATEWAY_CAPTURE_URL", "https://www.paytabs.com/apiv3/release_capture_preauth"),
			WebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
		},
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		CORSOrigin:  getEnv("CORS_ORIGIN", "*"),
	}

	var err error
	if cfg.MaxOrderInviteTry, err = getEnvInt("MAX_NUMBER_OF_ORDER_INVITE_TRY", 3); err != nil {
		return Config{}, fmt.Errorf("invalid MAX_NUMBER_OF_ORDER_INVITE_TRY: %w", err)
	}
	if cfg.MaxOrderInviteTry <= 0 {
		return Config{}, fmt.Errorf("MAX_NUMBER_OF_ORDER_INVITE_TRY must be > 0")
	}

	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Config{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	if cfg.DispatchWorkers, err = getEnvInt("DISPATCH_WORKERS", 4); err != nil {
		return Config{}, fmt.Errorf("invalid DISPATCH_WORKERS: %w", err)
	}
	if cfg.DispatchWorkers <= 0 {
		return Config{}, fmt.Errorf("DISPATCH_WORKERS must be > 0")
	}

	if cfg.DispatchQueueSize, err = getEnvInt("DISPATCH_QUEUE_SIZE", 256); err != nil {
		return Config{}, fmt.Errorf("invalid DISPATCH_QUEUE_SIZE: %w", err)
	}
	if cfg.DispatchQueueSize <= 0 {
		return Config{}, fmt.Errorf("DISPATCH_QUEUE_SIZE must be > 0")
	}

	if cfg.WebhookRateLimit, err = getEnvInt("WEBHOOK_RATE_LIMIT", 20); err != nil {
		return Config{}, fmt.Errorf("invalid WEBHOOK_RATE_LIMIT: %w", err)
	}
	if cfg.WebhookRateLimit <= 0 {
		return Config{}, fmt.Errorf("WEBHOOK_RATE_LIMIT must be > 0")
	}

	if cfg.Gateway.Timeout, err = getEnvDuration("GATEWAY_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}

	switch cfg.DBDriver {
	case "mysql", "postgres":
		if cfg.DBDSN == "" {
			return Config{}, fmt.Errorf("DB_DSN must not be empty for driver %s", cfg.DBDriver)
		}
	case "sqlite":
		if cfg.DBDSN == "" {
			cfg.DBDSN = "restaurant.db"
		}
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must not be empty")
	}
	if len(cfg.PaymentCurrency) != 3 {
		return Config{}, fmt.Errorf("PAYMENT_CURRENCY must be a 3-letter code")
	}

	return cfg, nil
}

// InitDB opens the database selected by DB_DRIVER.
func InitDB(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DBDSN)
	case "postgres":
		dialector = postgres.Open(cfg.DBDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	logLevel := logger.Warn
	if cfg.GinMode == "release" {
		logLevel = logger.Error
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	if cfg.DBDriver == "sqlite" {
		// sqlite serializes writers; a single connection keeps transactions from failing with SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
