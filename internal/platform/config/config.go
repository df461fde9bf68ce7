package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultJWTSecret = "a-very-secret-key-should-be-longer-and-random"

// Config holds application configuration.
type Config struct {
	DatabaseURL   string
	Port          string
	IsProduction  bool
	EnableDBCheck bool
	JWTSecret     string
	JWTIssuer     string

	StorageDriver  string
	MigrationsPath string

	// Debt ledger
	DefaultCreditLimit    decimal.Decimal
	ReconciliationEpsilon decimal.Decimal
	PaymentPatternWindow  time.Duration

	// Event publishing; empty brokers disables it
	KafkaBrokers   string
	KafkaDebtTopic string

	RateLimit          string
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("ENABLE_DB_CHECK", false)
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "credit-ledger")
	v.SetDefault("STORAGE_DRIVER", StoragePostgres)
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")
	v.SetDefault("DEFAULT_CREDIT_LIMIT", "0")
	v.SetDefault("RECONCILIATION_EPSILON", "0.01")
	v.SetDefault("PAYMENT_PATTERN_WINDOW", "4380h")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_DEBT_TOPIC", "debt-events")
	v.SetDefault("RATE_LIMIT", "100-M")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	// Environment variables override defaults and .env values.
	v.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:    v.GetString("PGSQL_URL"),
		Port:           v.GetString("PORT"),
		IsProduction:   v.GetBool("IS_PRODUCTION"),
		EnableDBCheck:  v.GetBool("ENABLE_DB_CHECK"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTIssuer:      v.GetString("JWT_ISSUER"),
		StorageDriver:  strings.ToLower(v.GetString("STORAGE_DRIVER")),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),
		KafkaBrokers:   v.GetString("KAFKA_BROKERS"),
		KafkaDebtTopic: v.GetString("KAFKA_DEBT_TOPIC"),
		RateLimit:      v.GetString("RATE_LIMIT"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	switch cfg.StorageDriver {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			log.Println("Warning: PGSQL_URL environment variable not set.")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q: must be %q or %q", cfg.StorageDriver, StoragePostgres, StorageMemory)
	}

	if cfg.JWTSecret == "" || cfg.JWTSecret == defaultJWTSecret {
		if cfg.IsProduction {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = defaultJWTSecret
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	var err error
	if cfg.DefaultCreditLimit, err = decimal.NewFromString(v.GetString("DEFAULT_CREDIT_LIMIT")); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_CREDIT_LIMIT: %w", err)
	}
	if cfg.DefaultCreditLimit.IsNegative() {
		return nil, fmt.Errorf("invalid DEFAULT_CREDIT_LIMIT: must not be negative")
	}

	if cfg.ReconciliationEpsilon, err = decimal.NewFromString(v.GetString("RECONCILIATION_EPSILON")); err != nil {
		return nil, fmt.Errorf("invalid RECONCILIATION_EPSILON: %w", err)
	}
	if cfg.ReconciliationEpsilon.IsNegative() {
		return nil, fmt.Errorf("invalid RECONCILIATION_EPSILON: must not be negative")
	}

	windowStr := v.GetString("PAYMENT_PATTERN_WINDOW")
	cfg.PaymentPatternWindow, err = time.ParseDuration(windowStr)
	if err != nil || cfg.PaymentPatternWindow <= 0 {
		cfg.PaymentPatternWindow = 4380 * time.Hour
		log.Printf("Warning: Invalid value for PAYMENT_PATTERN_WINDOW ('%s'). Defaulting to %s.\n", windowStr, cfg.PaymentPatternWindow)
	}

	for _, origin := range strings.Split(v.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, nil
}
