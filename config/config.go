package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the payment service.
type Config struct {
	Env  string
	Port string

	PostgresURL      string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	SeedPlans        bool

	PaystackSecretKey string
	PaystackBaseURL   string
	CallbackURL       string
	GatewayTimeout    time.Duration

	Currency       string
	Channels       []string
	FixedTariff    decimal.Decimal
	CountryTariffs map[string]decimal.Decimal

	RedisURL        string
	VerifyCacheTTL  time.Duration
	EventBus        string
	PaymentTopicARN string
	KafkaBrokers    []string
	KafkaTopic      string

	CallbackQueueURL  string
	ReconcileEnabled  bool
	ReconcileInterval time.Duration
	ReconcileAfter    time.Duration
	ReconcileBatch    int

	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	AWSRegion         string
	AWSEndpoint       string
	AWSAccessKeyID    string
	AWSSecretKey      string
	UseSecrets        bool
	CloudWatchEnabled bool
	LogGroup          string
}

// SecretSource is the subset of the Secrets Manager client used for overrides.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// LoadConfig reads configuration from the environment. Outside release mode a
// .env file is loaded first when present.
func LoadConfig() (*Config, error) {
	if os.Getenv("GIN_MODE") != "release" {
		_ = godotenv.Load()
	}

	fixed, err := decimal.NewFromString(getEnv("FIXED_TARIFF", "5000"))
	if err != nil {
		return nil, fmt.Errorf("invalid FIXED_TARIFF: %w", err)
	}
	tariffs, err := parseTariffs(os.Getenv("COUNTRY_TARIFFS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:  getEnv("APP_ENV", "production"),
		Port: getEnv("PORT", getEnv("APPLICATION_PORT", "8000")),

		PostgresURL:      os.Getenv("POSTGRES_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Africa/Nairobi"),
		SeedPlans:        getBool("SEED_PLANS", false),

		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		CallbackURL:       os.Getenv("CALLBACK_URL"),
		GatewayTimeout:    getDuration("GATEWAY_TIMEOUT", 15*time.Second),

		Currency:       getEnv("PAYMENT_CURRENCY", "KES"),
		Channels:       splitList(getEnv("PAYMENT_CHANNELS", "mobile_money,card")),
		FixedTariff:    fixed,
		CountryTariffs: tariffs,

		RedisURL:        os.Getenv("REDIS_URL"),
		VerifyCacheTTL:  getDuration("VERIFY_CACHE_TTL", 10*time.Minute),
		EventBus:        strings.ToLower(getEnv("EVENT_BUS", "none")),
		PaymentTopicARN: os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "payment-events"),

		CallbackQueueURL:  os.Getenv("CALLBACK_QUEUE_URL"),
		ReconcileEnabled:  getBool("RECONCILE_ENABLED", true),
		ReconcileInterval: getDuration("RECONCILE_INTERVAL", 5*time.Minute),
		ReconcileAfter:    getDuration("RECONCILE_AFTER", 15*time.Minute),
		ReconcileBatch:    getInt("RECONCILE_BATCH", 50),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 5),

		AWSRegion:         getEnv("AWS_REGION", "eu-west-1"),
		AWSEndpoint:       os.Getenv("AWS_ENDPOINT"),
		AWSAccessKeyID:    os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
		UseSecrets:        getBool("AWS_USE_SECRETS", false),
		CloudWatchEnabled: getBool("CLOUDWATCH_ENABLED", false),
		LogGroup:          getEnv("CLOUDWATCH_LOG_GROUP", "/hosting-payments"),
	}
	return cfg, nil
}

// ApplySecrets overrides DB credentials and the Paystack key from Secrets
// Manager. Missing secrets leave the environment values in place.
func (c *Config) ApplySecrets(ctx context.Context, sm SecretSource) {
	if dbjson, err := sm.GetSecret(ctx, "payments/DB_CREDENTIALS"); err == nil && dbjson != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(dbjson), &m); err == nil {
			override(&c.PostgresUser, m["POSTGRES_USER"])
			override(&c.PostgresPassword, m["POSTGRES_PASSWORD"])
			override(&c.PostgresDB, m["POSTGRES_DB"])
			override(&c.PostgresHost, m["POSTGRES_HOST"])
			override(&c.PostgresPort, m["POSTGRES_PORT"])
		}
	}
	if v, err := sm.GetSecret(ctx, "payments/PAYSTACK_SECRET_KEY"); err == nil {
		override(&c.PaystackSecretKey, v)
	}
	if v, err := sm.GetSecret(ctx, "payments/JWT_SECRET"); err == nil {
		override(&c.JWTSecret, v)
	}
}

// Validate reports configuration the service cannot start without.
func (c *Config) Validate() error {
	if c.PostgresURL == "" && (c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "") {
		return fmt.Errorf("database config incomplete")
	}
	if c.PaystackSecretKey == "" {
		return fmt.Errorf("PAYSTACK_SECRET_KEY not set")
	}
	if c.CallbackURL == "" {
		return fmt.Errorf("CALLBACK_URL not set")
	}
	if c.Currency == "" {
		return fmt.Errorf("PAYMENT_CURRENCY not set")
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive, got %s", c.GatewayTimeout)
	}
	if c.RedisURL != "" && c.VerifyCacheTTL <= 0 {
		return fmt.Errorf("VERIFY_CACHE_TTL must be positive, got %s", c.VerifyCacheTTL)
	}
	if c.ReconcileEnabled && (c.ReconcileInterval <= 0 || c.ReconcileAfter <= 0) {
		return fmt.Errorf("RECONCILE_INTERVAL and RECONCILE_AFTER must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	switch c.EventBus {
	case "none", "sns", "kafka":
	default:
		return fmt.Errorf("unknown EVENT_BUS %q", c.EventBus)
	}
	if c.EventBus == "sns" && c.PaymentTopicARN == "" {
		return fmt.Errorf("PAYMENT_SNS_TOPIC_ARN required for EVENT_BUS=sns")
	}
	if c.EventBus == "kafka" && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS required for EVENT_BUS=kafka")
	}
	return nil
}

// DSN builds the Postgres connection string. POSTGRES_URL wins when set.
func (c *Config) DSN() string {
	if c.PostgresURL != "" {
		return c.PostgresURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// parseTariffs reads "KE=5000,UG=150000" into a country code keyed map.
func parseTariffs(raw string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, pair := range splitList(raw) {
		code, amount, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid COUNTRY_TARIFFS entry %q", pair)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("invalid COUNTRY_TARIFFS amount for %s: %w", code, err)
		}
		out[strings.ToUpper(strings.TrimSpace(code))] = d
	}
	return out, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
