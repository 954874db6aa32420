package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server       ServerConfig
	Webhook      WebhookConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Database     DatabaseConfig
	Subscription SubscriptionConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type WebhookConfig struct {
	// Secret is the shared secret used to verify gateway signatures. When a
	// secret is configured verification is mandatory and mismatches fail
	// closed.
	Secret string
	// AllowUnverified skips signature verification when no secret is set.
	// Local development only; the service logs a security warning whenever
	// this path is active.
	AllowUnverified bool
	// AmountEpsilon is the tolerance used when cross-checking the settled
	// amount against the order total.
	AmountEpsilon float64
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Topics  TopicConfig
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type TopicConfig struct {
	BuyerNotifications  string
	SellerNotifications string
}

type SubscriptionConfig struct {
	// Period is the billing period granted per purchase or renewal.
	Period time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8086"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Webhook: WebhookConfig{
			Secret:          getEnv("GATEWAY_WEBHOOK_SECRET", ""),
			AllowUnverified: getEnvBool("ALLOW_UNVERIFIED_WEBHOOKS", false),
			AmountEpsilon:   getEnvFloat("AMOUNT_EPSILON", 0.01),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Subscription: SubscriptionConfig{
			Period: time.Duration(getEnvInt("SUBSCRIPTION_PERIOD_DAYS", 30)) * 24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			Topics: TopicConfig{
				BuyerNotifications:  getEnv("KAFKA_TOPIC_BUYER", "marketplace.notifications.buyer"),
				SellerNotifications: getEnv("KAFKA_TOPIC_SELLER", "marketplace.notifications.seller"),
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
