package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-marketplace/internal/api"
	"ms-marketplace/internal/auth"
	"ms-marketplace/internal/config"
	"ms-marketplace/internal/database/migrations"
	"ms-marketplace/internal/kafka"
	"ms-marketplace/internal/ledger"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/notification"
	"ms-marketplace/internal/promo"
	"ms-marketplace/internal/promo/redislock"
	"ms-marketplace/internal/reconciler"
	"ms-marketplace/internal/subscription"
	"ms-marketplace/internal/webhook"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	if cfg.Database.DSN == "" {
		logger.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	return bunDB, redisClient
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Marketplace Payment Engine initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	migrationRunner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := migrationRunner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	defer migrationRunner.Close()

	logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	requiredTopics := []string{
		cfg.Kafka.Topics.BuyerNotifications,
		cfg.Kafka.Topics.SellerNotifications,
	}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
		logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		logger.Info("KAFKA", "Required topics ensured successfully")
	}

	store := &ledger.DB{Bun: bunDB}

	dispatcher := notification.NewDispatcher(producer, notification.Topics{
		Buyer:  cfg.Kafka.Topics.BuyerNotifications,
		Seller: cfg.Kafka.Topics.SellerNotifications,
	}, logger)
	defer dispatcher.Close()

	verifier := webhook.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.AllowUnverified, logger)
	reconcilerService := reconciler.NewService(store, dispatcher, cfg.Webhook.AmountEpsilon, logger)

	promoLock := redislock.NewLock(redisClient)
	promoCoordinator := promo.NewCoordinator(store, promoLock, logger)
	subscriptionService := subscription.NewService(store, promoCoordinator, cfg.Subscription.Period, logger)

	webhookHandler := &webhook.Handler{
		Verifier:   verifier,
		Reconciler: reconcilerService,
		Logger:     logger,
	}

	apiHandler := &api.Handler{
		Orders:        reconcilerService,
		OrderStore:    store,
		Subscriptions: subscriptionService,
		Promos:        promoCoordinator,
		Logger:        logger,
	}

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	// The gateway authenticates via the signature header, not a bearer token.
	r.Post("/webhooks/payment", webhookHandler.HandleGatewayEvent)
	logger.Info("ROUTER", "Gateway webhook endpoint registered at /webhooks/payment")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		logger.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			apiHandler.RegisterRoutes(r)
		})
		logger.Info("ROUTER", "Order, subscription and promo routes registered under /api")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Marketplace Payment Engine running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Marketplace Payment Engine shutdown complete")
	}
}
