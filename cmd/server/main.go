package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/catalog"
	"storefront/internal/payment"
	"storefront/internal/payment/paypal"
	"storefront/internal/payment/stripe"
	"storefront/internal/redisclient"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStorefront)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	currency, err := payment.ParseCurrency(cfg.Checkout.DefaultCurrency)
	if err != nil {
		log.Fatalf("Invalid default currency: %v", err)
	}

	var providers []payment.Provider
	if cfg.Stripe.SecretKey != "" {
		providers = append(providers, stripe.NewProvider(cfg.Stripe.SecretKey))
	}
	if cfg.PayPal.ClientID != "" {
		providers = append(providers, paypal.NewProvider(ctx, paypal.Config{
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			BaseURL:      cfg.PayPal.BaseURL,
		}))
	}
	if len(providers) == 0 {
		logger.Warn("No payment provider configured, checkout is disabled")
	}
	registry := payment.NewRegistry(providers...)

	sessions := session.NewRegistry(session.Deps{
		Backend:           redisClient,
		Index:             redisClient,
		Providers:         registry,
		Orders:            db,
		Events:            eventPublisher,
		ConfirmationDelay: cfg.Checkout.ConfirmationDelay,
	})
	tokens := session.NewTokens(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL)

	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, redisClient, cfg.Catalog.CacheTTL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	restockConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory, cfg.Kafka.RestockConsumerGroup)
	restockWorker := worker.NewRestockWorker(restockConsumer, sessions, redisClient, redisClient, worker.NewLogNotifier())
	go func() {
		if err := restockWorker.Start(workerCtx); err != nil {
			log.Printf("Restock worker error: %v", err)
		}
	}()

	janitor := worker.NewSessionJanitor(sessions, cfg.Session.IdleTTL, time.Minute)
	go janitor.Start(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Deps{
		Sessions:        sessions,
		Tokens:          tokens,
		Catalog:         catalogClient,
		Orders:          db,
		Providers:       registry,
		DefaultCurrency: currency,
		ReadyChecks: map[string]api.Pinger{
			"postgres": db,
			"redis":    redisClient,
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if err := restockWorker.Stop(); err != nil {
		log.Printf("Error stopping restock worker: %v", err)
	}

	log.Println("Server exited")
}
