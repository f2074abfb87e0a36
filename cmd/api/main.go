package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/shop-fulfillment/internal/api"
	"github.com/example/shop-fulfillment/internal/auth"
	"github.com/example/shop-fulfillment/internal/config"
	"github.com/example/shop-fulfillment/internal/domain/alert"
	"github.com/example/shop-fulfillment/internal/domain/order"
	"github.com/example/shop-fulfillment/internal/domain/stock"
	"github.com/example/shop-fulfillment/internal/email"
	"github.com/example/shop-fulfillment/internal/infrastructure/kafka"
	"github.com/example/shop-fulfillment/internal/infrastructure/store"
	"github.com/example/shop-fulfillment/internal/notification"
	"github.com/example/shop-fulfillment/internal/sms"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("[API] JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[API] JWT_SECRET must be at least 32 characters long")
	}

	log.Println("[API] ========================================")
	log.Println("[API] Shop Fulfillment Service")
	log.Println("[API] ========================================")
	log.Printf("[API] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[API] Topic: %s", cfg.KafkaTopic)
	log.Printf("[API] Projections: %v", cfg.Projections)

	// Document store: PostgreSQL when configured, in-memory otherwise.
	var docStore store.DocStore
	if cfg.DatabaseURL != "" {
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()

		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("[API] Failed to ensure schema: %v", err)
		}
		docStore = pg
		log.Println("[API] Store: PostgreSQL")
	} else {
		docStore = store.NewMemoryStore()
		log.Println("[API] Store: in-memory (DATABASE_URL not set)")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	// Notification channels.
	emailSender := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	smsClient := sms.NewClient(cfg.SMSGatewayURL, cfg.SMSGatewayAPIKey, cfg.SMSSender, cfg.NotificationTimeout)
	dispatcher := notification.NewDispatcher(emailSender, smsClient, cfg.SMSCountryPrefix, cfg.NotificationTimeout)

	// Domain services.
	ledger := stock.NewService(docStore, producer)
	orderSvc := order.NewService(docStore, ledger, dispatcher, producer, cfg.Projections)
	alertSvc := alert.NewService(docStore)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenExpiry)

	// In-process alert observer on the stock event stream.
	alertHandler := alert.NewHandler(alertSvc, alert.Thresholds{Low: cfg.LowStockThreshold})
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "api-alerter")
	defer consumer.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("[API] Starting alert consumer...")
		if err := consumer.Consume(ctx, alertHandler.HandleEvent); err != nil {
			if ctx.Err() == nil {
				log.Printf("[API] Alert consumer error: %v", err)
			}
		}
	}()

	handlers := api.NewHandlers(orderSvc, ledger, alertSvc, docStore, cfg.Projections)
	authHandlers := api.NewAuthHandlers(docStore, jwtService)
	router := api.NewRouter(handlers, authHandlers, jwtService)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	wg.Wait()
}
