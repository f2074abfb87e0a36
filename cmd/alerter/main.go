package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/shop-fulfillment/internal/config"
	"github.com/example/shop-fulfillment/internal/domain/alert"
	"github.com/example/shop-fulfillment/internal/infrastructure/kafka"
	"github.com/example/shop-fulfillment/internal/infrastructure/store"
)

// Standalone alert generator. Runs the same stock event observer the API
// binary embeds, as its own consumer group, for deployments that scale the
// alerting path separately.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	consumerGroup := "stock-alerter"

	log.Println("[Alerter] ========================================")
	log.Println("[Alerter] Stock Alert Service")
	log.Println("[Alerter] ========================================")
	log.Printf("[Alerter] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[Alerter] Topic: %s", cfg.KafkaTopic)
	log.Printf("[Alerter] Group: %s", consumerGroup)
	log.Printf("[Alerter] Low stock threshold: %d", cfg.LowStockThreshold)

	if cfg.DatabaseURL == "" {
		log.Fatal("[Alerter] DATABASE_URL environment variable is required")
	}
	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Alerter] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[Alerter] Connected to PostgreSQL")

	pg := store.NewPostgresStore(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		log.Fatalf("[Alerter] Failed to ensure schema: %v", err)
	}

	alertSvc := alert.NewService(pg)
	handler := alert.NewHandler(alertSvc, alert.Thresholds{Low: cfg.LowStockThreshold})

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup)
	defer consumer.Close()

	go func() {
		log.Println("[Alerter] Starting event consumer...")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil {
			log.Printf("[Alerter] Consumer error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Alerter] Shutting down...")
	cancel()
}
