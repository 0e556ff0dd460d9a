package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/eshop-platform/inventory-service/internal/config"
	"github.com/eshop-platform/inventory-service/internal/logger"
	"github.com/eshop-platform/inventory-service/internal/model"
	"github.com/eshop-platform/inventory-service/internal/outbox"
	"github.com/eshop-platform/inventory-service/internal/repo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/segmentio/kafka-go"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(&model.OutboxEvent{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Balancer: &kafka.LeastBytes{},
	}

	repository := repo.NewRepository(gdb, nil, kw, log)
	publisher := outbox.NewPublisher(repository, repository, cfg.Outbox, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher.Start(ctx)
	log.Info("outbox-publisher started")
	<-ctx.Done()
	publisher.Stop()
	log.Info("outbox-publisher stopped")
}
