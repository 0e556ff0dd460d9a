package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eshop-platform/inventory-service/internal/config"
	"github.com/eshop-platform/inventory-service/internal/event"
	"github.com/eshop-platform/inventory-service/internal/experiment"
	"github.com/eshop-platform/inventory-service/internal/logger"
	"github.com/eshop-platform/inventory-service/internal/model"
	"github.com/eshop-platform/inventory-service/internal/repo"
	"github.com/eshop-platform/inventory-service/internal/service"
	"github.com/eshop-platform/inventory-service/internal/strategy"
	httptransport "github.com/eshop-platform/inventory-service/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(&model.StockItem{}, &model.Reservation{}, &model.OutboxEvent{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. kafka writer, topic set per message from the outbox row
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Balancer: &kafka.LeastBytes{},
	}

	// 6. repo, strategies, assigner, service
	repository := repo.NewRepository(gdb, rdb, kw, log)
	opt := strategy.NewOptimistic(repository)
	pess := strategy.NewPessimistic(repository)

	var assigner experiment.Assigner
	switch cfg.Reservation.Strategy {
	case "split":
		assigner = experiment.NewSplit(cfg.Reservation.PessimisticPercent, rdb, log)
	default:
		assigner = experiment.Static{Strategy: cfg.Reservation.Strategy}
	}

	topics := event.TopicMap{
		Reserved:  cfg.Kafka.Topics.Reserved,
		Committed: cfg.Kafka.Topics.Committed,
		Released:  cfg.Kafka.Topics.Released,
	}
	svc := service.NewReservationService(repository, opt, pess, assigner, topics,
		cfg.Reservation.Source, cfg.Reservation.DefaultTTL(), log)

	// 7. optional expiry sweeper
	if cfg.Reservation.SweepInterval() > 0 {
		sweeper := service.NewExpirySweeper(svc, cfg.Reservation.SweepInterval(), cfg.Reservation.SweepBatch, log)
		sweeper.Start(context.Background())
		defer sweeper.Stop()
	}

	// 8. gin router
	router := httptransport.NewRouter(svc, cfg.RateLimit, log)

	// 9. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("inventory-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
