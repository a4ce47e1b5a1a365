package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/crxtrade/ledger/internal/config"
	"github.com/crxtrade/ledger/internal/logger"
	"github.com/crxtrade/ledger/internal/model"
	"github.com/crxtrade/ledger/internal/repo"
	"github.com/crxtrade/ledger/internal/service"
	httptransport "github.com/crxtrade/ledger/internal/transport/http"
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
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(
		&model.Wallet{},
		&model.DepositRequest{},
		&model.WithdrawalRequest{},
		&model.BonusCode{},
		&model.BonusRedemption{},
		&model.PriceSnapshot{},
		&model.AssetTransaction{},
		&model.OutboxEvent{},
	); err != nil {
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

	// 5. kafka writer
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	// 6. repo & services
	repository := repo.NewRepository(gdb, rdb, kw, log)
	ledger := service.NewLedgerService(repository, log)
	svcs := httptransport.Services{
		Ledger:   ledger,
		Requests: service.NewRequestService(repository, ledger, cfg.Withdrawal.MinAmount, log),
		Bonus:    service.NewBonusService(repository, ledger, log),
		Trade:    service.NewTradeService(repository, ledger, cfg.Market.DefaultPrice, log),
	}

	// 7. gin router
	router := httptransport.NewRouter(svcs, cfg.RateLimit, cfg.Admin, log)

	// 8. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("ledger-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
