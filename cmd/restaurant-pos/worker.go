package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"restaurant-pos/internal/common/cache"
	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/common/logger"
	deliveryrepo "restaurant-pos/internal/microservices/delivery/repository"
	deliverysvc "restaurant-pos/internal/microservices/delivery/service"
	ordersrepo "restaurant-pos/internal/microservices/orders/repository"
	"restaurant-pos/internal/microservices/tracking/service"
)

var etaWorkerCmd = &cobra.Command{
	Use:   "eta-worker",
	Short: "Start the delivery ETA estimator",
	Long:  "Recomputes ETA estimates for all in-flight deliveries into redis on a fixed cadence",
	RunE:  runETAWorker,
}

func runETAWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New("eta-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	redis, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer redis.Close()

	repo := deliveryrepo.New(pool)
	// The worker reads rider state only, so it runs without the feed
	// publisher or websocket hub.
	deliverySvc := deliverysvc.New(repo, ordersrepo.New(pool), redis, nil, nil, log, deliverysvc.Config{})

	worker := service.NewETAWorker(repo, deliverySvc, redis, log, service.Config{
		AvgSpeedKMH: cfg.Tracking.AvgSpeedKMH,
		ETAInterval: cfg.Tracking.ETAInterval,
	})
	return worker.Run(ctx)
}
