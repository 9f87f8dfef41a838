package service

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"restaurant-pos/internal/common/cache"
	"restaurant-pos/internal/common/logger"
	deliveryrepo "restaurant-pos/internal/microservices/delivery/repository"
	deliverysvc "restaurant-pos/internal/microservices/delivery/service"
)

// ETAWorker periodically recomputes estimates for all in-flight deliveries
// into the cache. Estimation is decoupled from location ingestion on purpose:
// riders report every few seconds, customers poll every 30.
type ETAWorker struct {
	repo     deliveryrepo.DeliveryRepositoryInterface
	delivery deliverysvc.DeliveryServiceInterface
	cache    *cache.Client
	log      *logger.Logger
	cfg      Config
}

func NewETAWorker(repo deliveryrepo.DeliveryRepositoryInterface, delivery deliverysvc.DeliveryServiceInterface,
	cc *cache.Client, log *logger.Logger, cfg Config) *ETAWorker {
	if cfg.AvgSpeedKMH <= 0 {
		cfg.AvgSpeedKMH = 25
	}
	if cfg.ETAInterval <= 0 {
		cfg.ETAInterval = 30 * time.Second
	}
	return &ETAWorker{repo: repo, delivery: delivery, cache: cc, log: log, cfg: cfg}
}

// Run blocks until ctx is cancelled.
func (w *ETAWorker) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(w.cfg.ETAInterval),
		gocron.NewTask(func() { w.refreshAll(ctx) }),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}
	scheduler.Start()
	w.log.Info("eta_worker_started", map[string]any{"interval": w.cfg.ETAInterval.String()})

	<-ctx.Done()
	return scheduler.Shutdown()
}

func (w *ETAWorker) refreshAll(ctx context.Context) {
	deliveries, err := w.repo.ActiveDeliveries(ctx)
	if err != nil {
		w.log.Error("eta_sweep_failed", err, nil)
		return
	}
	updated := 0
	for _, d := range deliveries {
		if d.RiderID == nil {
			continue
		}
		loc, err := w.delivery.RiderLocation(ctx, *d.RiderID)
		if err != nil || loc == nil {
			continue
		}
		minutes := EstimateMinutes(loc, d, w.cfg.AvgSpeedKMH)
		if minutes == nil {
			continue
		}
		if err := w.cache.SetJSON(ctx, etaKey(d.OrderID), *minutes, 3*w.cfg.ETAInterval); err != nil {
			w.log.Warn("eta_cache_failed", map[string]any{"order_id": d.OrderID})
			continue
		}
		updated++
	}
	w.log.Debug("eta_sweep_done", map[string]any{
		"deliveries": len(deliveries), "updated": updated,
	})
}
