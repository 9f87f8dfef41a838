package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"restaurant-pos/internal/common/cache"
	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/common/mq"
	"restaurant-pos/internal/dataaccess"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/billing"
	"restaurant-pos/internal/microservices/delivery"
	"restaurant-pos/internal/microservices/orders"
	"restaurant-pos/internal/microservices/tracking"
	"restaurant-pos/internal/realtime"
	"restaurant-pos/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	mqClient, err := mq.Dial(cfg.Rabbit.URL())
	if err != nil {
		return err
	}
	defer mqClient.Close()
	if err := mqClient.DeclareAll(); err != nil {
		return err
	}

	redis, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("redis_unavailable", map[string]any{"addr": cfg.Redis.Addr})
		redis = nil
	} else {
		defer redis.Close()
	}

	pub, err := realtime.NewPublisher(mqClient, log)
	if err != nil {
		return err
	}
	defer pub.Close()

	manager := realtime.NewManager(realtime.NewAMQPSource(mqClient, log), realtime.SystemClock(), log)

	hub := realtime.NewHub(log)
	go hub.Run(ctx.Done())

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", healthz(pool, mqClient, redis))

	// Staff endpoints require a role header; tracking is public.
	api := engine.Group("/api", session.Middleware(cfg.Restaurant.ID))
	pubGroup := engine.Group("/api")
	ws := engine.Group("/ws")

	queryCache := dataaccess.NewCache()
	ordersSvc, board := orders.Register(ctx, api, orders.Deps{
		DB:            pool,
		Pub:           pub,
		Manager:       manager,
		Cache:         queryCache,
		Log:           log,
		RestaurantID:  cfg.Restaurant.ID,
		TaxRate:       cfg.Billing.TaxRate,
		PriorityTotal: cfg.Billing.PriorityTotal,
	})
	defer board.Close()

	billing.Register(api, billing.Deps{
		DB:                 pool,
		Orders:             ordersSvc,
		Pub:                pub,
		Log:                log,
		ItemSplitThreshold: cfg.Billing.ItemSplitThreshold,
	})

	deliverySvc := delivery.Register(api, ws, delivery.Deps{
		DB:     pool,
		Cache:  redis,
		Pub:    pub,
		Hub:    hub,
		Log:    log,
		Pickup: domain.LatLng{Lat: cfg.Restaurant.Lat, Lng: cfg.Restaurant.Lng},
	})

	tracking.Register(pubGroup, tracking.Deps{
		DB:           pool,
		Cache:        redis,
		Delivery:     deliverySvc,
		Log:          log,
		RestaurantID: cfg.Restaurant.ID,
		Restaurant: domain.TrackingPlace{
			Name:    cfg.Restaurant.Name,
			Phone:   cfg.Restaurant.Phone,
			Address: cfg.Restaurant.Address,
			Lat:     cfg.Restaurant.Lat,
			Lng:     cfg.Restaurant.Lng,
		},
		AvgSpeedKMH: cfg.Tracking.AvgSpeedKMH,
		ETAInterval: cfg.Tracking.ETAInterval,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server_started", map[string]any{"address": cfg.Server.Address})
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server_stopping", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthz(pool *db.Conn, mqClient *mq.Client, redis *cache.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{"database": "ok", "rabbitmq": "ok", "redis": "ok"}
		healthy := true
		if err := pool.Ping(c.Request.Context()); err != nil {
			checks["database"] = "down"
			healthy = false
		}
		if mqClient.IsClosed() {
			checks["rabbitmq"] = "down"
			healthy = false
		}
		if redis == nil {
			checks["redis"] = "disabled"
		} else if err := redis.Ping(c.Request.Context()); err != nil {
			checks["redis"] = "down"
			healthy = false
		}
		code, status := http.StatusOK, "healthy"
		if !healthy {
			code, status = http.StatusServiceUnavailable, "degraded"
		}
		c.JSON(code, gin.H{"status": status, "checks": checks})
	}
}
