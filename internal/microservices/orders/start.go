package orders

import (
	"context"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/dataaccess"
	"restaurant-pos/internal/microservices/orders/handlers"
	"restaurant-pos/internal/microservices/orders/repository"
	"restaurant-pos/internal/microservices/orders/service"
	"restaurant-pos/internal/realtime"
)

type Deps struct {
	DB      *db.Conn
	Pub     realtime.EventPublisher
	Manager *realtime.Manager
	Cache   *dataaccess.Cache
	Log     *logger.Logger

	RestaurantID  int64
	TaxRate       float64
	PriorityTotal int64
}

// Register wires the orders service and mounts its routes. The returned
// service is shared with billing and delivery; the board must be closed on
// shutdown.
func Register(ctx context.Context, r *gin.RouterGroup, d Deps) (*service.OrdersService, *service.Board) {
	repo := repository.New(d.DB)
	svc := service.New(repo, d.Pub, d.Log, service.Config{
		TaxRate:       d.TaxRate,
		PriorityTotal: d.PriorityTotal,
	})
	board := service.NewBoard(ctx, svc, d.Manager, d.Cache, realtime.SystemClock(), d.RestaurantID)
	h := handlers.New(svc, board)

	r.POST("/orders", h.Create)
	r.GET("/orders", h.Board)
	r.GET("/orders/:number", h.Get)
	r.GET("/orders/:number/timeline", h.Timeline)
	r.POST("/orders/:number/status", h.UpdateStatus)
	r.POST("/orders/:number/cancel", h.Cancel)

	return svc, board
}
