package billing

import (
	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/microservices/billing/handlers"
	"restaurant-pos/internal/microservices/billing/repository"
	"restaurant-pos/internal/microservices/billing/service"
	orders "restaurant-pos/internal/microservices/orders/service"
	"restaurant-pos/internal/realtime"
)

type Deps struct {
	DB     *db.Conn
	Orders orders.OrdersServiceInterface
	Pub    realtime.EventPublisher
	Log    *logger.Logger

	ItemSplitThreshold float64
}

func Register(r *gin.RouterGroup, d Deps) {
	repo := repository.New(d.DB)
	svc := service.New(d.Orders, repo, service.NewAllocator(d.ItemSplitThreshold), d.Pub, d.Log)
	h := handlers.New(svc)

	r.POST("/orders/:number/split/equal", h.EqualSplit)
	r.POST("/orders/:number/split/items", h.ItemSplit)
	r.POST("/orders/:number/split/custom", h.CustomSplit)
	r.POST("/orders/:number/pay", h.Complete)
}
