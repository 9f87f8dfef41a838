package tracking

import (
	"time"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/common/cache"
	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	deliverysvc "restaurant-pos/internal/microservices/delivery/service"
	ordersrepo "restaurant-pos/internal/microservices/orders/repository"
	"restaurant-pos/internal/microservices/tracking/handlers"
	"restaurant-pos/internal/microservices/tracking/service"
)

type Deps struct {
	DB       *db.Conn
	Cache    *cache.Client
	Delivery deliverysvc.DeliveryServiceInterface
	Log      *logger.Logger

	RestaurantID int64
	Restaurant   domain.TrackingPlace
	AvgSpeedKMH  float64
	ETAInterval  time.Duration
}

// Register mounts the public tracking endpoint. It reuses the delivery
// service wired by the delivery module rather than opening its own path to
// rider state.
func Register(pub *gin.RouterGroup, d Deps) *service.TrackingService {
	svc := service.New(ordersrepo.New(d.DB), d.Delivery, d.Cache, d.Log, service.Config{
		Restaurant:  d.Restaurant,
		AvgSpeedKMH: d.AvgSpeedKMH,
		ETAInterval: d.ETAInterval,
	})
	h := handlers.New(svc, d.RestaurantID, d.Log)

	pub.GET("/track/:number", h.Track)

	return svc
}
