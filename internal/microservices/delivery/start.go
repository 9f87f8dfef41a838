package delivery

import (
	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/common/cache"
	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/delivery/handlers"
	"restaurant-pos/internal/microservices/delivery/repository"
	"restaurant-pos/internal/microservices/delivery/service"
	ordersrepo "restaurant-pos/internal/microservices/orders/repository"
	"restaurant-pos/internal/realtime"
)

type Deps struct {
	DB    *db.Conn
	Cache *cache.Client
	Pub   realtime.EventPublisher
	Hub   *realtime.Hub
	Log   *logger.Logger

	Pickup domain.LatLng
}

// Register wires the delivery service and mounts its API plus websocket
// routes. The returned service is shared with tracking.
func Register(api *gin.RouterGroup, ws *gin.RouterGroup, d Deps) *service.DeliveryService {
	repo := repository.New(d.DB)
	svc := service.New(repo, ordersrepo.New(d.DB), d.Cache, d.Pub, d.Hub, d.Log, service.Config{
		Pickup: d.Pickup,
	})
	h := handlers.New(svc, d.Hub, d.Log)

	api.POST("/riders", h.CreateRider)
	api.POST("/riders/:id/availability", h.SetAvailability)
	api.POST("/riders/:id/location", h.IngestLocation)
	api.POST("/deliveries", h.AssignDelivery)
	api.POST("/deliveries/:id/status", h.UpdateDeliveryStatus)

	ws.GET("/track/:rider_id", h.TrackSocket)

	return svc
}
