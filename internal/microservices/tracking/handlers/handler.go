package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/common/httpx"
	"restaurant-pos/internal/common/logger"
	ordersrepo "restaurant-pos/internal/microservices/orders/repository"
	"restaurant-pos/internal/microservices/tracking/service"
)

type TrackingHandler struct {
	svc          service.TrackingServiceInterface
	restaurantID int64
	log          *logger.Logger
}

func New(svc service.TrackingServiceInterface, restaurantID int64, log *logger.Logger) *TrackingHandler {
	return &TrackingHandler{svc: svc, restaurantID: restaurantID, log: log}
}

// Track serves the public tracking view. It is unauthenticated: knowing the
// order number is the credential.
func (h *TrackingHandler) Track(c *gin.Context) {
	number := c.Param("number")
	if number == "" {
		httpx.Problem(c, http.StatusBadRequest, "invalid_number", "order number is required")
		return
	}
	view, err := h.svc.Track(c.Request.Context(), h.restaurantID, number)
	if err != nil {
		if errors.Is(err, ordersrepo.ErrNotFound) {
			httpx.Problem(c, http.StatusNotFound, "not_found", "order not found")
			return
		}
		h.log.Error("tracking_failed", err, map[string]any{"order_number": number})
		httpx.Problem(c, http.StatusInternalServerError, "internal_error", "tracking lookup failed")
		return
	}
	c.JSON(http.StatusOK, view)
}
