package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/common/httpx"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/delivery/repository"
	"restaurant-pos/internal/microservices/delivery/service"
	ordersrepo "restaurant-pos/internal/microservices/orders/repository"
	"restaurant-pos/internal/realtime"
	"restaurant-pos/internal/session"
)

type DeliveryHandler struct {
	svc service.DeliveryServiceInterface
	hub *realtime.Hub
	log *logger.Logger
}

func New(svc service.DeliveryServiceInterface, hub *realtime.Hub, log *logger.Logger) *DeliveryHandler {
	return &DeliveryHandler{svc: svc, hub: hub, log: log}
}

func (h *DeliveryHandler) CreateRider(c *gin.Context) {
	var req domain.CreateRiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Problem(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	rider, err := h.svc.CreateRider(c.Request.Context(), session.FromContext(c), req)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rider)
}

func (h *DeliveryHandler) SetAvailability(c *gin.Context) {
	riderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req domain.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Problem(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	rider, err := h.svc.SetAvailability(c.Request.Context(), session.FromContext(c), riderID, req.Online)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	c.JSON(http.StatusOK, rider)
}

// IngestLocation accepts one GPS sample from a rider device. Stale samples
// are acknowledged but not applied.
func (h *DeliveryHandler) IngestLocation(c *gin.Context) {
	riderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var sample domain.LocationSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		httpx.Problem(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	sample.RiderID = riderID
	if err := h.svc.IngestSample(c.Request.Context(), session.FromContext(c), sample); err != nil {
		writeDeliveryError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *DeliveryHandler) AssignDelivery(c *gin.Context) {
	var req domain.AssignDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Problem(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	d, err := h.svc.AssignRider(c.Request.Context(), session.FromContext(c), req)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *DeliveryHandler) UpdateDeliveryStatus(c *gin.Context) {
	deliveryID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req domain.DeliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Problem(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	d, err := h.svc.UpdateDeliveryStatus(c.Request.Context(), session.FromContext(c), deliveryID, req.Status)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// TrackSocket attaches a tracking viewer to one rider's location stream.
func (h *DeliveryHandler) TrackSocket(c *gin.Context) {
	riderID, ok := paramID(c, "rider_id")
	if !ok {
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, strconv.FormatInt(riderID, 10)); err != nil {
		h.log.Error("ws_upgrade_failed", err, map[string]any{"rider_id": riderID})
	}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(c, http.StatusBadRequest, "invalid_id", "path id must be a positive integer")
		return 0, false
	}
	return id, true
}

func writeDeliveryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrRiderNotFound):
		httpx.Problem(c, http.StatusNotFound, "not_found", "rider not found")
	case errors.Is(err, repository.ErrDeliveryNotFound):
		httpx.Problem(c, http.StatusNotFound, "not_found", "delivery not found")
	case errors.Is(err, ordersrepo.ErrNotFound):
		httpx.Problem(c, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, service.ErrRiderBusy):
		httpx.Problem(c, http.StatusConflict, "rider_busy", err.Error())
	case errors.Is(err, service.ErrRiderUnavailable):
		httpx.Problem(c, http.StatusConflict, "rider_unavailable", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		httpx.Problem(c, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, service.ErrForbidden):
		httpx.Problem(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, service.ErrValidation):
		httpx.Problem(c, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	default:
		httpx.Problem(c, http.StatusInternalServerError, "internal_error", "delivery operation failed")
	}
}
