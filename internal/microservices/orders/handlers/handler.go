package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/common/httpx"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/orders/repository"
	"restaurant-pos/internal/microservices/orders/service"
	"restaurant-pos/internal/session"
)

type OrdersHandler struct {
	svc   service.OrdersServiceInterface
	board *service.Board
}

func New(svc service.OrdersServiceInterface, board *service.Board) *OrdersHandler {
	return &OrdersHandler{svc: svc, board: board}
}

func (h *OrdersHandler) Create(c *gin.Context) {
	var req domain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Problem(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	order, err := h.svc.Create(c.Request.Context(), session.FromContext(c), req)
	if err != nil {
		writeOrderError(c, err, "failed to create order")
		return
	}
	c.JSON(http.StatusCreated, domain.CreateOrderResponse{
		OrderNumber: order.Number,
		Status:      order.Status,
		Total:       order.Total,
	})
}

func (h *OrdersHandler) Get(c *gin.Context) {
	order, err := h.svc.Get(c.Request.Context(), session.FromContext(c), c.Param("number"))
	if err != nil {
		writeOrderError(c, err, "failed to load order")
		return
	}
	c.JSON(http.StatusOK, order)
}

// Board serves the kitchen display: priority-first, urgency-annotated, kept
// fresh by the realtime subscription rather than the request path.
func (h *OrdersHandler) Board(c *gin.Context) {
	status, lastErr := h.board.ConnectionStatus()
	resp := gin.H{
		"orders":     h.board.Snapshot(),
		"connection": status,
	}
	if lastErr != nil {
		resp["connection_error"] = "realtime feed unavailable, data may be stale"
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OrdersHandler) UpdateStatus(c *gin.Context) {
	var req domain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Problem(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	order, err := h.svc.UpdateStatus(c.Request.Context(), session.FromContext(c), c.Param("number"), req.Status)
	if err != nil {
		writeOrderError(c, err, "failed to update order status")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrdersHandler) Cancel(c *gin.Context) {
	order, err := h.svc.Cancel(c.Request.Context(), session.FromContext(c), c.Param("number"))
	if err != nil {
		writeOrderError(c, err, "failed to cancel order")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrdersHandler) Timeline(c *gin.Context) {
	events, err := h.svc.Timeline(c.Request.Context(), session.FromContext(c), c.Param("number"))
	if err != nil {
		writeOrderError(c, err, "failed to load order timeline")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_number": c.Param("number"), "events": events})
}

func writeOrderError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		httpx.Problem(c, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		httpx.Problem(c, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, service.ErrForbidden):
		httpx.Problem(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, service.ErrValidation):
		httpx.Problem(c, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	default:
		httpx.Problem(c, http.StatusInternalServerError, "internal_error", fallback)
	}
}
