package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/common/httpx"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/billing/service"
	ordersrepo "restaurant-pos/internal/microservices/orders/repository"
	orderssvc "restaurant-pos/internal/microservices/orders/service"
	"restaurant-pos/internal/session"
)

type BillingHandler struct {
	svc service.BillingServiceInterface
}

func New(svc service.BillingServiceInterface) *BillingHandler {
	return &BillingHandler{svc: svc}
}

type equalSplitRequest struct {
	Count int `json:"count"`
}

func (h *BillingHandler) EqualSplit(c *gin.Context) {
	var req equalSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Problem(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	splits, err := h.svc.EqualSplit(c.Request.Context(), session.FromContext(c), c.Param("number"), req.Count)
	if err != nil {
		writeBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"splits": splits})
}

type itemSplitRequest struct {
	Buckets []service.ItemBucket `json:"buckets"`
}

func (h *BillingHandler) ItemSplit(c *gin.Context) {
	var req itemSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Problem(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	splits, err := h.svc.ItemSplit(c.Request.Context(), session.FromContext(c), c.Param("number"), req.Buckets)
	if err != nil {
		writeBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"splits": splits})
}

type customSplitRequest struct {
	Amounts []int64 `json:"amounts"`
}

func (h *BillingHandler) CustomSplit(c *gin.Context) {
	var req customSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Problem(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	splits, err := h.svc.CustomSplit(c.Request.Context(), session.FromContext(c), c.Param("number"), req.Amounts)
	if err != nil {
		writeBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"splits": splits})
}

type completeRequest struct {
	Splits []domain.Split `json:"splits"`
}

func (h *BillingHandler) Complete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Problem(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	order, err := h.svc.Complete(c.Request.Context(), session.FromContext(c), c.Param("number"), req.Splits)
	if err != nil {
		writeBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func writeBillingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ordersrepo.ErrNotFound):
		httpx.Problem(c, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, service.ErrSplitMismatch),
		errors.Is(err, service.ErrSplitBelowThreshold),
		errors.Is(err, service.ErrSplitCount),
		errors.Is(err, service.ErrUnknownItem),
		errors.Is(err, service.ErrMethodMissing):
		httpx.Problem(c, http.StatusUnprocessableEntity, "split_invalid", err.Error())
	case errors.Is(err, service.ErrForbidden), errors.Is(err, orderssvc.ErrForbidden):
		httpx.Problem(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		httpx.Problem(c, http.StatusConflict, "invalid_transition", err.Error())
	default:
		httpx.Problem(c, http.StatusInternalServerError, "internal_error", "billing operation failed")
	}
}
