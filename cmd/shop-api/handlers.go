package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/acampos/tienda-api/internal/httpx"
	"github.com/acampos/tienda-api/internal/metrics"
	"github.com/acampos/tienda-api/internal/order"
	"github.com/acampos/tienda-api/internal/product"
)

// @Summary Place an order
// @Tags orders
// @Accept json
// @Produce json
// @Param request body order.CreateOrderRequest true "checkout payload"
// @Success 201 {object} order.OrderResponse
// @Router /orders [post]
func createOrderHandler(svc *order.Service, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		lines := make([]order.Line, 0, len(req.Items))
		for _, it := range req.Items {
			lines = append(lines, order.Line{ProductID: it.ProductID, Quantity: it.Quantity})
		}

		o, items, err := svc.PlaceOrder(c.Request.Context(), c.GetString(httpx.CtxUserID), req.Address, lines)
		if err != nil {
			writeOrderError(c, err)
			return
		}
		m.OrdersPlaced.Inc()
		c.JSON(http.StatusCreated, order.OrderResponse{Order: *o, Items: items})
	}
}

// @Summary Cancel an order
// @Tags orders
// @Produce json
// @Param id path string true "order id"
// @Success 200 {object} order.CancelOrderResponse
// @Router /orders/{id}/cancel [post]
func cancelOrderHandler(svc *order.Service, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.CancelOrder(c.Request.Context(), c.Param("id"), c.GetString(httpx.CtxUserID))
		if err != nil {
			writeOrderError(c, err)
			return
		}
		m.OrdersCancelled.Inc()
		c.JSON(http.StatusOK, order.CancelOrderResponse{Message: "order cancelled", Order: *o})
	}
}

// @Summary Get one of the caller's orders
// @Tags orders
// @Produce json
// @Param id path string true "order id"
// @Success 200 {object} order.OrderResponse
// @Router /orders/{id} [get]
func getOrderHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, items, err := svc.GetOrder(c.Request.Context(), c.Param("id"), c.GetString(httpx.CtxUserID))
		if err != nil {
			writeOrderError(c, err)
			return
		}
		c.JSON(http.StatusOK, order.OrderResponse{Order: *o, Items: items})
	}
}

// @Summary List the caller's orders
// @Tags orders
// @Produce json
// @Success 200 {array} order.Order
// @Router /orders [get]
func listOrdersHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		out, err := svc.ListByUser(c.Request.Context(), c.GetString(httpx.CtxUserID), limit, offset)
		if err != nil {
			writeOrderError(c, err)
			return
		}
		if out == nil {
			out = []order.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"items": out, "limit": limit, "offset": offset})
	}
}

// writeOrderError maps lifecycle errors onto HTTP statuses. Unexpected
// persistence failures are logged and surfaced as a generic 500.
func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound), errors.Is(err, product.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrNotOwner):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrCannotCancel),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, product.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("rid", c.GetString("rid")).Msg("order operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
