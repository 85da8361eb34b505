package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"order-admin/internal/models"
	"order-admin/internal/service"
	"order-admin/internal/store"
	"order-admin/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService *service.OrderService
}

// NewHandler creates a new HTTP handler
func NewHandler(orderService *service.OrderService) *Handler {
	return &Handler{
		orderService: orderService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id", h.saveOrder)
		v1.POST("/orders/:id/items", h.addItem)
		v1.POST("/orders/:id/documents", h.prepareDocument)
		v1.PUT("/items/:id", h.editItem)
		v1.DELETE("/items/:id", h.deleteItem)
		v1.GET("/stock", h.stockOverview)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listOrders handles the paged order listing
func (h *Handler) listOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "15"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.orderService.ListOrders(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list orders",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder returns an order, its ledger and the current year's highest
// invoice number (shown next to the manual entry field).
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, items, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	maxInvoiceNumber, err := h.orderService.MaxInvoiceNumber(c.Request.Context(), time.Now().Year())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":              order,
		"items":              items,
		"max_invoice_number": maxInvoiceNumber,
	})
}

// saveOrder handles an order edit
func (h *Handler) saveOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.SaveOrder(c.Request.Context(), orderID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
}

// addItem adds a product to an order's ledger
func (h *Handler) addItem(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.orderService.AddItem(c.Request.Context(), orderID, req.ProductID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

type editItemRequest struct {
	Quantity    int                 `json:"quantity" binding:"required"`
	Discount    decimal.Decimal     `json:"discount"`
	CustomPrice decimal.NullDecimal `json:"custom_price"`
}

// editItem overwrites an item's mutable fields
func (h *Handler) editItem(c *gin.Context) {
	itemID, ok := pathID(c)
	if !ok {
		return
	}

	var req editItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.orderService.EditItem(c.Request.Context(), itemID, req.Quantity, req.Discount, req.CustomPrice)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// deleteItem removes an item from its order's ledger
func (h *Handler) deleteItem(c *gin.Context) {
	itemID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.orderService.DeleteItem(c.Request.Context(), itemID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": itemID})
}

type prepareDocumentRequest struct {
	Kind   models.DocumentKind   `json:"kind" binding:"required"`
	Action models.DocumentAction `json:"action" binding:"required"`
}

// prepareDocument previews, prints or sends a proforma or invoice
func (h *Handler) prepareDocument(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req prepareDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.orderService.PrepareDocument(c.Request.Context(), orderID, req.Kind, req.Action)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": result})
}

// stockOverview lists products with their stock counters
func (h *Handler) stockOverview(c *gin.Context) {
	products, err := h.orderService.StockOverview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load stock overview",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// pathID parses the numeric :id path parameter
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

// writeError maps service errors to HTTP responses
func writeError(c *gin.Context, err error) {
	var notFound *store.ErrNotFound
	var validation *service.ValidationError
	var collision *service.InvoiceNumberTakenError
	var transition *service.InvalidTransitionError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"fields": validation.Fields,
		})
	case errors.As(err, &collision):
		c.JSON(http.StatusConflict, gin.H{
			"error":          collision.Error(),
			"invoice_number": collision.Number,
			"holder_order":   collision.HolderOrderID,
		})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": transition.Error()})
	case errors.Is(err, service.ErrOrderBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDeliveryFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
