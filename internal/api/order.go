package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/middleware"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/service"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// OrderStream upgrades a request to a live order feed for one business.
// realtime.Hub implements it.
type OrderStream interface {
	Serve(w http.ResponseWriter, r *http.Request, businessID uuid.UUID) error
}

// OrderHandler handles order CRUD and the live feed. Every route resolves
// the caller's role first; GUEST gets 403 (or 401 with no identity at all).
type OrderHandler struct {
	orders   *service.OrderService
	resolver *service.RoleResolver
	stream   OrderStream
	logger   *zap.Logger
}

func NewOrderHandler(orders *service.OrderService, resolver *service.RoleResolver, stream OrderStream, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, resolver: resolver, stream: stream, logger: logger}
}

// Amount is a pointer so a missing amount reaches the service as 0 and gets
// the same message as a negative one.
type createOrderRequest struct {
	ClientName  string   `json:"client_name"`
	ClientPhone string   `json:"client_phone"`
	Amount      *float64 `json:"amount"`
	DueDate     string   `json:"due_date"`
	Description string   `json:"description"`
}

// updateOrderRequest is a partial update. An empty due_date, or
// clear_due_date, removes the due date.
type updateOrderRequest struct {
	ClientName   *string  `json:"client_name"`
	ClientPhone  *string  `json:"client_phone"`
	Amount       *float64 `json:"amount"`
	DueDate      *string  `json:"due_date"`
	ClearDueDate bool     `json:"clear_due_date"`
	Description  *string  `json:"description"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type paidRequest struct {
	Paid *bool `json:"paid" binding:"required"`
}

// parseDate accepts YYYY-MM-DD. Empty means no date.
func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List handles GET /v1/businesses/:slug/orders?status=DONE&paid=false
func (h *OrderHandler) List(c *gin.Context) {
	var filter models.OrderFilter
	if raw := c.Query("status"); raw != "" {
		st, err := models.ParseOrderStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Status = &st
	}
	if raw := c.Query("paid"); raw != "" {
		paid, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paid must be true or false"})
			return
		}
		filter.Paid = &paid
	}

	orders, err := h.orders.List(c.Request.Context(), middleware.GetIdentity(c), c.Param("slug"), filter)
	if err != nil {
		fail(c, h.logger, err, "failed to list orders")
		return
	}
	ok(c, http.StatusOK, gin.H{"orders": orders})
}

// Create handles POST /v1/businesses/:slug/orders
//
// New orders always start as NEW and unpaid; the order number is assigned
// by the database.
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
		return
	}
	var amount float64
	if req.Amount != nil {
		amount = *req.Amount
	}

	order, err := h.orders.Create(c.Request.Context(), middleware.GetIdentity(c), c.Param("slug"), service.OrderInput{
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		Amount:      amount,
		DueDate:     due,
		Description: req.Description,
	})
	if err != nil {
		fail(c, h.logger, err, "failed to create order")
		return
	}
	ok(c, http.StatusCreated, gin.H{"order": order})
}

// Get handles GET /v1/businesses/:slug/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), middleware.GetIdentity(c), c.Param("slug"), orderID)
	if err != nil {
		fail(c, h.logger, err, "failed to get order")
		return
	}
	ok(c, http.StatusOK, gin.H{"order": order})
}

// Update handles PATCH /v1/businesses/:slug/orders/:id
func (h *OrderHandler) Update(c *gin.Context) {
	orderID, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	patch := service.OrderPatch{
		ClientName:   req.ClientName,
		ClientPhone:  req.ClientPhone,
		Amount:       req.Amount,
		ClearDueDate: req.ClearDueDate,
		Description:  req.Description,
	}
	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
			return
		}
		if due == nil {
			patch.ClearDueDate = true
		}
		patch.DueDate = due
	}

	order, err := h.orders.Update(c.Request.Context(), middleware.GetIdentity(c), c.Param("slug"), orderID, patch)
	if err != nil {
		fail(c, h.logger, err, "failed to update order")
		return
	}
	ok(c, http.StatusOK, gin.H{"order": order})
}

// SetStatus handles PUT /v1/businesses/:slug/orders/:id/status
//
// Any of the six statuses may follow any other.
func (h *OrderHandler) SetStatus(c *gin.Context) {
	orderID, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := h.orders.SetStatus(c.Request.Context(), middleware.GetIdentity(c), c.Param("slug"), orderID, req.Status)
	if err != nil {
		fail(c, h.logger, err, "failed to update order status")
		return
	}
	ok(c, http.StatusOK, gin.H{"order": order})
}

// SetPaid handles PUT /v1/businesses/:slug/orders/:id/paid
func (h *OrderHandler) SetPaid(c *gin.Context) {
	orderID, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	var req paidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := h.orders.SetPaid(c.Request.Context(), middleware.GetIdentity(c), c.Param("slug"), orderID, *req.Paid)
	if err != nil {
		fail(c, h.logger, err, "failed to update order")
		return
	}
	ok(c, http.StatusOK, gin.H{"order": order})
}

// Stream handles GET /v1/businesses/:slug/orders/ws
//
// Access is checked before the upgrade so refusals are plain JSON errors.
// After that the handler blocks until the socket closes.
func (h *OrderHandler) Stream(c *gin.Context) {
	access, err := h.resolver.RequireOrderAccess(c.Request.Context(), c.Param("slug"), middleware.GetIdentity(c))
	if err != nil {
		fail(c, h.logger, err, "failed to open order feed")
		return
	}
	if err := h.stream.Serve(c.Writer, c.Request, access.Business.ID); err != nil {
		h.logger.Debug("order feed upgrade failed", zap.Error(err))
	}
}
