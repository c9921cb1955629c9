package handler

import (
	commerceapp "github.com/erp/backoffice/internal/application/commerce"
	"github.com/erp/backoffice/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// TransitionRequest carries the version the client last saw
type TransitionRequest struct {
	ExpectedVersion int `json:"expected_version" binding:"required,gt=0"`
}

// CancelRequest cancels an order or invoice
type CancelRequest struct {
	ExpectedVersion int    `json:"expected_version" binding:"required,gt=0"`
	Reason          string `json:"reason" binding:"max=500"`
}

// OrderHandler handles order endpoints
type OrderHandler struct {
	BaseHandler
	documents *commerceapp.DocumentService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(documents *commerceapp.DocumentService) *OrderHandler {
	return &OrderHandler{documents: documents}
}

// Routes builds the /orders group
func (h *OrderHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("orders", "/orders")
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.POST("/:id/confirm", h.Confirm)
	g.POST("/:id/cancel", h.Cancel)
	g.GET("/:id/edit-session", h.OpenEditSession)
	g.GET("/:id/conversion", h.PrepareConversion)
	g.POST("/:id/invoices", h.Convert)
	g.GET("/:id/invoices", h.ListInvoices)
	g.GET("/:id/payments", h.ListPayments)
	return g
}

// Create godoc
// @Summary  Create an order, optionally taking a deposit
// @Tags     orders
// @Router   /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	var req commerceapp.CreateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.documents.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// Get godoc
// @Summary  Get an order
// @Tags     orders
// @Router   /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	order, err := h.documents.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Update godoc
// @Summary  Save edits to an open order, with an optional payment
// @Tags     orders
// @Router   /orders/{id} [put]
func (h *OrderHandler) Update(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var patch commerceapp.OrderPatch
	if !h.bindJSON(c, &patch) {
		return
	}
	order, err := h.documents.SaveOrderEdits(c.Request.Context(), id, patch)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Confirm godoc
// @Summary  Confirm a draft order
// @Tags     orders
// @Router   /orders/{id}/confirm [post]
func (h *OrderHandler) Confirm(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req TransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.documents.ConfirmOrder(c.Request.Context(), id, req.ExpectedVersion)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Cancel godoc
// @Summary  Cancel an order
// @Tags     orders
// @Router   /orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.documents.CancelOrder(c.Request.Context(), id, req.Reason, req.ExpectedVersion)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// OpenEditSession godoc
// @Summary  Load an order for editing and resolve its local draft
// @Tags     orders
// @Router   /orders/{id}/edit-session [get]
func (h *OrderHandler) OpenEditSession(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	session, err := h.documents.OpenOrderForEdit(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}

// PrepareConversion godoc
// @Summary  Pre-populate an invoice cart from an order
// @Tags     orders
// @Router   /orders/{id}/conversion [get]
func (h *OrderHandler) PrepareConversion(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	preview, err := h.documents.PrepareConversion(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// Convert godoc
// @Summary  Raise an invoice against an order
// @Description A pending discount decision answers 200 with status
// @Description DISCOUNT_CONFIRMATION_REQUIRED and writes nothing.
// @Tags     orders
// @Router   /orders/{id}/invoices [post]
func (h *OrderHandler) Convert(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req commerceapp.ConvertOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.documents.ConvertOrderToInvoice(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Status == commerceapp.ConversionCreated {
		h.Created(c, result)
		return
	}
	h.Success(c, result)
}

// ListInvoices godoc
// @Summary  List invoices raised against an order
// @Tags     orders
// @Router   /orders/{id}/invoices [get]
func (h *OrderHandler) ListInvoices(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	invoices, err := h.documents.ListOrderInvoices(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoices)
}

// ListPayments godoc
// @Summary  List payments taken against an order
// @Tags     orders
// @Router   /orders/{id}/payments [get]
func (h *OrderHandler) ListPayments(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	payments, err := h.documents.ListOrderPayments(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}
