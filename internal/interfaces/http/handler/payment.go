package handler

import (
	commerceapp "github.com/erp/backoffice/internal/application/commerce"
	"github.com/erp/backoffice/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// PaymentHandler handles payment and customer debt endpoints
type PaymentHandler struct {
	BaseHandler
	documents *commerceapp.DocumentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(documents *commerceapp.DocumentService) *PaymentHandler {
	return &PaymentHandler{documents: documents}
}

// Routes builds the /payments group
func (h *PaymentHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("payments", "/payments")
	g.POST("", h.Record)
	g.POST("/preview", h.Preview)
	g.POST("/:id/cancel", h.Cancel)
	return g
}

// CustomerRoutes builds the /customers group
func (h *PaymentHandler) CustomerRoutes() *router.DomainGroup {
	g := router.NewDomainGroup("customers", "/customers")
	g.GET("/:id/debt", h.CustomerDebt)
	return g
}

// Record godoc
// @Summary  Record a cash or receipt voucher with its allocation
// @Tags     payments
// @Router   /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	var req commerceapp.RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.documents.RecordPayment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Preview godoc
// @Summary  Run the allocator without recording anything
// @Tags     payments
// @Router   /payments/preview [post]
func (h *PaymentHandler) Preview(c *gin.Context) {
	var req commerceapp.PreviewAllocationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	plan, err := h.documents.PreviewAllocation(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// Cancel godoc
// @Summary  Cancel a payment and release its allocations
// @Tags     payments
// @Router   /payments/{id}/cancel [post]
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	payment, err := h.documents.CancelPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// CustomerDebt godoc
// @Summary  Get a customer's aggregate debt and outstanding invoices
// @Tags     customers
// @Router   /customers/{id}/debt [get]
func (h *PaymentHandler) CustomerDebt(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	summary, err := h.documents.CustomerDebt(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
