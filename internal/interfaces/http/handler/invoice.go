package handler

import (
	commerceapp "github.com/erp/backoffice/internal/application/commerce"
	"github.com/erp/backoffice/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// InvoiceHandler handles invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	documents *commerceapp.DocumentService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(documents *commerceapp.DocumentService) *InvoiceHandler {
	return &InvoiceHandler{documents: documents}
}

// Routes builds the /invoices group
func (h *InvoiceHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("invoices", "/invoices")
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.POST("/:id/post", h.Post)
	g.POST("/:id/cancel", h.Cancel)
	g.GET("/:id/edit-session", h.OpenEditSession)
	return g
}

// Create godoc
// @Summary  Create a standalone invoice
// @Tags     invoices
// @Router   /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req commerceapp.CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	invoice, err := h.documents.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// Get godoc
// @Summary  Get an invoice
// @Tags     invoices
// @Router   /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	invoice, err := h.documents.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Update godoc
// @Summary  Save edits to an invoice, reconciling lines against its order
// @Tags     invoices
// @Router   /invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var patch commerceapp.InvoicePatch
	if !h.bindJSON(c, &patch) {
		return
	}
	invoice, err := h.documents.SaveInvoiceEdits(c.Request.Context(), id, patch)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Post godoc
// @Summary  Post a draft invoice
// @Tags     invoices
// @Router   /invoices/{id}/post [post]
func (h *InvoiceHandler) Post(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req TransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	invoice, err := h.documents.PostInvoice(c.Request.Context(), id, req.ExpectedVersion)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Cancel godoc
// @Summary  Cancel an invoice
// @Tags     invoices
// @Router   /invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	if !h.bindJSON(c, &req) {
		return
	}
	invoice, err := h.documents.CancelInvoice(c.Request.Context(), id, req.Reason, req.ExpectedVersion)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// OpenEditSession godoc
// @Summary  Load an invoice for editing and resolve its local draft
// @Tags     invoices
// @Router   /invoices/{id}/edit-session [get]
func (h *InvoiceHandler) OpenEditSession(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	session, err := h.documents.OpenInvoiceForEdit(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}
