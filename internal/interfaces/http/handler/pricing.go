package handler

import (
	commerceapp "github.com/erp/backoffice/internal/application/commerce"
	"github.com/erp/backoffice/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// PricingHandler proposes and confirms cart prices
type PricingHandler struct {
	BaseHandler
	documents *commerceapp.DocumentService
}

// NewPricingHandler creates a new PricingHandler
func NewPricingHandler(documents *commerceapp.DocumentService) *PricingHandler {
	return &PricingHandler{documents: documents}
}

// Routes builds the /prices group
func (h *PricingHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("prices", "/prices")
	g.POST("/quote", h.Quote)
	g.POST("/confirm", h.Confirm)
	return g
}

// Quote godoc
// @Summary  Quote every product of a cart against one price book
// @Tags     prices
// @Router   /prices/quote [post]
func (h *PricingHandler) Quote(c *gin.Context) {
	var req commerceapp.ProposeCartRequest
	if !h.bindJSON(c, &req) {
		return
	}
	quote, err := h.documents.ProposeCartPrices(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// Confirm godoc
// @Summary  Answer a quote the price book does not cover
// @Description ABORT answers 422 PRICE_ABORTED; the product must not be added.
// @Tags     prices
// @Router   /prices/confirm [post]
func (h *PricingHandler) Confirm(c *gin.Context) {
	var req commerceapp.ConfirmPriceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	quote, err := h.documents.ConfirmPrice(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}
