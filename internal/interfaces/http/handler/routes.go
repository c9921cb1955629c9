package handler

import (
	commerceapp "github.com/erp/backoffice/internal/application/commerce"
	draftapp "github.com/erp/backoffice/internal/application/draft"
	"github.com/erp/backoffice/internal/interfaces/http/router"
)

// Handlers groups every API handler
type Handlers struct {
	Orders   *OrderHandler
	Invoices *InvoiceHandler
	Payments *PaymentHandler
	Pricing  *PricingHandler
	Drafts   *DraftHandler
	System   *SystemHandler
}

// NewHandlers builds the handlers over the application services
func NewHandlers(documents *commerceapp.DocumentService, sessions *draftapp.SessionManager, system *SystemHandler) *Handlers {
	return &Handlers{
		Orders:   NewOrderHandler(documents),
		Invoices: NewInvoiceHandler(documents),
		Payments: NewPaymentHandler(documents),
		Pricing:  NewPricingHandler(documents),
		Drafts:   NewDraftHandler(sessions),
		System:   system,
	}
}

// Register adds every route group to r
func (h *Handlers) Register(r *router.Router) {
	r.Register(h.Orders.Routes()).
		Register(h.Invoices.Routes()).
		Register(h.Payments.Routes()).
		Register(h.Payments.CustomerRoutes()).
		Register(h.Pricing.Routes()).
		Register(h.Drafts.Routes())
	for _, g := range h.System.Routes() {
		r.Register(g)
	}
}
