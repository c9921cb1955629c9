package pricing

import (
	"context"
	"errors"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogPrice is what the catalog returns for a product in a price book.
// MatchedPriceBookID differs from the requested book when the product is not in it.
type CatalogPrice struct {
	Price              decimal.Decimal
	MatchedPriceBookID *uuid.UUID
}

// CatalogService is the external catalog collaborator
type CatalogService interface {
	ResolvePrice(ctx context.Context, productID, branchID, priceBookID uuid.UUID) (CatalogPrice, error)
}

// Coverage says whether the selected price book covers the product
type Coverage string

const (
	CoverageNotRequested Coverage = "NOT_REQUESTED"
	CoverageCovered      Coverage = "COVERED"
	CoverageNotCovered   Coverage = "NOT_COVERED"
	CoverageUnavailable  Coverage = "UNAVAILABLE"
)

// PriceSource names where a quoted price came from
type PriceSource string

const (
	PriceSourceBase      PriceSource = "BASE"
	PriceSourcePriceBook PriceSource = "PRICE_BOOK"
	PriceSourceOverride  PriceSource = "OVERRIDE"
)

// Request is one price lookup
type Request struct {
	ProductID   uuid.UUID
	BranchID    uuid.UUID
	PriceBookID *uuid.UUID
	BasePrice   decimal.Decimal
}

// Quote is the proposed price for a product. A NotCovered quote is not
// usable until the caller confirms it with a Decision.
type Quote struct {
	ProductID   uuid.UUID       `json:"product_id"`
	PriceBookID *uuid.UUID      `json:"price_book_id,omitempty"`
	Price       decimal.Decimal `json:"price"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Source      PriceSource     `json:"source"`
	Coverage    Coverage        `json:"coverage"`
	Confirmed   bool            `json:"confirmed"`
	// Warning is set when the lookup failed and the base price was used
	Warning *shared.ExternalLookupError `json:"-"`
}

// NeedsDecision reports whether the caller must continue or abort
func (q Quote) NeedsDecision() bool {
	return q.Coverage == CoverageNotCovered && !q.Confirmed
}

// Resolver proposes unit prices. It never writes anything.
type Resolver struct {
	catalog CatalogService
}

// NewResolver creates a resolver over a catalog
func NewResolver(catalog CatalogService) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve proposes a price for one product.
//
// Without a price book the base price is returned. When the catalog answers
// with a different book the quote is marked NotCovered. A failed lookup fails
// open to the base price and carries the error as a warning; only a cancelled
// context is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Quote, error) {
	if req.ProductID == uuid.Nil {
		return Quote{}, shared.NewValidationError("product_id", "Product ID cannot be empty")
	}
	if req.BasePrice.IsNegative() {
		return Quote{}, shared.NewValidationError("base_price", "Base price cannot be negative")
	}

	quote := Quote{
		ProductID:   req.ProductID,
		PriceBookID: req.PriceBookID,
		Price:       req.BasePrice,
		BasePrice:   req.BasePrice,
		Source:      PriceSourceBase,
		Coverage:    CoverageNotRequested,
	}
	if req.PriceBookID == nil || *req.PriceBookID == uuid.Nil {
		return quote, nil
	}

	resolved, err := r.catalog.ResolvePrice(ctx, req.ProductID, req.BranchID, *req.PriceBookID)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return Quote{}, errors.Join(ctx.Err(), err)
		}
		quote.Coverage = CoverageUnavailable
		quote.Warning = shared.NewExternalLookupError("price book", err)
		return quote, nil
	}

	if resolved.MatchedPriceBookID == nil || *resolved.MatchedPriceBookID != *req.PriceBookID {
		quote.Coverage = CoverageNotCovered
		return quote, nil
	}

	quote.Price = resolved.Price
	quote.Source = PriceSourcePriceBook
	quote.Coverage = CoverageCovered
	return quote, nil
}
