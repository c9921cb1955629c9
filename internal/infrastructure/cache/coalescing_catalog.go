package cache

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/pricing"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// CoalescingCatalog collapses concurrent identical price lookups into one
// upstream call. Each shared call runs under its own timeout, detached from
// the cancellation of whichever caller started it; every caller still stops
// waiting when its own context ends.
type CoalescingCatalog struct {
	next    pricing.CatalogService
	group   singleflight.Group
	timeout time.Duration
}

// NewCoalescingCatalog wraps a catalog. A zero timeout means no per-lookup bound.
func NewCoalescingCatalog(next pricing.CatalogService, timeout time.Duration) *CoalescingCatalog {
	return &CoalescingCatalog{next: next, timeout: timeout}
}

// ResolvePrice implements pricing.CatalogService
func (c *CoalescingCatalog) ResolvePrice(ctx context.Context, productID, branchID, priceBookID uuid.UUID) (pricing.CatalogPrice, error) {
	key := productID.String() + "|" + branchID.String() + "|" + priceBookID.String()

	ch := c.group.DoChan(key, func() (any, error) {
		callCtx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, c.timeout)
			defer cancel()
		}
		return c.next.ResolvePrice(callCtx, productID, branchID, priceBookID)
	})

	select {
	case <-ctx.Done():
		return pricing.CatalogPrice{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return pricing.CatalogPrice{}, res.Err
		}
		return res.Val.(pricing.CatalogPrice), nil
	}
}

var _ pricing.CatalogService = (*CoalescingCatalog)(nil)
