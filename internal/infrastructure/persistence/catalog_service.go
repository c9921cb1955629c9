package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/backoffice/internal/domain/pricing"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCatalogService answers price book lookups from the price_books tables
type GormCatalogService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormCatalogService creates a new GormCatalogService
func NewGormCatalogService(db *gorm.DB) *GormCatalogService {
	return &GormCatalogService{db: db, now: time.Now}
}

// ResolvePrice looks the product up in the price book. A branch-specific row
// wins over a book-wide row. A product missing from the book, or a book that
// is inactive or out of its validity window, comes back without a matched
// book so the caller can decide what to do.
func (s *GormCatalogService) ResolvePrice(ctx context.Context, productID, branchID, priceBookID uuid.UUID) (pricing.CatalogPrice, error) {
	var book models.PriceBookModel
	if err := s.db.WithContext(ctx).First(&book, "id = ?", priceBookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pricing.CatalogPrice{}, nil
		}
		return pricing.CatalogPrice{}, err
	}
	if !book.CoversAt(s.now()) {
		return pricing.CatalogPrice{}, nil
	}

	var items []models.PriceBookItemModel
	if err := s.db.WithContext(ctx).
		Where("price_book_id = ? AND product_id = ?", priceBookID, productID).
		Where("branch_id IS NULL OR branch_id = ?", branchID).
		Find(&items).Error; err != nil {
		return pricing.CatalogPrice{}, err
	}

	var match *models.PriceBookItemModel
	for i := range items {
		if items[i].BranchID != nil {
			match = &items[i]
			break
		}
		if match == nil {
			match = &items[i]
		}
	}
	if match == nil {
		return pricing.CatalogPrice{}, nil
	}

	bookID := book.ID
	return pricing.CatalogPrice{Price: match.Price, MatchedPriceBookID: &bookID}, nil
}

var _ pricing.CatalogService = (*GormCatalogService)(nil)
