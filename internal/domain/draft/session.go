package draft

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentType is the kind of document a draft edits
type DocumentType string

const (
	DocumentTypeOrder   DocumentType = "order"
	DocumentTypeInvoice DocumentType = "invoice"
)

func (t DocumentType) IsValid() bool {
	return t == DocumentTypeOrder || t == DocumentTypeInvoice
}

// Key addresses one draft session: either an existing document or a
// locally generated tab id for a document not yet saved.
type Key struct {
	DocumentType DocumentType `json:"document_type"`
	DocumentID   uuid.UUID    `json:"document_id,omitempty"`
	TabID        string       `json:"tab_id,omitempty"`
}

// DocumentKey keys a draft by document
func DocumentKey(docType DocumentType, id uuid.UUID) Key {
	return Key{DocumentType: docType, DocumentID: id}
}

// TabKey keys a draft by tab id
func TabKey(docType DocumentType, tabID string) Key {
	return Key{DocumentType: docType, TabID: tabID}
}

// NewTabKey generates a fresh tab id
func NewTabKey(docType DocumentType) Key {
	return TabKey(docType, uuid.NewString())
}

// IsTab reports whether the key is a tab key
func (k Key) IsTab() bool {
	return k.TabID != ""
}

// Validate checks the key addresses exactly one session
func (k Key) Validate() error {
	if !k.DocumentType.IsValid() {
		return shared.NewValidationError("document_type", fmt.Sprintf("Unknown document type %q", k.DocumentType))
	}
	if k.TabID == "" && k.DocumentID == uuid.Nil {
		return shared.NewValidationError("key", "Draft key needs a document id or a tab id")
	}
	if k.TabID != "" && k.DocumentID != uuid.Nil {
		return shared.NewValidationError("key", "Draft key cannot have both a document id and a tab id")
	}
	return nil
}

// String renders the storage key
func (k Key) String() string {
	if k.IsTab() {
		return fmt.Sprintf("%s:tab:%s", k.DocumentType, k.TabID)
	}
	return fmt.Sprintf("%s:%s", k.DocumentType, k.DocumentID)
}

// Snapshot is the full in-progress state of an edit surface.
// CapturedServerUpdatedAt is the server timestamp seen when the draft was first created.
type Snapshot struct {
	DocumentID              *uuid.UUID      `json:"document_id,omitempty"`
	DocumentType            DocumentType    `json:"document_type"`
	Lines                   []commerce.Line `json:"lines"`
	CustomerID              *uuid.UUID      `json:"customer_id,omitempty"`
	DiscountAmount          decimal.Decimal `json:"discount_amount"`
	DiscountRatio           decimal.Decimal `json:"discount_ratio"`
	PaymentAmount           decimal.Decimal `json:"payment_amount"`
	DeliveryMeta            map[string]any  `json:"delivery_meta,omitempty"`
	Note                    string          `json:"note,omitempty"`
	CapturedServerUpdatedAt *time.Time      `json:"captured_server_updated_at,omitempty"`
	SavedAt                 time.Time       `json:"saved_at"`
}

// Persistence is the session-local key-value store drafts survive reloads in
type Persistence interface {
	Save(ctx context.Context, key Key, snapshot *Snapshot) error
	// Load returns found=false when no draft exists for key
	Load(ctx context.Context, key Key) (snapshot *Snapshot, found bool, err error)
	Delete(ctx context.Context, key Key) error
}
