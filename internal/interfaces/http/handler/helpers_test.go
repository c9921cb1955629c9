package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	commerceapp "github.com/erp/backoffice/internal/application/commerce"
	draftapp "github.com/erp/backoffice/internal/application/draft"
	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/erp/backoffice/internal/infrastructure/persistence"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
	"github.com/erp/backoffice/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testServer is the full API over an in-memory SQLite database
type testServer struct {
	engine      *gin.Engine
	db          *gorm.DB
	customerID  uuid.UUID
	branchID    uuid.UUID
	collectorID uuid.UUID
	priceBookID uuid.UUID
	bookProduct uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(persistence.AllModels()...))

	s := &testServer{
		db:          db,
		customerID:  uuid.New(),
		branchID:    uuid.New(),
		collectorID: uuid.New(),
		priceBookID: uuid.New(),
		bookProduct: uuid.New(),
	}
	s.seed(t)

	sessions := draftapp.NewSessionManager(cache.NewInMemoryDraftStore(time.Hour), zap.NewNop())
	documents := commerceapp.NewDocumentService(
		persistence.NewGormDocumentStore(db),
		persistence.NewGormCustomerService(db),
		persistence.NewGormCatalogService(db),
		sessions,
		zap.NewNop(),
	)
	system := NewSystemHandler("pos-backoffice", "test")

	middleware.SetupValidator()
	s.engine = gin.New()
	s.engine.Use(middleware.RequestID())
	r := router.NewRouter(s.engine, router.WithAPIVersion("v1"))
	NewHandlers(documents, sessions, system).Register(r)
	r.Setup()
	return s
}

func (s *testServer) seed(t *testing.T) {
	t.Helper()
	customer := models.CustomerModel{
		BaseModel: models.BaseModel{ID: s.customerID},
		Code:      "C-0001",
		Name:      "Walk-in",
		Active:    true,
	}
	require.NoError(t, s.db.Create(&customer).Error)

	book := models.PriceBookModel{
		BaseModel: models.BaseModel{ID: s.priceBookID},
		Name:      "Retail",
		Active:    true,
	}
	require.NoError(t, s.db.Create(&book).Error)
	item := models.PriceBookItemModel{
		ID:          uuid.New(),
		PriceBookID: s.priceBookID,
		ProductID:   s.bookProduct,
		Price:       decimal.RequireFromString("42.50"),
	}
	require.NoError(t, s.db.Create(&item).Error)
}

// envelope mirrors dto.Response with the payload left undecoded
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), string(env.Data))
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(productID uuid.UUID, qty, price string) map[string]any {
	return map[string]any{
		"product_id": productID,
		"quantity":   qty,
		"unit_price": price,
	}
}

// createOrder posts an order with the given lines and returns it
func (s *testServer) createOrder(t *testing.T, confirm bool, lines ...map[string]any) commerceapp.OrderResponse {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/orders", map[string]any{
		"customer_id": s.customerID,
		"branch_id":   s.branchID,
		"lines":       lines,
		"confirm":     confirm,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[commerceapp.OrderResponse](t, env)
}

// createInvoice posts a standalone invoice and returns it
func (s *testServer) createInvoice(t *testing.T, lines ...map[string]any) commerceapp.InvoiceResponse {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/invoices", map[string]any{
		"customer_id": s.customerID,
		"branch_id":   s.branchID,
		"lines":       lines,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[commerceapp.InvoiceResponse](t, env)
}
