package persistence

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a private in-memory SQLite database with every table migrated
func setupTestDB(t *testing.T) *gorm.DB {
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

	require.NoError(t, db.AutoMigrate(AllModels()...))
	return db
}

// newMockDB opens GORM on a sqlmock connection using the postgres dialector
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLine(t *testing.T, productID uuid.UUID, qty, price string) commerce.Line {
	t.Helper()
	l, err := commerce.NewLine(productID, dec(qty), dec(price), decimal.Zero)
	require.NoError(t, err)
	return l
}

func newTestOrder(t *testing.T, code string, customerID uuid.UUID, lines ...commerce.Line) *commerce.Order {
	t.Helper()
	o, err := commerce.NewOrder(code, customerID, uuid.New(), lines)
	require.NoError(t, err)
	return o
}

func newTestInvoice(t *testing.T, code string, customerID uuid.UUID, lines ...commerce.Line) *commerce.Invoice {
	t.Helper()
	inv, err := commerce.NewInvoice(code, customerID, uuid.New(), lines)
	require.NoError(t, err)
	return inv
}
