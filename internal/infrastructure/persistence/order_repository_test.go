package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGormOrderRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	productA, productB := uuid.New(), uuid.New()
	order := newTestOrder(t, "SO-2026-00001", uuid.New(),
		testLine(t, productA, "10", "5"),
		testLine(t, productB, "2", "12.5"),
	)
	order.DeliveryMeta = map[string]any{"address": "12 Market St"}
	order.Note = "call before delivery"
	require.NoError(t, repo.Create(ctx, order))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, order.Code, found.Code)
	assert.Equal(t, order.CustomerID, found.CustomerID)
	assert.Equal(t, 1, found.Version)
	require.Len(t, found.Lines, 2)
	assert.Equal(t, productA, found.Lines[0].ProductID)
	assert.Equal(t, productB, found.Lines[1].ProductID)
	assert.True(t, found.Lines[1].UnitPrice.Equal(dec("12.5")))
	assert.Equal(t, "12 Market St", found.DeliveryMeta["address"])
	assert.Equal(t, "call before delivery", found.Note)
	assert.Empty(t, found.GetDomainEvents())
}

func TestGormOrderRepository_FindByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormOrderRepository_UpdateWithLock(t *testing.T) {
	t.Run("writes and bumps version", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormOrderRepository(db)
		ctx := context.Background()

		productA, productC := uuid.New(), uuid.New()
		order := newTestOrder(t, "SO-2026-00001", uuid.New(), testLine(t, productA, "10", "5"))
		require.NoError(t, repo.Create(ctx, order))

		require.NoError(t, order.Confirm())
		require.NoError(t, order.ReplaceLines(append(order.Lines, testLine(t, productC, "1", "3"))))
		require.NoError(t, repo.UpdateWithLock(ctx, order))
		assert.Equal(t, 2, order.Version)

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, found.Version)
		assert.Equal(t, order.Status, found.Status)
		assert.Len(t, found.Lines, 2)
		assert.NotNil(t, found.ConfirmedAt)
	})

	t.Run("second writer from the same version is rejected", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormOrderRepository(db)
		ctx := context.Background()

		order := newTestOrder(t, "SO-2026-00001", uuid.New(), testLine(t, uuid.New(), "1", "1"))
		require.NoError(t, repo.Create(ctx, order))

		first, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)

		first.Note = "first"
		require.NoError(t, repo.UpdateWithLock(ctx, first))

		second.Note = "second"
		err = repo.UpdateWithLock(ctx, second)
		require.Error(t, err)

		var stale *shared.StaleWriteError
		require.True(t, errors.As(err, &stale))
		assert.Equal(t, "order", stale.DocumentType)
		assert.Equal(t, 1, stale.ExpectedVersion)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, 1, second.Version)

		stored, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", stored.Note)
	})

	t.Run("missing row is not found", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormOrderRepository(db)

		order := newTestOrder(t, "SO-2026-00009", uuid.New(), testLine(t, uuid.New(), "1", "1"))
		err := repo.UpdateWithLock(context.Background(), order)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormOrderRepository_UpdateWithLock_SQL(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormOrderRepository(gormDB)

	order := newTestOrder(t, "SO-2026-00001", uuid.New(), testLine(t, uuid.New(), "1", "1"))
	order.Version = 3

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET .* WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "orders" WHERE id = \$1`).
		WithArgs(order.ID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.UpdateWithLock(context.Background(), order)

	var stale *shared.StaleWriteError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, 3, stale.ExpectedVersion)
	assert.Equal(t, 3, order.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_FindByID_SQLError(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormOrderRepository(gormDB)

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1`).
		WithArgs(id, 1).
		WillReturnError(gorm.ErrInvalidDB)

	_, err := repo.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, gorm.ErrInvalidDB)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_GenerateCode(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	repo.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	code, err := repo.GenerateCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SO-2026-00001", code)

	require.NoError(t, repo.Create(ctx, newTestOrder(t, code, uuid.New(), testLine(t, uuid.New(), "1", "1"))))
	require.NoError(t, repo.Create(ctx, newTestOrder(t, "SO-2025-00042", uuid.New(), testLine(t, uuid.New(), "1", "1"))))

	code, err = repo.GenerateCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SO-2026-00002", code)
}
