package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*repository.BatchStockRepository, *database.DB, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	db := database.NewFromDB(mockDB.DB, logger.New("test", "test"))
	return repository.NewBatchStockRepository(db), db, mockDB
}

func TestApplyReceiptIncrement(t *testing.T) {
	repo, db, mockDB := newTestRepo(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO batch_stocks").
		WillReturnRows(sqlmock.NewRows([]string{"id", "available_boxes"}).AddRow("batch-1", 12))

	ctx := context.Background()
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)

	identity := repository.BatchIdentity{
		MedicineID: "med-1",
		Pack:       "1x10",
		BatchNo:    "B1",
		ExpiryDate: time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	balance, err := repo.ApplyReceiptIncrement(ctx, tx, identity, 5,
		decimal.NewFromInt(100), decimal.NewFromInt(120))
	require.NoError(t, err)
	assert.Equal(t, "batch-1", balance.BatchStockID)
	assert.Equal(t, 12, balance.AvailableBoxes)
	mockDB.ExpectationsWereMet(t)
}

func TestApplyIssueDecrement_InsufficientStock(t *testing.T) {
	repo, db, mockDB := newTestRepo(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("UPDATE batch_stocks").
		WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)

	_, err = repo.ApplyIssueDecrement(ctx, tx, "batch-1", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	mockDB.ExpectationsWereMet(t)
}

func TestApplyIssueDecrement(t *testing.T) {
	repo, db, mockDB := newTestRepo(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("UPDATE batch_stocks").
		WithArgs("batch-1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"available_boxes"}).AddRow(7))

	ctx := context.Background()
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)

	remaining, err := repo.ApplyIssueDecrement(ctx, tx, "batch-1", 5)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)
	mockDB.ExpectationsWereMet(t)
}

func TestFindByIdentity_AbsentIsNotError(t *testing.T) {
	repo, _, mockDB := newTestRepo(t)

	mockDB.ExpectQuery("FROM batch_stocks b").
		WillReturnError(sql.ErrNoRows)

	batch, err := repo.FindByIdentity(context.Background(), repository.BatchIdentity{
		MedicineID: "med-1",
		Pack:       "1x10",
		BatchNo:    "B1",
		ExpiryDate: time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Nil(t, batch)
	mockDB.ExpectationsWereMet(t)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, _, mockDB := newTestRepo(t)

	mockDB.ExpectQuery("FROM batch_stocks b").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestListByAlert_DefaultSortPerType(t *testing.T) {
	fctx := repository.NewFilterContext(time.Date(2027, 3, 15, 10, 0, 0, 0, time.UTC), 2, 30)

	tests := []struct {
		name      string
		alertType repository.AlertType
		sort      string
		orderBy   string
	}{
		{"low stock defaults to lowest balance first", repository.AlertLowStock, "", `ORDER BY b\.available_boxes ASC`},
		{"out of stock defaults to lowest balance first", repository.AlertOutOfStock, "", `ORDER BY b\.available_boxes ASC`},
		{"expired defaults to soonest expiry first", repository.AlertExpired, "", `ORDER BY b\.expiry_date ASC`},
		{"expiring soon defaults to soonest expiry first", repository.AlertExpiringSoon, "", `ORDER BY b\.expiry_date ASC`},
		{"explicit sort overrides the default", repository.AlertLowStock, "expiry_desc", `ORDER BY b\.expiry_date DESC`},
		{"unknown sort falls back to expiry", repository.AlertLowStock, "bogus", `ORDER BY b\.expiry_date ASC`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _, mockDB := newTestRepo(t)

			mockDB.Mock.ExpectQuery(`SELECT COUNT\(\*\) FROM batch_stocks b`).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
			mockDB.Mock.ExpectQuery(tt.orderBy).
				WillReturnRows(sqlmock.NewRows([]string{"id"}))

			_, total, err := repo.ListByAlert(context.Background(), tt.alertType, fctx, tt.sort, 1, 20)
			require.NoError(t, err)
			assert.Zero(t, total)
			mockDB.ExpectationsWereMet(t)
		})
	}
}
