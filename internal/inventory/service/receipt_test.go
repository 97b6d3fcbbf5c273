package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	catalogrepo "github.com/medstock/medstock-backend/internal/catalog/repository"
	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*StockService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewFromDB(mockDB.DB, log)

	svc := NewStockService(db,
		repository.NewBatchStockRepository(db),
		repository.NewReceiptRepository(db),
		repository.NewStockIssueRepository(db),
		repository.NewSettingsRepository(db, 2, 30),
		catalogrepo.NewMedicineRepository(db),
		nil,
		log,
	)
	return svc, mockDB
}

func TestAggregateItems_SumsQuantitiesPerIdentity(t *testing.T) {
	expiry := time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)

	items := []ReceiptItemInput{
		{MedicineID: "med-1", Pack: "10x10", BatchNo: "B1", ExpiryDate: expiry, QuantityBoxes: 3,
			PurchasePrice: decimal.NewFromInt(100), MRP: decimal.NewFromInt(120)},
		{MedicineID: "med-1", Pack: "10x10", BatchNo: "B1", ExpiryDate: expiry, QuantityBoxes: 2,
			PurchasePrice: decimal.NewFromInt(110), MRP: decimal.NewFromInt(130)},
	}

	result := aggregateItems(items)
	require.Len(t, result, 1)
	assert.Equal(t, 5, result[0].quantityBoxes)
	// The last submitted line's prices win
	assert.True(t, result[0].purchasePrice.Equal(decimal.NewFromInt(110)))
	assert.True(t, result[0].mrp.Equal(decimal.NewFromInt(130)))
}

func TestAggregateItems_PreservesSubmissionOrder(t *testing.T) {
	expiry := time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)

	items := []ReceiptItemInput{
		{MedicineID: "med-2", Pack: "1x10", BatchNo: "Z9", ExpiryDate: expiry, QuantityBoxes: 1},
		{MedicineID: "med-1", Pack: "1x10", BatchNo: "A1", ExpiryDate: expiry, QuantityBoxes: 1},
		{MedicineID: "med-2", Pack: "1x10", BatchNo: "Z9", ExpiryDate: expiry, QuantityBoxes: 4},
	}

	result := aggregateItems(items)
	require.Len(t, result, 2)
	assert.Equal(t, "med-2", result[0].identity.MedicineID)
	assert.Equal(t, 5, result[0].quantityBoxes)
	assert.Equal(t, "med-1", result[1].identity.MedicineID)
}

func TestAggregateItems_DistinctExpiryIsDistinctIdentity(t *testing.T) {
	items := []ReceiptItemInput{
		{MedicineID: "med-1", Pack: "1x10", BatchNo: "B1",
			ExpiryDate: time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC), QuantityBoxes: 1},
		{MedicineID: "med-1", Pack: "1x10", BatchNo: "B1",
			ExpiryDate: time.Date(2027, 7, 31, 0, 0, 0, 0, time.UTC), QuantityBoxes: 1},
	}

	result := aggregateItems(items)
	assert.Len(t, result, 2)
}

func TestCreateReceipt_DuplicateInvoice(t *testing.T) {
	svc, mockDB := newTestService(t)

	mockDB.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		SupplierID:    "sup-1",
		InvoiceNumber: "INV-001",
		InvoiceDate:   time.Now(),
		PaymentMode:   repository.PaymentModeCash,
		ReceiptType:   repository.ReceiptTypeNormalPurchase,
		CreatedBy:     "user-1",
		Items: []ReceiptItemInput{
			{MedicineID: "med-1", Pack: "1x10", BatchNo: "B1",
				ExpiryDate: time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC), QuantityBoxes: 1},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateInvoice))
	mockDB.ExpectationsWereMet(t)
}

func TestCreateReceipt_EmptyItems(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		SupplierID:    "sup-1",
		InvoiceNumber: "INV-001",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestCreateReceipt_NormalPurchase(t *testing.T) {
	svc, mockDB := newTestService(t)

	expiry := time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)

	mockDB.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO purchase_receipts").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mockDB.ExpectExec("INSERT INTO purchase_receipt_items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO batch_stocks").
		WillReturnRows(sqlmock.NewRows([]string{"id", "available_boxes"}).AddRow("batch-1", 5))
	mockDB.ExpectCommit()

	result, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		SupplierID:    "sup-1",
		InvoiceNumber: "INV-001",
		InvoiceDate:   time.Now(),
		PaymentMode:   repository.PaymentModeCash,
		ReceiptType:   repository.ReceiptTypeNormalPurchase,
		CreatedBy:     "user-1",
		Items: []ReceiptItemInput{
			{MedicineID: "med-1", Pack: "1x10", BatchNo: "B1", ExpiryDate: expiry, QuantityBoxes: 5,
				PurchasePrice: decimal.NewFromInt(100), MRP: decimal.NewFromInt(120)},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.BatchUpdates, 1)
	assert.Equal(t, "batch-1", result.BatchUpdates[0].BatchStockID)
	assert.Equal(t, 5, result.BatchUpdates[0].AvailableBoxes)
	mockDB.ExpectationsWereMet(t)
}

func TestCreateReceipt_ReturnCreditRejected(t *testing.T) {
	svc, mockDB := newTestService(t)

	expiry := time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)

	_, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		SupplierID:    "sup-1",
		InvoiceNumber: "INV-002",
		InvoiceDate:   time.Now(),
		PaymentMode:   repository.PaymentModeCredit,
		ReceiptType:   repository.ReceiptTypeReturnCredit,
		CreatedBy:     "user-1",
		Items: []ReceiptItemInput{
			{MedicineID: "med-1", Pack: "1x10", BatchNo: "B1", ExpiryDate: expiry, QuantityBoxes: 5},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
	mockDB.ExpectationsWereMet(t)
}
