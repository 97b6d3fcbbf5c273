package service_test

import (
	"context"
	"flag"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	catalogrepo "github.com/medstock/medstock-backend/internal/catalog/repository"
	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/internal/inventory/service"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error

	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		panic("failed to create integration suite: " + err.Error())
	}

	code := m.Run()

	suite.Cleanup(ctx)
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func newIntegrationService(t *testing.T) *service.StockService {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	return service.NewStockService(suite.DB,
		repository.NewBatchStockRepository(suite.DB),
		repository.NewReceiptRepository(suite.DB),
		repository.NewStockIssueRepository(suite.DB),
		repository.NewSettingsRepository(suite.DB, 2, 30),
		catalogrepo.NewMedicineRepository(suite.DB),
		nil,
		suite.Logger,
	)
}

func seedUser(t *testing.T) string {
	t.Helper()
	id := uuid.New().String()
	_, err := suite.DB.ExecContext(context.Background(),
		`INSERT INTO users (id, full_name, username, password_hash) VALUES ($1, 'Test User', $2, 'x')`,
		id, "user-"+id[:8])
	require.NoError(t, err)
	return id
}

func seedMedicine(t *testing.T, name string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := suite.DB.ExecContext(context.Background(),
		`INSERT INTO medicines (id, name, strength) VALUES ($1, $2, '500mg')`, id, name)
	require.NoError(t, err)
	return id
}

func seedSupplier(t *testing.T, name string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := suite.DB.ExecContext(context.Background(),
		`INSERT INTO suppliers (id, name) VALUES ($1, $2)`, id, name)
	require.NoError(t, err)
	return id
}

func receiptInput(supplierID, userID string, items ...service.ReceiptItemInput) service.CreateReceiptInput {
	return service.CreateReceiptInput{
		SupplierID:    supplierID,
		InvoiceNumber: "INV-" + uuid.New().String()[:8],
		InvoiceDate:   time.Now().AddDate(0, 0, -1),
		PaymentMode:   repository.PaymentModeCash,
		ReceiptType:   repository.ReceiptTypeNormalPurchase,
		CreatedBy:     userID,
		Items:         items,
	}
}

func line(medicineID string, batchNo string, expiry time.Time, qty int, price int64) service.ReceiptItemInput {
	return service.ReceiptItemInput{
		MedicineID:    medicineID,
		Pack:          "1x10",
		BatchNo:       batchNo,
		ExpiryDate:    expiry,
		QuantityBoxes: qty,
		PurchasePrice: decimal.NewFromInt(price),
		MRP:           decimal.NewFromInt(price + 20),
	}
}

func TestReceiptIngestion_Integration(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	userID := seedUser(t)
	medicineID := seedMedicine(t, "Amoxicillin")
	supplierID := seedSupplier(t, "Acme Pharma")
	expiry := time.Date(2030, 6, 30, 0, 0, 0, 0, time.UTC)

	// Two lines share an identity: quantities sum, the second line's price wins
	result, err := svc.CreateReceipt(ctx, receiptInput(supplierID, userID,
		line(medicineID, "B1", expiry, 3, 100),
		line(medicineID, "B1", expiry, 2, 110),
		line(medicineID, "B2", expiry, 4, 90),
	))
	require.NoError(t, err)
	require.Len(t, result.BatchUpdates, 2)
	assert.Equal(t, 5, result.BatchUpdates[0].AvailableBoxes)
	assert.Equal(t, 4, result.BatchUpdates[1].AvailableBoxes)

	batch, err := svc.GetBatch(ctx, result.BatchUpdates[0].BatchStockID)
	require.NoError(t, err)
	assert.True(t, batch.PurchasePrice.Equal(decimal.NewFromInt(110)))

	// Receiving the same identity again increments the same ledger row
	again, err := svc.CreateReceipt(ctx, receiptInput(supplierID, userID,
		line(medicineID, "B1", expiry, 7, 120),
	))
	require.NoError(t, err)
	require.Len(t, again.BatchUpdates, 1)
	assert.Equal(t, result.BatchUpdates[0].BatchStockID, again.BatchUpdates[0].BatchStockID)
	assert.Equal(t, 12, again.BatchUpdates[0].AvailableBoxes)

	// The audit lines stay unaggregated
	detail, err := svc.GetReceiptDetail(ctx, result.ReceiptID)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 3)
	assert.Equal(t, 1, detail.Items[0].LineNo)
}

func TestReceiptDuplicateInvoice_Integration(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	userID := seedUser(t)
	medicineID := seedMedicine(t, "Ibuprofen")
	supplierID := seedSupplier(t, "Beta Pharma")
	expiry := time.Date(2030, 6, 30, 0, 0, 0, 0, time.UTC)

	input := receiptInput(supplierID, userID, line(medicineID, "B1", expiry, 3, 100))
	_, err := svc.CreateReceipt(ctx, input)
	require.NoError(t, err)

	// Same supplier and invoice number again
	input.Items = []service.ReceiptItemInput{line(medicineID, "B9", expiry, 1, 100)}
	_, err = svc.CreateReceipt(ctx, input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateInvoice))

	// The failed receipt left no ledger trace
	batch, err := svc.FindBatchByIdentity(ctx, repository.BatchIdentity{
		MedicineID: medicineID, Pack: "1x10", BatchNo: "B9", ExpiryDate: expiry,
	})
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestIssueFlow_Integration(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	userID := seedUser(t)
	medicineID := seedMedicine(t, "Paracetamol")
	supplierID := seedSupplier(t, "Gamma Pharma")
	expiry := time.Date(2030, 6, 30, 0, 0, 0, 0, time.UTC)

	result, err := svc.CreateReceipt(ctx, receiptInput(supplierID, userID,
		line(medicineID, "B1", expiry, 10, 100),
	))
	require.NoError(t, err)
	batchID := result.BatchUpdates[0].BatchStockID

	// Issuing before the first receipt date is rejected
	_, err = svc.CreateIssue(ctx, service.CreateIssueInput{
		BatchStockID: batchID,
		IssuedBoxes:  1,
		IssuedDate:   time.Now().AddDate(0, 0, -10),
		CreatedBy:    userID,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidIssueDate))

	// Issuing more than available is rejected before any write
	_, err = svc.CreateIssue(ctx, service.CreateIssueInput{
		BatchStockID: batchID,
		IssuedBoxes:  11,
		IssuedDate:   time.Now(),
		CreatedBy:    userID,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	issued, err := svc.CreateIssue(ctx, service.CreateIssueInput{
		BatchStockID: batchID,
		IssuedBoxes:  4,
		IssuedDate:   time.Now(),
		Remark:       "ward 3",
		CreatedBy:    userID,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, issued.RemainingBoxes)

	issues, total, err := svc.ListIssues(ctx, repository.IssueListFilter{BatchStockID: batchID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, issues, 1)
	assert.Equal(t, 4, issues[0].IssuedBoxes)
	assert.Equal(t, "ward 3", issues[0].Remark)
}

func TestIssueExpiredBatch_Integration(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	userID := seedUser(t)
	medicineID := seedMedicine(t, "Old Syrup")
	supplierID := seedSupplier(t, "Delta Pharma")
	expired := time.Now().AddDate(0, 0, -1)

	result, err := svc.CreateReceipt(ctx, receiptInput(supplierID, userID,
		line(medicineID, "B1", expired, 5, 100),
	))
	require.NoError(t, err)

	_, err = svc.CreateIssue(ctx, service.CreateIssueInput{
		BatchStockID: result.BatchUpdates[0].BatchStockID,
		IssuedBoxes:  1,
		IssuedDate:   time.Now(),
		CreatedBy:    userID,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBatchExpired))
}

func TestConcurrentIssues_Integration(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	userID := seedUser(t)
	medicineID := seedMedicine(t, "Contested Stock")
	supplierID := seedSupplier(t, "Epsilon Pharma")
	expiry := time.Date(2030, 6, 30, 0, 0, 0, 0, time.UTC)

	result, err := svc.CreateReceipt(ctx, receiptInput(supplierID, userID,
		line(medicineID, "B1", expiry, 10, 100),
	))
	require.NoError(t, err)
	batchID := result.BatchUpdates[0].BatchStockID

	// 5 workers each try to take 3 boxes from 10: exactly 3 can win
	const workers = 5
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateIssue(ctx, service.CreateIssueInput{
				BatchStockID: batchID,
				IssuedBoxes:  3,
				IssuedDate:   time.Now(),
				CreatedBy:    userID,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
		}
	}
	assert.Equal(t, 3, succeeded)

	batch, err := svc.GetBatch(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.AvailableBoxes)

	_, total, err := svc.ListIssues(ctx, repository.IssueListFilter{BatchStockID: batchID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestFEFOSuggest_Integration(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	userID := seedUser(t)
	medicineID := seedMedicine(t, "FEFO Med")
	supplierID := seedSupplier(t, "Zeta Pharma")

	late := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	early := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	past := time.Now().AddDate(0, 0, -5)

	_, err := svc.CreateReceipt(ctx, receiptInput(supplierID, userID,
		line(medicineID, "LATE", late, 5, 100),
		line(medicineID, "EARLY", early, 5, 100),
		line(medicineID, "GONE", past, 5, 100),
	))
	require.NoError(t, err)

	suggestions, err := svc.SuggestFEFO(ctx, medicineID)
	require.NoError(t, err)
	require.Len(t, suggestions, 2, "expired batch must not be suggested")
	assert.Equal(t, "EARLY", suggestions[0].BatchNo)
	assert.Equal(t, "LATE", suggestions[1].BatchNo)

	// Draining the earliest batch removes it from the suggestion list
	_, err = svc.CreateIssue(ctx, service.CreateIssueInput{
		BatchStockID: suggestions[0].ID,
		IssuedBoxes:  5,
		IssuedDate:   time.Now(),
		CreatedBy:    userID,
	})
	require.NoError(t, err)

	suggestions, err = svc.SuggestFEFO(ctx, medicineID)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "LATE", suggestions[0].BatchNo)
}

func TestAlertsMatchDashboard_Integration(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	userID := seedUser(t)
	medicineID := seedMedicine(t, "Alert Med")
	supplierID := seedSupplier(t, "Eta Pharma")

	expired := time.Now().AddDate(0, 0, -2)
	soon := time.Now().AddDate(0, 0, 10)
	healthy := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)

	result, err := svc.CreateReceipt(ctx, receiptInput(supplierID, userID,
		line(medicineID, "EXPIRED", expired, 5, 100),
		line(medicineID, "SOON", soon, 5, 100),
		line(medicineID, "LOW", healthy, 2, 100),
		line(medicineID, "DRAIN", healthy, 3, 100),
	))
	require.NoError(t, err)

	// Drain one batch to zero for the out-of-stock category
	var drainID string
	for _, u := range result.BatchUpdates {
		batch, err := svc.GetBatch(ctx, u.BatchStockID)
		require.NoError(t, err)
		if batch.BatchNo == "DRAIN" {
			drainID = batch.ID
		}
	}
	require.NotEmpty(t, drainID)
	_, err = svc.CreateIssue(ctx, service.CreateIssueInput{
		BatchStockID: drainID,
		IssuedBoxes:  3,
		IssuedDate:   time.Now(),
		CreatedBy:    userID,
	})
	require.NoError(t, err)

	summary, err := svc.GetDashboardSummary(ctx)
	require.NoError(t, err)

	for alertType, count := range map[string]int64{
		"EXPIRED":       summary.ExpiredCount,
		"EXPIRING_SOON": summary.ExpiringSoonCount,
		"LOW_STOCK":     summary.LowStockCount,
		"OUT_OF_STOCK":  summary.OutOfStockCount,
	} {
		batches, total, err := svc.ListAlerts(ctx, alertType, "", 1, 100)
		require.NoError(t, err, alertType)
		assert.Equal(t, count, total, "dashboard count must match %s listing", alertType)
		assert.NotZero(t, total, alertType)

		for _, b := range batches {
			switch alertType {
			case "EXPIRED":
				assert.True(t, b.Flags.IsExpired, "%s: %s", alertType, b.BatchNo)
			case "EXPIRING_SOON":
				assert.True(t, b.Flags.ExpiringSoon, "%s: %s", alertType, b.BatchNo)
			case "LOW_STOCK":
				assert.True(t, b.Flags.LowStock, "%s: %s", alertType, b.BatchNo)
			case "OUT_OF_STOCK":
				assert.True(t, b.Flags.OutOfStock, "%s: %s", alertType, b.BatchNo)
			}
		}
	}
}

func TestSettings_Integration(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	userID := seedUser(t)

	settings, err := svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, settings.LowStockLimitBoxes)
	assert.Equal(t, 30, settings.ExpiryAlertDays)

	five := 5
	updated, err := svc.UpdateSettings(ctx, repository.SettingsPatch{
		LowStockLimitBoxes: &five,
	}, userID)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.LowStockLimitBoxes)
	assert.Equal(t, 30, updated.ExpiryAlertDays)

	// One row only: a second read sees the same values
	again, err := svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, again.LowStockLimitBoxes)

	var count int
	require.NoError(t, suite.DB.GetContext(ctx, &count, `SELECT COUNT(*) FROM settings`))
	assert.Equal(t, 1, count)

	// Restore defaults so other tests in the package see the seeded values
	two := 2
	_, err = svc.UpdateSettings(ctx, repository.SettingsPatch{LowStockLimitBoxes: &two}, userID)
	require.NoError(t, err)
}

func TestPriceHistory_Integration(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	userID := seedUser(t)
	medicineID := seedMedicine(t, "Priced Med")
	supplierID := seedSupplier(t, "Theta Pharma")
	expiry := time.Date(2030, 6, 30, 0, 0, 0, 0, time.UTC)

	first := receiptInput(supplierID, userID, line(medicineID, "B1", expiry, 5, 100))
	first.InvoiceDate = time.Now().AddDate(0, 0, -30)
	_, err := svc.CreateReceipt(ctx, first)
	require.NoError(t, err)

	second := receiptInput(supplierID, userID, line(medicineID, "B2", expiry, 5, 110))
	second.InvoiceDate = time.Now().AddDate(0, 0, -1)
	_, err = svc.CreateReceipt(ctx, second)
	require.NoError(t, err)

	points, err := svc.GetPriceHistory(ctx, medicineID, 10)
	require.NoError(t, err)
	require.Len(t, points, 2)
	// Newest invoice first
	assert.True(t, points[0].PurchasePrice.Equal(decimal.NewFromInt(110)))
	assert.True(t, points[1].PurchasePrice.Equal(decimal.NewFromInt(100)))
}
