package service

import (
	"context"
	"time"

	catalogrepo "github.com/medstock/medstock-backend/internal/catalog/repository"
	"github.com/medstock/medstock-backend/internal/inventory/events"
	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// fefoSuggestLimit caps how many candidate batches a FEFO suggestion returns
const fefoSuggestLimit = 20

// StockService implements the stock ledger operations: receipt ingestion,
// FEFO issue, alerts and threshold settings.
type StockService struct {
	db           *database.DB
	batchRepo    *repository.BatchStockRepository
	receiptRepo  *repository.ReceiptRepository
	issueRepo    *repository.StockIssueRepository
	settingsRepo *repository.SettingsRepository
	medicineRepo *catalogrepo.MedicineRepository
	publisher    *events.StockEventPublisher
	logger       *logger.Logger
	now          func() time.Time
}

// NewStockService creates a new stock service
func NewStockService(
	db *database.DB,
	batchRepo *repository.BatchStockRepository,
	receiptRepo *repository.ReceiptRepository,
	issueRepo *repository.StockIssueRepository,
	settingsRepo *repository.SettingsRepository,
	medicineRepo *catalogrepo.MedicineRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *StockService {
	return &StockService{
		db:           db,
		batchRepo:    batchRepo,
		receiptRepo:  receiptRepo,
		issueRepo:    issueRepo,
		settingsRepo: settingsRepo,
		medicineRepo: medicineRepo,
		publisher:    publisher,
		logger:       log.WithComponent("stock_service"),
		now:          time.Now,
	}
}

// MedicineRef is the medicine master data attached to batch views
type MedicineRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Strength string `json:"strength"`
}

// BatchView is a ledger row with its medicine and derived classification
type BatchView struct {
	repository.BatchStock
	Medicine MedicineRef           `json:"medicine"`
	Flags    repository.BatchFlags `json:"flags"`
}

// ResolveFilterContext loads the threshold settings and derives the day
// boundaries every classification in the current request uses.
func (s *StockService) ResolveFilterContext(ctx context.Context) (repository.FilterContext, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return repository.FilterContext{}, err
	}
	return repository.NewFilterContext(s.now(), settings.LowStockLimitBoxes, settings.ExpiryAlertDays), nil
}

// ListBatches returns a filtered, classified page of ledger rows
func (s *StockService) ListBatches(ctx context.Context, filter repository.BatchListFilter) ([]*BatchView, int64, error) {
	fctx, err := s.ResolveFilterContext(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, total, err := s.batchRepo.List(ctx, filter, fctx)
	if err != nil {
		return nil, 0, err
	}

	return batchViews(rows, fctx), total, nil
}

// GetBatch returns one classified ledger row
func (s *StockService) GetBatch(ctx context.Context, id string) (*BatchView, error) {
	fctx, err := s.ResolveFilterContext(ctx)
	if err != nil {
		return nil, err
	}

	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	medicine, err := s.medicineRepo.GetByID(ctx, batch.MedicineID)
	if err != nil {
		return nil, err
	}

	return &BatchView{
		BatchStock: *batch,
		Medicine:   MedicineRef{ID: medicine.ID, Name: medicine.Name, Strength: medicine.Strength},
		Flags:      repository.ComputeFlags(batch.ExpiryDate, batch.AvailableBoxes, fctx),
	}, nil
}

// FindBatchByIdentity looks up a ledger row by its identity tuple. Returns
// (nil, nil) when no row exists, so callers can distinguish absent from error.
func (s *StockService) FindBatchByIdentity(ctx context.Context, identity repository.BatchIdentity) (*BatchView, error) {
	fctx, err := s.ResolveFilterContext(ctx)
	if err != nil {
		return nil, err
	}

	batch, err := s.batchRepo.FindByIdentity(ctx, identity)
	if err != nil || batch == nil {
		return nil, err
	}

	medicine, err := s.medicineRepo.GetByID(ctx, batch.MedicineID)
	if err != nil {
		return nil, err
	}

	return &BatchView{
		BatchStock: *batch,
		Medicine:   MedicineRef{ID: medicine.ID, Name: medicine.Name, Strength: medicine.Strength},
		Flags:      repository.ComputeFlags(batch.ExpiryDate, batch.AvailableBoxes, fctx),
	}, nil
}

func batchViews(rows []*repository.BatchListRow, fctx repository.FilterContext) []*BatchView {
	views := make([]*BatchView, 0, len(rows))
	for _, row := range rows {
		views = append(views, &BatchView{
			BatchStock: row.BatchStock,
			Medicine: MedicineRef{
				ID:       row.MedicineID,
				Name:     row.MedicineName,
				Strength: row.MedicineStrength,
			},
			Flags: repository.ComputeFlags(row.ExpiryDate, row.AvailableBoxes, fctx),
		})
	}
	return views
}
