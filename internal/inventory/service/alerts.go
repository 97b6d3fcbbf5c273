package service

import (
	"context"

	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/pkg/errors"
)

// ListAlerts returns the page of batches matched by one alert category,
// classified against the same context the predicate used.
func (s *StockService) ListAlerts(ctx context.Context, alertType string, sort string, page, limit int) ([]*BatchView, int64, error) {
	parsed, ok := repository.ParseAlertType(alertType)
	if !ok {
		return nil, 0, errors.BadRequest("unknown alert type: " + alertType)
	}

	fctx, err := s.ResolveFilterContext(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, total, err := s.batchRepo.ListByAlert(ctx, parsed, fctx, sort, page, limit)
	if err != nil {
		return nil, 0, err
	}

	return batchViews(rows, fctx), total, nil
}

// DashboardSummary is the headline inventory counters
type DashboardSummary struct {
	TotalMedicines    int64 `json:"total_medicines"`
	ExpiredCount      int64 `json:"expired_count"`
	ExpiringSoonCount int64 `json:"expiring_soon_count"`
	LowStockCount     int64 `json:"low_stock_count"`
	OutOfStockCount   int64 `json:"out_of_stock_count"`
}

// GetDashboardSummary computes the counters with the alert predicates, so
// each number matches the length of the corresponding alert listing.
func (s *StockService) GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	fctx, err := s.ResolveFilterContext(ctx)
	if err != nil {
		return nil, err
	}

	summary := &DashboardSummary{}

	summary.TotalMedicines, err = s.medicineRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	counts := []struct {
		alertType repository.AlertType
		dest      *int64
	}{
		{repository.AlertExpired, &summary.ExpiredCount},
		{repository.AlertExpiringSoon, &summary.ExpiringSoonCount},
		{repository.AlertLowStock, &summary.LowStockCount},
		{repository.AlertOutOfStock, &summary.OutOfStockCount},
	}
	for _, c := range counts {
		*c.dest, err = s.batchRepo.CountByAlert(ctx, c.alertType, fctx)
		if err != nil {
			return nil, err
		}
	}

	return summary, nil
}
