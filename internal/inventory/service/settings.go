package service

import (
	"context"

	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/pkg/messaging"
)

// GetSettings returns the threshold settings, creating the singleton row
// with its defaults on first access.
func (s *StockService) GetSettings(ctx context.Context) (*repository.Settings, error) {
	return s.settingsRepo.Get(ctx)
}

// UpdateSettings applies a partial threshold update
func (s *StockService) UpdateSettings(ctx context.Context, patch repository.SettingsPatch, updatedBy string) (*repository.Settings, error) {
	settings, err := s.settingsRepo.Update(ctx, patch, updatedBy)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("low_stock_limit_boxes", settings.LowStockLimitBoxes).
		Int("expiry_alert_days", settings.ExpiryAlertDays).
		Str("updated_by", updatedBy).
		Msg("threshold settings updated")

	if s.publisher != nil {
		s.publisher.PublishSettingsUpdated(ctx, &messaging.SettingsUpdatedEvent{
			LowStockLimitBoxes: settings.LowStockLimitBoxes,
			ExpiryAlertDays:    settings.ExpiryAlertDays,
			UpdatedBy:          updatedBy,
		})
	}

	return settings, nil
}
