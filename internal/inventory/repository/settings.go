package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/medstock/medstock-backend/pkg/database"
)

// Settings is the singleton threshold configuration row
type Settings struct {
	LowStockLimitBoxes int            `db:"low_stock_limit_boxes" json:"low_stock_limit_boxes"`
	ExpiryAlertDays    int            `db:"expiry_alert_days" json:"expiry_alert_days"`
	UpdatedBy          sql.NullString `db:"updated_by" json:"-"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// SettingsPatch carries the fields of a partial settings update. Nil fields
// are left untouched.
type SettingsPatch struct {
	LowStockLimitBoxes *int
	ExpiryAlertDays    *int
}

// SettingsRepository handles the singleton settings row. The table's
// boolean primary key guarantees at most one row exists.
type SettingsRepository struct {
	db                        *database.DB
	defaultLowStockLimitBoxes int
	defaultExpiryAlertDays    int
}

// NewSettingsRepository creates a new settings repository. The defaults
// seed the row on first access.
func NewSettingsRepository(db *database.DB, defaultLowStockLimitBoxes, defaultExpiryAlertDays int) *SettingsRepository {
	return &SettingsRepository{
		db:                        db,
		defaultLowStockLimitBoxes: defaultLowStockLimitBoxes,
		defaultExpiryAlertDays:    defaultExpiryAlertDays,
	}
}

// Get returns the settings row, creating it with the configured defaults on
// first access. Concurrent first readers race harmlessly: the insert is a
// no-op for all but one of them.
func (r *SettingsRepository) Get(ctx context.Context) (*Settings, error) {
	seed := `INSERT INTO settings (id, low_stock_limit_boxes, expiry_alert_days) VALUES (TRUE, $1, $2) ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, seed, r.defaultLowStockLimitBoxes, r.defaultExpiryAlertDays)
	if err != nil {
		return nil, err
	}

	var settings Settings
	query := `SELECT low_stock_limit_boxes, expiry_alert_days, updated_by, created_at, updated_at FROM settings WHERE id`
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update applies a partial update and returns the resulting row
func (r *SettingsRepository) Update(ctx context.Context, patch SettingsPatch, updatedBy string) (*Settings, error) {
	if _, err := r.Get(ctx); err != nil {
		return nil, err
	}

	var settings Settings
	query := `
		UPDATE settings SET
			low_stock_limit_boxes = COALESCE($1, low_stock_limit_boxes),
			expiry_alert_days = COALESCE($2, expiry_alert_days),
			updated_by = $3,
			updated_at = now()
		WHERE id
		RETURNING low_stock_limit_boxes, expiry_alert_days, updated_by, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, patch.LowStockLimitBoxes, patch.ExpiryAlertDays, updatedBy).StructScan(&settings)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	return &settings, nil
}
