package handler

import (
	"net/http"

	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/internal/inventory/service"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// SettingsHandler handles threshold settings endpoints
type SettingsHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(svc *service.StockService, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: svc,
		logger:  log,
	}
}

// Get returns the threshold settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetSettings(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, settings)
}

type updateSettingsRequest struct {
	LowStockLimitBoxes *int `json:"low_stock_limit_boxes" validate:"omitempty,gte=0"`
	ExpiryAlertDays    *int `json:"expiry_alert_days" validate:"omitempty,gte=0"`
}

// Update applies a partial settings update
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	settings, err := h.service.UpdateSettings(r.Context(), repository.SettingsPatch{
		LowStockLimitBoxes: req.LowStockLimitBoxes,
		ExpiryAlertDays:    req.ExpiryAlertDays,
	}, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, settings)
}
