package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medstock/medstock-backend/internal/inventory/service"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// AlertHandler handles stock alert endpoints
type AlertHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(svc *service.StockService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: svc,
		logger:  log,
	}
}

// List lists batches in one alert category
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	alertType := chi.URLParam(r, "alertType")
	page, perPage := parsePagination(r)
	sort := r.URL.Query().Get("sort")

	batches, total, err := h.service.ListAlerts(r.Context(), alertType, sort, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, batches, paginationMeta(page, perPage, total))
}
