package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/internal/inventory/service"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// SearchHandler handles receipt search and price history endpoints
type SearchHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(svc *service.StockService, log *logger.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  log,
	}
}

// ReceiptSearch searches receipt lines across all receipts
func (h *SearchHandler) ReceiptSearch(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)
	q := r.URL.Query()

	filter := repository.ReceiptSearchFilter{
		Query:      q.Get("q"),
		MedicineID: q.Get("medicine_id"),
		SupplierID: q.Get("supplier_id"),
		BatchNo:    q.Get("batch_no"),
		FromDate:   parseDateParam(r, "from_date"),
		ToDate:     parseDateParam(r, "to_date"),
		Page:       page,
		Limit:      perPage,
	}

	items, total, err := h.service.SearchReceipts(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, items, paginationMeta(page, perPage, total))
}

// PriceHistory returns recent purchase prices for a medicine
func (h *SearchHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	medicineID := chi.URLParam(r, "id")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	points, err := h.service.GetPriceHistory(r.Context(), medicineID, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, points)
}
