package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/internal/inventory/service"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// BatchHandler handles batch stock endpoints
type BatchHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.StockService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

// List lists batch stocks with filtering and classification
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)
	q := r.URL.Query()

	filter := repository.BatchListFilter{
		Query:             q.Get("q"),
		MedicineID:        q.Get("medicine_id"),
		Pack:              q.Get("pack"),
		BatchNo:           q.Get("batch_no"),
		ExpiryStatus:      q.Get("expiry_status"),
		StockStatus:       q.Get("stock_status"),
		// absent means include; only an explicit false hides zero-balance rows
		IncludeOutOfStock: q.Get("include_out_of_stock") != "false",
		Sort:              q.Get("sort"),
		Page:              page,
		Limit:             perPage,
	}

	batches, total, err := h.service.ListBatches(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, batches, paginationMeta(page, perPage, total))
}

// Get gets a batch stock by ID
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Lookup resolves a batch by its identity tuple. The response reports
// whether the identity is known, so clients can prefill receipt forms.
func (h *BatchHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	expiryDate := parseDateParam(r, "expiry_date")
	if q.Get("medicine_id") == "" || q.Get("pack") == "" || q.Get("batch_no") == "" || expiryDate.IsZero() {
		httputil.Error(w, errors.BadRequest("medicine_id, pack, batch_no and expiry_date are required"))
		return
	}

	identity := repository.BatchIdentity{
		MedicineID: q.Get("medicine_id"),
		Pack:       q.Get("pack"),
		BatchNo:    q.Get("batch_no"),
		ExpiryDate: expiryDate,
	}

	batch, err := h.service.FindBatchByIdentity(r.Context(), identity)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, struct {
		Found bool               `json:"found"`
		Batch *service.BatchView `json:"batch,omitempty"`
	}{
		Found: batch != nil,
		Batch: batch,
	})
}
