package handler

import (
	"net/http"
	"time"

	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/internal/inventory/service"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// IssueHandler handles stock issue endpoints
type IssueHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewIssueHandler creates a new issue handler
func NewIssueHandler(svc *service.StockService, log *logger.Logger) *IssueHandler {
	return &IssueHandler{
		service: svc,
		logger:  log,
	}
}

type fefoSuggestResponse struct {
	Suggested    *service.BatchView   `json:"suggested"`
	Alternatives []*service.BatchView `json:"alternatives"`
}

// SuggestFEFO suggests issue candidates for a medicine, earliest expiry first.
// The first candidate is the pick; the full ordered list rides along so the
// caller can override.
func (h *IssueHandler) SuggestFEFO(w http.ResponseWriter, r *http.Request) {
	medicineID := r.URL.Query().Get("medicine_id")
	if medicineID == "" {
		httputil.Error(w, errors.BadRequest("medicine_id is required"))
		return
	}

	batches, err := h.service.SuggestFEFO(r.Context(), medicineID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	resp := fefoSuggestResponse{Alternatives: batches}
	if len(batches) > 0 {
		resp.Suggested = batches[0]
	}
	httputil.JSON(w, http.StatusOK, resp)
}

type createIssueRequest struct {
	BatchStockID string    `json:"batch_stock_id" validate:"required,uuid"`
	IssuedBoxes  int       `json:"issued_boxes" validate:"required,gte=1"`
	IssuedDate   time.Time `json:"issued_date" validate:"required"`
	Remark       string    `json:"remark"`
}

// Create records a stock issue
func (h *IssueHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.CreateIssue(r.Context(), service.CreateIssueInput{
		BatchStockID: req.BatchStockID,
		IssuedBoxes:  req.IssuedBoxes,
		IssuedDate:   req.IssuedDate,
		Remark:       req.Remark,
		CreatedBy:    httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// List lists stock issues
func (h *IssueHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)
	q := r.URL.Query()

	filter := repository.IssueListFilter{
		BatchStockID: q.Get("batch_stock_id"),
		MedicineID:   q.Get("medicine_id"),
		FromDate:     parseDateParam(r, "from_date"),
		ToDate:       parseDateParam(r, "to_date"),
		Page:         page,
		Limit:        perPage,
	}

	issues, total, err := h.service.ListIssues(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, issues, paginationMeta(page, perPage, total))
}
