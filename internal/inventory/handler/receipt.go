package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/internal/inventory/service"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// ReceiptHandler handles purchase receipt endpoints
type ReceiptHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(svc *service.StockService, log *logger.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		service: svc,
		logger:  log,
	}
}

type receiptItemRequest struct {
	MedicineID    string          `json:"medicine_id" validate:"required,uuid"`
	Pack          string          `json:"pack" validate:"required"`
	BatchNo       string          `json:"batch_no" validate:"required"`
	ExpiryDate    time.Time       `json:"expiry_date" validate:"required"`
	QuantityBoxes int             `json:"quantity_boxes" validate:"required,gte=1"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	MRP           decimal.Decimal `json:"mrp"`
}

type createReceiptRequest struct {
	SupplierID    string               `json:"supplier_id" validate:"required,uuid"`
	InvoiceNumber string               `json:"invoice_number" validate:"required"`
	InvoiceDate   time.Time            `json:"invoice_date" validate:"required"`
	PaymentMode   string               `json:"payment_mode" validate:"required,oneof=CASH CREDIT BANK OTHER"`
	ReceiptType   string               `json:"receipt_type" validate:"required,oneof=NORMAL_PURCHASE RETURN_CREDIT"`
	Items         []receiptItemRequest `json:"items" validate:"required,min=1,dive"`
}

// Create ingests a purchase receipt
func (h *ReceiptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReceiptRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	input := service.CreateReceiptInput{
		SupplierID:    req.SupplierID,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceDate:   req.InvoiceDate,
		PaymentMode:   req.PaymentMode,
		ReceiptType:   req.ReceiptType,
		CreatedBy:     httputil.GetUserID(r.Context()),
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, service.ReceiptItemInput{
			MedicineID:    item.MedicineID,
			Pack:          item.Pack,
			BatchNo:       item.BatchNo,
			ExpiryDate:    item.ExpiryDate,
			QuantityBoxes: item.QuantityBoxes,
			PurchasePrice: item.PurchasePrice,
			MRP:           item.MRP,
		})
	}

	result, err := h.service.CreateReceipt(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// List lists purchase receipts
func (h *ReceiptHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	filter := repository.ReceiptListFilter{
		SupplierID: r.URL.Query().Get("supplier_id"),
		FromDate:   parseDateParam(r, "from_date"),
		ToDate:     parseDateParam(r, "to_date"),
		Page:       page,
		Limit:      perPage,
	}

	receipts, total, err := h.service.ListReceipts(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, receipts, paginationMeta(page, perPage, total))
}

// Get gets a receipt with its items
func (h *ReceiptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	detail, err := h.service.GetReceiptDetail(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}
