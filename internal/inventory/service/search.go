package service

import (
	"context"
	"time"

	"github.com/medstock/medstock-backend/internal/inventory/repository"
)

// ReceiptSearchView is one matched receipt line with its receipt context
type ReceiptSearchView struct {
	ReceiptItemView
	InvoiceNumber string    `json:"invoice_number"`
	InvoiceDate   time.Time `json:"invoice_date"`
	SupplierID    string    `json:"supplier_id"`
	SupplierName  string    `json:"supplier_name"`
}

// SearchReceipts searches receipt lines across all receipts
func (s *StockService) SearchReceipts(ctx context.Context, filter repository.ReceiptSearchFilter) ([]*ReceiptSearchView, int64, error) {
	rows, total, err := s.receiptRepo.SearchItems(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	views := make([]*ReceiptSearchView, 0, len(rows))
	for _, row := range rows {
		views = append(views, &ReceiptSearchView{
			ReceiptItemView: ReceiptItemView{
				PurchaseReceiptItem: row.PurchaseReceiptItem,
				Medicine: MedicineRef{
					ID:       row.MedicineID,
					Name:     row.MedicineName,
					Strength: row.MedicineStrength,
				},
			},
			InvoiceNumber: row.InvoiceNumber,
			InvoiceDate:   row.InvoiceDate,
			SupplierID:    row.SupplierID,
			SupplierName:  row.SupplierName,
		})
	}
	return views, total, nil
}

// GetPriceHistory returns recent purchase price observations for a medicine
func (s *StockService) GetPriceHistory(ctx context.Context, medicineID string, limit int) ([]*repository.PricePoint, error) {
	if _, err := s.medicineRepo.GetByID(ctx, medicineID); err != nil {
		return nil, err
	}
	return s.receiptRepo.PriceHistory(ctx, medicineID, limit)
}
