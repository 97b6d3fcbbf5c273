package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/messaging"
	"github.com/shopspring/decimal"
)

// CreateReceiptInput is a purchase receipt submission
type CreateReceiptInput struct {
	SupplierID    string
	InvoiceNumber string
	InvoiceDate   time.Time
	PaymentMode   string
	ReceiptType   string
	CreatedBy     string
	Items         []ReceiptItemInput
}

// ReceiptItemInput is one submitted receipt line
type ReceiptItemInput struct {
	MedicineID    string
	Pack          string
	BatchNo       string
	ExpiryDate    time.Time
	QuantityBoxes int
	PurchasePrice decimal.Decimal
	MRP           decimal.Decimal
}

// ReceiptResult is the outcome of a committed receipt
type ReceiptResult struct {
	ReceiptID    string                    `json:"receipt_id"`
	BatchUpdates []repository.BatchBalance `json:"batch_updates"`
}

// batchAccum is the running aggregate for one identity during ingestion
type batchAccum struct {
	identity      repository.BatchIdentity
	quantityBoxes int
	purchasePrice decimal.Decimal
	mrp           decimal.Decimal
}

// CreateReceipt ingests a purchase receipt atomically: header, audit lines
// and ledger increments commit or fail together. Lines sharing an identity
// are aggregated before hitting the ledger, quantities summed and the last
// submitted line's prices winning.
func (s *StockService) CreateReceipt(ctx context.Context, input CreateReceiptInput) (*ReceiptResult, error) {
	if len(input.Items) == 0 {
		return nil, errors.BadRequest("receipt must contain at least one item")
	}
	// RETURN_CREDIT lives in the schema enum but ingestion does not take it yet
	if input.ReceiptType != repository.ReceiptTypeNormalPurchase {
		return nil, errors.BadRequest("only NORMAL_PURCHASE receipts are accepted")
	}

	exists, err := s.receiptRepo.ExistsByInvoice(ctx, input.SupplierID, input.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.DuplicateInvoice()
	}

	receipt := &repository.PurchaseReceipt{
		SupplierID:    input.SupplierID,
		InvoiceNumber: input.InvoiceNumber,
		InvoiceDate:   input.InvoiceDate,
		PaymentMode:   input.PaymentMode,
		ReceiptType:   input.ReceiptType,
		CreatedBy:     input.CreatedBy,
	}

	items := make([]*repository.PurchaseReceiptItem, 0, len(input.Items))
	for _, in := range input.Items {
		items = append(items, &repository.PurchaseReceiptItem{
			MedicineID:    in.MedicineID,
			Pack:          in.Pack,
			BatchNo:       in.BatchNo,
			ExpiryDate:    in.ExpiryDate,
			QuantityBoxes: in.QuantityBoxes,
			PurchasePrice: in.PurchasePrice,
			MRP:           in.MRP,
		})
	}

	var updates []repository.BatchBalance

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.receiptRepo.InsertHeaderTx(ctx, tx, receipt); err != nil {
			return err
		}
		if err := s.receiptRepo.InsertItemsTx(ctx, tx, receipt.ID, items); err != nil {
			return err
		}

		for _, accum := range aggregateItems(input.Items) {
			balance, err := s.batchRepo.ApplyReceiptIncrement(ctx, tx,
				accum.identity, accum.quantityBoxes, accum.purchasePrice, accum.mrp)
			if err != nil {
				return err
			}
			updates = append(updates, *balance)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("receipt_id", receipt.ID).
		Str("invoice_number", receipt.InvoiceNumber).
		Int("item_count", len(items)).
		Int("batch_count", len(updates)).
		Msg("purchase receipt committed")

	s.publishStockReceived(ctx, receipt, updates)

	return &ReceiptResult{ReceiptID: receipt.ID, BatchUpdates: updates}, nil
}

// aggregateItems folds submitted lines by identity, preserving first-seen
// order. Quantities sum; prices are overwritten so the last line for an
// identity wins.
func aggregateItems(items []ReceiptItemInput) []*batchAccum {
	byKey := make(map[string]*batchAccum, len(items))
	order := make([]string, 0, len(items))

	for _, item := range items {
		key := identityKey(item.MedicineID, item.Pack, item.BatchNo, item.ExpiryDate)
		accum, ok := byKey[key]
		if !ok {
			accum = &batchAccum{
				identity: repository.BatchIdentity{
					MedicineID: item.MedicineID,
					Pack:       item.Pack,
					BatchNo:    item.BatchNo,
					ExpiryDate: item.ExpiryDate,
				},
			}
			byKey[key] = accum
			order = append(order, key)
		}
		accum.quantityBoxes += item.QuantityBoxes
		accum.purchasePrice = item.PurchasePrice
		accum.mrp = item.MRP
	}

	result := make([]*batchAccum, 0, len(order))
	for _, key := range order {
		result = append(result, byKey[key])
	}
	return result
}

func identityKey(medicineID, pack, batchNo string, expiryDate time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%d", medicineID, pack, batchNo, expiryDate.UnixNano())
}

func (s *StockService) publishStockReceived(ctx context.Context, receipt *repository.PurchaseReceipt, updates []repository.BatchBalance) {
	if s.publisher == nil || len(updates) == 0 {
		return
	}

	balances := make([]messaging.BatchBalance, 0, len(updates))
	for _, u := range updates {
		balances = append(balances, messaging.BatchBalance{
			BatchStockID:   u.BatchStockID,
			AvailableBoxes: u.AvailableBoxes,
		})
	}

	s.publisher.PublishStockReceived(ctx, &messaging.StockReceivedEvent{
		ReceiptID:     receipt.ID,
		SupplierID:    receipt.SupplierID,
		InvoiceNumber: receipt.InvoiceNumber,
		CreatedBy:     receipt.CreatedBy,
		BatchUpdates:  balances,
	})
}

// ReceiptView is a receipt header enriched with supplier and creator names
type ReceiptView struct {
	repository.PurchaseReceipt
	SupplierName  string `json:"supplier_name"`
	CreatedByName string `json:"created_by_name"`
	ItemCount     int    `json:"item_count"`
}

// ReceiptItemView is a receipt line enriched with medicine master data
type ReceiptItemView struct {
	repository.PurchaseReceiptItem
	Medicine MedicineRef `json:"medicine"`
}

// ReceiptDetail is a receipt header with its lines in submission order
type ReceiptDetail struct {
	ReceiptView
	Items []*ReceiptItemView `json:"items"`
}

// ListReceipts returns a page of receipt headers, newest invoice first
func (s *StockService) ListReceipts(ctx context.Context, filter repository.ReceiptListFilter) ([]*ReceiptView, int64, error) {
	rows, total, err := s.receiptRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	views := make([]*ReceiptView, 0, len(rows))
	for _, row := range rows {
		views = append(views, receiptView(row))
	}
	return views, total, nil
}

// GetReceiptDetail returns one receipt with its lines
func (s *StockService) GetReceiptDetail(ctx context.Context, id string) (*ReceiptDetail, error) {
	header, items, err := s.receiptRepo.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ReceiptDetail{
		ReceiptView: *receiptView(header),
		Items:       make([]*ReceiptItemView, 0, len(items)),
	}
	for _, item := range items {
		detail.Items = append(detail.Items, &ReceiptItemView{
			PurchaseReceiptItem: item.PurchaseReceiptItem,
			Medicine: MedicineRef{
				ID:       item.MedicineID,
				Name:     item.MedicineName,
				Strength: item.MedicineStrength,
			},
		})
	}
	return detail, nil
}

func receiptView(row *repository.ReceiptListRow) *ReceiptView {
	return &ReceiptView{
		PurchaseReceipt: row.PurchaseReceipt,
		SupplierName:    row.SupplierName,
		CreatedByName:   row.CreatedByName,
		ItemCount:       row.ItemCount,
	}
}
