package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Payment modes accepted on a purchase receipt
const (
	PaymentModeCash   = "CASH"
	PaymentModeCredit = "CREDIT"
	PaymentModeBank   = "BANK"
	PaymentModeOther  = "OTHER"
)

// Receipt types. Only NORMAL_PURCHASE moves stock; RETURN_CREDIT is
// recorded for bookkeeping without touching the ledger.
const (
	ReceiptTypeNormalPurchase = "NORMAL_PURCHASE"
	ReceiptTypeReturnCredit   = "RETURN_CREDIT"
)

// PurchaseReceipt is a receipt header
type PurchaseReceipt struct {
	ID            string    `db:"id" json:"id"`
	SupplierID    string    `db:"supplier_id" json:"supplier_id"`
	InvoiceNumber string    `db:"invoice_number" json:"invoice_number"`
	InvoiceDate   time.Time `db:"invoice_date" json:"invoice_date"`
	PaymentMode   string    `db:"payment_mode" json:"payment_mode"`
	ReceiptType   string    `db:"receipt_type" json:"receipt_type"`
	CreatedBy     string    `db:"created_by" json:"created_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PurchaseReceiptItem is one unaggregated receipt line, kept exactly as
// submitted. The ledger aggregates these; the items themselves are the
// audit record.
type PurchaseReceiptItem struct {
	ID            string          `db:"id" json:"id"`
	ReceiptID     string          `db:"receipt_id" json:"receipt_id"`
	LineNo        int             `db:"line_no" json:"line_no"`
	MedicineID    string          `db:"medicine_id" json:"medicine_id"`
	Pack          string          `db:"pack" json:"pack"`
	BatchNo       string          `db:"batch_no" json:"batch_no"`
	ExpiryDate    time.Time       `db:"expiry_date" json:"expiry_date"`
	QuantityBoxes int             `db:"quantity_boxes" json:"quantity_boxes"`
	PurchasePrice decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	MRP           decimal.Decimal `db:"mrp" json:"mrp"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// ReceiptListRow is a receipt header joined with supplier and creator names
type ReceiptListRow struct {
	PurchaseReceipt
	SupplierName  string `db:"supplier_name" json:"-"`
	CreatedByName string `db:"created_by_name" json:"-"`
	ItemCount     int    `db:"item_count" json:"-"`
}

// ReceiptItemRow is a receipt item joined with its medicine master data
type ReceiptItemRow struct {
	PurchaseReceiptItem
	MedicineName     string `db:"medicine_name" json:"-"`
	MedicineStrength string `db:"medicine_strength" json:"-"`
}

// ReceiptSearchRow is an item row joined with its receipt header and
// supplier, used by the receipt search surface.
type ReceiptSearchRow struct {
	ReceiptItemRow
	InvoiceNumber string    `db:"invoice_number" json:"-"`
	InvoiceDate   time.Time `db:"invoice_date" json:"-"`
	SupplierID    string    `db:"supplier_id" json:"-"`
	SupplierName  string    `db:"supplier_name" json:"-"`
}

// ReceiptListFilter narrows a receipt listing
type ReceiptListFilter struct {
	SupplierID string
	FromDate   time.Time
	ToDate     time.Time
	Page       int
	Limit      int
}

// ReceiptSearchFilter narrows a receipt item search
type ReceiptSearchFilter struct {
	Query      string
	MedicineID string
	SupplierID string
	BatchNo    string
	FromDate   time.Time
	ToDate     time.Time
	Page       int
	Limit      int
}

// PricePoint is one historic price observation for a medicine
type PricePoint struct {
	InvoiceDate   time.Time       `db:"invoice_date" json:"invoice_date"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	SupplierName  string          `db:"supplier_name" json:"supplier_name"`
	Pack          string          `db:"pack" json:"pack"`
	BatchNo       string          `db:"batch_no" json:"batch_no"`
	PurchasePrice decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	MRP           decimal.Decimal `db:"mrp" json:"mrp"`
}

// ReceiptRepository handles purchase receipt persistence
type ReceiptRepository struct {
	db *database.DB
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *database.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// InsertHeaderTx inserts a receipt header inside a transaction. A duplicate
// (supplier, invoice number) pair surfaces as DuplicateInvoice.
func (r *ReceiptRepository) InsertHeaderTx(ctx context.Context, tx *sqlx.Tx, receipt *PurchaseReceipt) error {
	if receipt.ID == "" {
		receipt.ID = uuid.New().String()
	}

	query := `
		INSERT INTO purchase_receipts (id, supplier_id, invoice_number, invoice_date, payment_mode, receipt_type, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := tx.QueryRowxContext(ctx, query,
		receipt.ID, receipt.SupplierID, receipt.InvoiceNumber, receipt.InvoiceDate,
		receipt.PaymentMode, receipt.ReceiptType, receipt.CreatedBy,
	).Scan(&receipt.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// InsertItemsTx inserts the submitted receipt lines inside a transaction,
// numbering them in submission order.
func (r *ReceiptRepository) InsertItemsTx(ctx context.Context, tx *sqlx.Tx, receiptID string, items []*PurchaseReceiptItem) error {
	query := `
		INSERT INTO purchase_receipt_items (id, receipt_id, line_no, medicine_id, pack, batch_no, expiry_date, quantity_boxes, purchase_price, mrp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for i, item := range items {
		item.ID = uuid.New().String()
		item.ReceiptID = receiptID
		item.LineNo = i + 1
		_, err := tx.ExecContext(ctx, query,
			item.ID, item.ReceiptID, item.LineNo, item.MedicineID, item.Pack,
			item.BatchNo, item.ExpiryDate, item.QuantityBoxes, item.PurchasePrice, item.MRP,
		)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
	}
	return nil
}

// ExistsByInvoice reports whether a receipt already exists for the
// (supplier, invoice number) pair. The unique constraint remains the
// authoritative guard; this is the friendly pre-check.
func (r *ReceiptRepository) ExistsByInvoice(ctx context.Context, supplierID, invoiceNumber string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM purchase_receipts WHERE supplier_id = $1 AND invoice_number = $2)`
	if err := r.db.GetContext(ctx, &exists, query, supplierID, invoiceNumber); err != nil {
		return false, err
	}
	return exists, nil
}

// FirstInvoiceDateTx returns the earliest invoice date across all receipts
// that ever supplied the given batch identity. found is false when the
// identity has no receipt history.
func (r *ReceiptRepository) FirstInvoiceDateTx(ctx context.Context, tx *sqlx.Tx, identity BatchIdentity) (time.Time, bool, error) {
	var first sql.NullTime
	query := `
		SELECT MIN(pr.invoice_date)
		FROM purchase_receipt_items pri
		JOIN purchase_receipts pr ON pr.id = pri.receipt_id
		WHERE pri.medicine_id = $1 AND pri.pack = $2 AND pri.batch_no = $3 AND pri.expiry_date = $4
	`
	err := tx.QueryRowxContext(ctx, query, identity.MedicineID, identity.Pack, identity.BatchNo, identity.ExpiryDate).Scan(&first)
	if err != nil {
		return time.Time{}, false, err
	}
	if !first.Valid {
		return time.Time{}, false, nil
	}
	return first.Time, true, nil
}

// List returns a page of receipt headers, newest invoice first
func (r *ReceiptRepository) List(ctx context.Context, filter ReceiptListFilter) ([]*ReceiptListRow, int64, error) {
	b := newCondBuilder()

	if filter.SupplierID != "" {
		b.add("pr.supplier_id = %s", filter.SupplierID)
	}
	if !filter.FromDate.IsZero() {
		b.add("pr.invoice_date >= %s", filter.FromDate)
	}
	if !filter.ToDate.IsZero() {
		b.add("pr.invoice_date <= %s", filter.ToDate)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	countQuery := `SELECT COUNT(*) FROM purchase_receipts pr` + b.whereClause()

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, b.args...); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT pr.id, pr.supplier_id, pr.invoice_number, pr.invoice_date, pr.payment_mode, pr.receipt_type,
			pr.created_by, pr.created_at,
			s.name AS supplier_name, u.full_name AS created_by_name,
			(SELECT COUNT(*) FROM purchase_receipt_items pri WHERE pri.receipt_id = pr.id) AS item_count
		FROM purchase_receipts pr
		JOIN suppliers s ON s.id = pr.supplier_id
		JOIN users u ON u.id = pr.created_by%s
		ORDER BY pr.invoice_date DESC, pr.created_at DESC
		LIMIT %d OFFSET %d`,
		b.whereClause(), limit, (page-1)*limit)

	var rows []*ReceiptListRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, b.args...); err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// GetDetail returns one receipt header with its lines in submission order
func (r *ReceiptRepository) GetDetail(ctx context.Context, id string) (*ReceiptListRow, []*ReceiptItemRow, error) {
	var header ReceiptListRow
	headerQuery := `
		SELECT pr.id, pr.supplier_id, pr.invoice_number, pr.invoice_date, pr.payment_mode, pr.receipt_type,
			pr.created_by, pr.created_at,
			s.name AS supplier_name, u.full_name AS created_by_name,
			(SELECT COUNT(*) FROM purchase_receipt_items pri WHERE pri.receipt_id = pr.id) AS item_count
		FROM purchase_receipts pr
		JOIN suppliers s ON s.id = pr.supplier_id
		JOIN users u ON u.id = pr.created_by
		WHERE pr.id = $1
	`
	if err := r.db.GetContext(ctx, &header, headerQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, errors.NotFound("purchase receipt")
		}
		return nil, nil, err
	}

	var items []*ReceiptItemRow
	itemsQuery := `
		SELECT pri.id, pri.receipt_id, pri.line_no, pri.medicine_id, pri.pack, pri.batch_no, pri.expiry_date,
			pri.quantity_boxes, pri.purchase_price, pri.mrp, pri.created_at,
			m.name AS medicine_name, m.strength AS medicine_strength
		FROM purchase_receipt_items pri
		JOIN medicines m ON m.id = pri.medicine_id
		WHERE pri.receipt_id = $1
		ORDER BY pri.line_no ASC
	`
	if err := r.db.SelectContext(ctx, &items, itemsQuery, id); err != nil {
		return nil, nil, err
	}

	return &header, items, nil
}

// SearchItems searches receipt lines across all receipts, newest invoice first
func (r *ReceiptRepository) SearchItems(ctx context.Context, filter ReceiptSearchFilter) ([]*ReceiptSearchRow, int64, error) {
	b := newCondBuilder()

	if filter.MedicineID != "" {
		b.add("pri.medicine_id = %s", filter.MedicineID)
	}
	if filter.SupplierID != "" {
		b.add("pr.supplier_id = %s", filter.SupplierID)
	}
	if filter.BatchNo != "" {
		b.add("pri.batch_no ILIKE %s", likeContains(filter.BatchNo))
	}
	if !filter.FromDate.IsZero() {
		b.add("pr.invoice_date >= %s", filter.FromDate)
	}
	if !filter.ToDate.IsZero() {
		b.add("pr.invoice_date <= %s", filter.ToDate)
	}
	if filter.Query != "" {
		pattern := likeContains(filter.Query)
		b.add("(pri.batch_no ILIKE %s OR pr.invoice_number ILIKE %s OR m.name ILIKE %s OR s.name ILIKE %s)",
			pattern, pattern, pattern, pattern)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	fromClause := `
		FROM purchase_receipt_items pri
		JOIN purchase_receipts pr ON pr.id = pri.receipt_id
		JOIN suppliers s ON s.id = pr.supplier_id
		JOIN medicines m ON m.id = pri.medicine_id`

	countQuery := `SELECT COUNT(*)` + fromClause + b.whereClause()

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, b.args...); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT pri.id, pri.receipt_id, pri.line_no, pri.medicine_id, pri.pack, pri.batch_no, pri.expiry_date,
			pri.quantity_boxes, pri.purchase_price, pri.mrp, pri.created_at,
			m.name AS medicine_name, m.strength AS medicine_strength,
			pr.invoice_number, pr.invoice_date, pr.supplier_id, s.name AS supplier_name%s%s
		ORDER BY pr.invoice_date DESC, pri.line_no ASC
		LIMIT %d OFFSET %d`,
		fromClause, b.whereClause(), limit, (page-1)*limit)

	var rows []*ReceiptSearchRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, b.args...); err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// PriceHistory returns the most recent purchase price observations for a
// medicine, newest invoice first.
func (r *ReceiptRepository) PriceHistory(ctx context.Context, medicineID string, limit int) ([]*PricePoint, error) {
	if limit < 1 {
		limit = 20
	}

	var points []*PricePoint
	query := `
		SELECT pr.invoice_date, pr.invoice_number, s.name AS supplier_name,
			pri.pack, pri.batch_no, pri.purchase_price, pri.mrp
		FROM purchase_receipt_items pri
		JOIN purchase_receipts pr ON pr.id = pri.receipt_id
		JOIN suppliers s ON s.id = pr.supplier_id
		WHERE pri.medicine_id = $1 AND pr.receipt_type = $2
		ORDER BY pr.invoice_date DESC, pri.line_no ASC
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &points, query, medicineID, ReceiptTypeNormalPurchase, limit); err != nil {
		return nil, err
	}
	return points, nil
}
