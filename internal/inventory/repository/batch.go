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

// BatchStock is the ledger row: one expiry-dated lot of stock with its
// live available-quantity balance and the latest price snapshot.
type BatchStock struct {
	ID             string          `db:"id" json:"id"`
	MedicineID     string          `db:"medicine_id" json:"medicine_id"`
	Pack           string          `db:"pack" json:"pack"`
	BatchNo        string          `db:"batch_no" json:"batch_no"`
	ExpiryDate     time.Time       `db:"expiry_date" json:"expiry_date"`
	AvailableBoxes int             `db:"available_boxes" json:"available_boxes"`
	PurchasePrice  decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	MRP            decimal.Decimal `db:"mrp" json:"mrp"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// BatchIdentity is the 4-tuple that uniquely names one lot of stock.
type BatchIdentity struct {
	MedicineID string    `json:"medicine_id"`
	Pack       string    `json:"pack"`
	BatchNo    string    `json:"batch_no"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// BatchBalance is a ledger row's id and balance after a mutation
type BatchBalance struct {
	BatchStockID   string `db:"id" json:"batch_stock_id"`
	AvailableBoxes int    `db:"available_boxes" json:"available_boxes"`
}

// BatchListRow is a ledger row joined with its medicine master data
type BatchListRow struct {
	BatchStock
	MedicineName     string `db:"medicine_name" json:"-"`
	MedicineStrength string `db:"medicine_strength" json:"-"`
}

// BatchListFilter narrows and orders a batch listing
type BatchListFilter struct {
	Query             string
	MedicineID        string
	Pack              string
	BatchNo           string
	ExpiryStatus      string // expired, expiring_soon, valid
	StockStatus       string // out_of_stock, low_stock, in_stock
	IncludeOutOfStock bool
	Sort              string // expiry_asc, expiry_desc, stock_asc, stock_desc
	Page              int
	Limit             int
}

const batchColumns = `b.id, b.medicine_id, b.pack, b.batch_no, b.expiry_date, b.available_boxes, b.purchase_price, b.mrp, b.created_at, b.updated_at`

var batchSortOrders = map[string]string{
	"expiry_asc":  "b.expiry_date ASC, b.id ASC",
	"expiry_desc": "b.expiry_date DESC, b.id DESC",
	"stock_asc":   "b.available_boxes ASC, b.id ASC",
	"stock_desc":  "b.available_boxes DESC, b.id DESC",
}

// alertDefaultSorts picks the sort an alert listing uses when the caller
// does not ask for one: expiry alerts surface the soonest expiry first,
// stock alerts the lowest balance first.
var alertDefaultSorts = map[AlertType]string{
	AlertExpired:      "expiry_asc",
	AlertExpiringSoon: "expiry_asc",
	AlertLowStock:     "stock_asc",
	AlertOutOfStock:   "stock_asc",
}

// BatchStockRepository handles ledger persistence. All balance mutation
// goes through ApplyReceiptIncrement and ApplyIssueDecrement; nothing else
// writes available_boxes.
type BatchStockRepository struct {
	db *database.DB
}

// NewBatchStockRepository creates a new batch stock repository
func NewBatchStockRepository(db *database.DB) *BatchStockRepository {
	return &BatchStockRepository{db: db}
}

// GetByID gets a ledger row by ID
func (r *BatchStockRepository) GetByID(ctx context.Context, id string) (*BatchStock, error) {
	var batch BatchStock
	query := `SELECT ` + batchColumns + ` FROM batch_stocks b WHERE b.id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch stock")
		}
		return nil, err
	}
	return &batch, nil
}

// GetByIDTx gets a ledger row by ID inside a transaction
func (r *BatchStockRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*BatchStock, error) {
	var batch BatchStock
	query := `SELECT ` + batchColumns + ` FROM batch_stocks b WHERE b.id = $1`
	if err := tx.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch stock")
		}
		return nil, err
	}
	return &batch, nil
}

// FindByIdentity looks up a ledger row by its identity tuple.
// Returns (nil, nil) when no row exists for the identity.
func (r *BatchStockRepository) FindByIdentity(ctx context.Context, identity BatchIdentity) (*BatchStock, error) {
	var batch BatchStock
	query := `
		SELECT ` + batchColumns + ` FROM batch_stocks b
		WHERE b.medicine_id = $1 AND b.pack = $2 AND b.batch_no = $3 AND b.expiry_date = $4
	`
	err := r.db.GetContext(ctx, &batch, query, identity.MedicineID, identity.Pack, identity.BatchNo, identity.ExpiryDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// ApplyReceiptIncrement upserts a ledger row for the identity: the insert
// branch creates the row with the receipted quantity, the conflict branch
// adds the quantity to the existing balance. Both branches overwrite the
// price snapshot (last processed item wins). Returns the post-update balance.
func (r *BatchStockRepository) ApplyReceiptIncrement(ctx context.Context, tx *sqlx.Tx, identity BatchIdentity, quantityBoxes int, purchasePrice, mrp decimal.Decimal) (*BatchBalance, error) {
	query := `
		INSERT INTO batch_stocks (id, medicine_id, pack, batch_no, expiry_date, available_boxes, purchase_price, mrp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (medicine_id, pack, batch_no, expiry_date) DO UPDATE SET
			available_boxes = batch_stocks.available_boxes + EXCLUDED.available_boxes,
			purchase_price = EXCLUDED.purchase_price,
			mrp = EXCLUDED.mrp,
			updated_at = now()
		RETURNING id, available_boxes
	`

	var balance BatchBalance
	err := tx.QueryRowxContext(ctx, query,
		uuid.New().String(), identity.MedicineID, identity.Pack, identity.BatchNo,
		identity.ExpiryDate, quantityBoxes, purchasePrice, mrp,
	).Scan(&balance.BatchStockID, &balance.AvailableBoxes)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	return &balance, nil
}

// ApplyIssueDecrement performs the guarded decrement: the balance is reduced
// only when it covers the issued quantity, in a single conditional update.
// Losing a race to a concurrent issuer surfaces as InsufficientStock; the
// balance can never go negative.
func (r *BatchStockRepository) ApplyIssueDecrement(ctx context.Context, tx *sqlx.Tx, id string, issuedBoxes int) (int, error) {
	query := `
		UPDATE batch_stocks
		SET available_boxes = available_boxes - $2, updated_at = now()
		WHERE id = $1 AND available_boxes >= $2
		RETURNING available_boxes
	`

	var remaining int
	err := tx.QueryRowxContext(ctx, query, id, issuedBoxes).Scan(&remaining)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, errors.InsufficientStock()
		}
		return 0, err
	}

	return remaining, nil
}

// ListFEFOCandidates returns non-expired, positive-balance rows for a
// medicine in first-expiry-first-out order. Rows expiring on or before
// todayEnd are excluded entirely.
func (r *BatchStockRepository) ListFEFOCandidates(ctx context.Context, medicineID string, todayEnd time.Time, limit int) ([]*BatchStock, error) {
	var batches []*BatchStock
	query := `
		SELECT ` + batchColumns + ` FROM batch_stocks b
		WHERE b.medicine_id = $1 AND b.expiry_date > $2 AND b.available_boxes > 0
		ORDER BY b.expiry_date ASC, b.batch_no ASC, b.id ASC
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &batches, query, medicineID, todayEnd, limit); err != nil {
		return nil, err
	}
	return batches, nil
}

// List returns a filtered, sorted page of ledger rows joined with medicine
// master data, plus the unpaginated total.
func (r *BatchStockRepository) List(ctx context.Context, filter BatchListFilter, fctx FilterContext) ([]*BatchListRow, int64, error) {
	b := newCondBuilder()

	if filter.MedicineID != "" {
		b.add("b.medicine_id = %s", filter.MedicineID)
	}
	if filter.Pack != "" {
		b.add("b.pack ILIKE %s", likeContains(filter.Pack))
	}
	if filter.BatchNo != "" {
		b.add("b.batch_no ILIKE %s", likeContains(filter.BatchNo))
	}

	switch filter.ExpiryStatus {
	case "expired":
		b.add("b.expiry_date <= %s", fctx.TodayEnd)
	case "expiring_soon":
		b.add("b.expiry_date > %s AND b.expiry_date <= %s", fctx.TodayEnd, fctx.ExpiryAlertEnd)
	case "valid":
		b.add("b.expiry_date > %s", fctx.ExpiryAlertEnd)
	}

	switch filter.StockStatus {
	case "out_of_stock":
		b.add("b.available_boxes = 0")
	case "low_stock":
		b.add("b.available_boxes > 0 AND b.available_boxes <= %s", fctx.LowStockLimitBoxes)
	case "in_stock":
		b.add("b.available_boxes > %s", fctx.LowStockLimitBoxes)
	}

	if !filter.IncludeOutOfStock && filter.StockStatus != "out_of_stock" {
		b.add("b.available_boxes > 0")
	}

	if filter.Query != "" {
		pattern := likeContains(filter.Query)
		b.add("(b.batch_no ILIKE %s OR b.pack ILIKE %s OR m.name ILIKE %s OR m.strength ILIKE %s)",
			pattern, pattern, pattern, pattern)
	}

	orderBy, ok := batchSortOrders[filter.Sort]
	if !ok {
		orderBy = batchSortOrders["expiry_asc"]
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	countQuery := `
		SELECT COUNT(*) FROM batch_stocks b
		JOIN medicines m ON m.id = b.medicine_id` + b.whereClause()

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, b.args...); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT `+batchColumns+`, m.name AS medicine_name, m.strength AS medicine_strength
		FROM batch_stocks b
		JOIN medicines m ON m.id = b.medicine_id%s
		ORDER BY %s
		LIMIT %d OFFSET %d`,
		b.whereClause(), orderBy, limit, (page-1)*limit)

	var rows []*BatchListRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, b.args...); err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// ListByAlert returns the page of ledger rows matched by an alert predicate,
// using the same condition the dashboard counts use.
func (r *BatchStockRepository) ListByAlert(ctx context.Context, alertType AlertType, fctx FilterContext, sort string, page, limit int) ([]*BatchListRow, int64, error) {
	b := newCondBuilder()
	applyAlertCondition(b, alertType, fctx)

	if sort == "" {
		sort = alertDefaultSorts[alertType]
	}
	orderBy, ok := batchSortOrders[sort]
	if !ok {
		orderBy = batchSortOrders["expiry_asc"]
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	countQuery := `SELECT COUNT(*) FROM batch_stocks b` + b.whereClause()

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, b.args...); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT `+batchColumns+`, m.name AS medicine_name, m.strength AS medicine_strength
		FROM batch_stocks b
		JOIN medicines m ON m.id = b.medicine_id%s
		ORDER BY %s
		LIMIT %d OFFSET %d`,
		b.whereClause(), orderBy, limit, (page-1)*limit)

	var rows []*BatchListRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, b.args...); err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// CountByAlert counts ledger rows matched by an alert predicate
func (r *BatchStockRepository) CountByAlert(ctx context.Context, alertType AlertType, fctx FilterContext) (int64, error) {
	b := newCondBuilder()
	applyAlertCondition(b, alertType, fctx)

	query := `SELECT COUNT(*) FROM batch_stocks b` + b.whereClause()

	var total int64
	if err := r.db.GetContext(ctx, &total, query, b.args...); err != nil {
		return 0, err
	}
	return total, nil
}
