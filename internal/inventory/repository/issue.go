package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medstock/medstock-backend/pkg/database"
)

// StockIssue is one immutable outgoing stock movement
type StockIssue struct {
	ID           string    `db:"id" json:"id"`
	BatchStockID string    `db:"batch_stock_id" json:"batch_stock_id"`
	IssuedBoxes  int       `db:"issued_boxes" json:"issued_boxes"`
	IssuedDate   time.Time `db:"issued_date" json:"issued_date"`
	Remark       string    `db:"remark" json:"remark"`
	CreatedBy    string    `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// IssueListRow is an issue joined with its batch, medicine and issuer
type IssueListRow struct {
	StockIssue
	MedicineID       string    `db:"medicine_id" json:"-"`
	MedicineName     string    `db:"medicine_name" json:"-"`
	MedicineStrength string    `db:"medicine_strength" json:"-"`
	Pack             string    `db:"pack" json:"-"`
	BatchNo          string    `db:"batch_no" json:"-"`
	ExpiryDate       time.Time `db:"expiry_date" json:"-"`
	CreatedByName    string    `db:"created_by_name" json:"-"`
}

// IssueListFilter narrows a stock issue listing
type IssueListFilter struct {
	BatchStockID string
	MedicineID   string
	FromDate     time.Time
	ToDate       time.Time
	Page         int
	Limit        int
}

// StockIssueRepository handles issue persistence. Issues are append-only;
// there is no update or delete path.
type StockIssueRepository struct {
	db *database.DB
}

// NewStockIssueRepository creates a new stock issue repository
func NewStockIssueRepository(db *database.DB) *StockIssueRepository {
	return &StockIssueRepository{db: db}
}

// InsertTx records an issue inside a transaction, alongside the balance
// decrement it accounts for.
func (r *StockIssueRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, issue *StockIssue) error {
	if issue.ID == "" {
		issue.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_issues (id, batch_stock_id, issued_boxes, issued_date, remark, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := tx.QueryRowxContext(ctx, query,
		issue.ID, issue.BatchStockID, issue.IssuedBoxes, issue.IssuedDate, issue.Remark, issue.CreatedBy,
	).Scan(&issue.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// List returns a page of issues, newest first
func (r *StockIssueRepository) List(ctx context.Context, filter IssueListFilter) ([]*IssueListRow, int64, error) {
	b := newCondBuilder()

	if filter.BatchStockID != "" {
		b.add("si.batch_stock_id = %s", filter.BatchStockID)
	}
	if filter.MedicineID != "" {
		b.add("b.medicine_id = %s", filter.MedicineID)
	}
	if !filter.FromDate.IsZero() {
		b.add("si.issued_date >= %s", filter.FromDate)
	}
	if !filter.ToDate.IsZero() {
		b.add("si.issued_date <= %s", filter.ToDate)
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
		FROM stock_issues si
		JOIN batch_stocks b ON b.id = si.batch_stock_id
		JOIN medicines m ON m.id = b.medicine_id
		JOIN users u ON u.id = si.created_by`

	countQuery := `SELECT COUNT(*)` + fromClause + b.whereClause()

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, b.args...); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT si.id, si.batch_stock_id, si.issued_boxes, si.issued_date, si.remark, si.created_by, si.created_at,
			b.medicine_id, m.name AS medicine_name, m.strength AS medicine_strength,
			b.pack, b.batch_no, b.expiry_date,
			u.full_name AS created_by_name%s%s
		ORDER BY si.issued_date DESC, si.created_at DESC
		LIMIT %d OFFSET %d`,
		fromClause, b.whereClause(), limit, (page-1)*limit)

	var rows []*IssueListRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, b.args...); err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}
