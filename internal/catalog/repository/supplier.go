package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/errors"
)

// Supplier is a supplier master record
type Supplier struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SupplierRepository handles supplier master data persistence
type SupplierRepository struct {
	db *database.DB
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *database.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// Create inserts a supplier
func (r *SupplierRepository) Create(ctx context.Context, supplier *Supplier) error {
	if supplier.ID == "" {
		supplier.ID = uuid.New().String()
	}

	query := `
		INSERT INTO suppliers (id, name, phone, address)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, supplier.ID, supplier.Name, supplier.Phone, supplier.Address).
		Scan(&supplier.CreatedAt, &supplier.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a supplier by ID
func (r *SupplierRepository) GetByID(ctx context.Context, id string) (*Supplier, error) {
	var supplier Supplier
	query := `SELECT id, name, phone, address, created_at, updated_at FROM suppliers WHERE id = $1`
	if err := r.db.GetContext(ctx, &supplier, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("supplier")
		}
		return nil, err
	}
	return &supplier, nil
}

// List returns a page of suppliers, most recently updated first. q matches
// name and phone as a substring.
func (r *SupplierRepository) List(ctx context.Context, q string, page, limit int) ([]*Supplier, int64, error) {
	conds := []string{}
	args := []interface{}{}

	if q != "" {
		args = append(args, likeContains(q))
		n := fmt.Sprintf("$%d", len(args))
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR phone ILIKE %s)", n, n))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM suppliers`+where, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, name, phone, address, created_at, updated_at FROM suppliers%s
		ORDER BY updated_at DESC, id DESC
		LIMIT %d OFFSET %d`, where, limit, (page-1)*limit)

	var suppliers []*Supplier
	if err := r.db.SelectContext(ctx, &suppliers, query, args...); err != nil {
		return nil, 0, err
	}
	return suppliers, total, nil
}

// Update updates a supplier's master fields
func (r *SupplierRepository) Update(ctx context.Context, supplier *Supplier) error {
	query := `
		UPDATE suppliers SET name = $2, phone = $3, address = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, supplier.ID, supplier.Name, supplier.Phone, supplier.Address).
		Scan(&supplier.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("supplier")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}
