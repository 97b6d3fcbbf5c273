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

// Medicine is a product master record
type Medicine struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Strength  string    `db:"strength" json:"strength"`
	Category  string    `db:"category" json:"category"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MedicineRepository handles medicine master data persistence
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// Create inserts a medicine
func (r *MedicineRepository) Create(ctx context.Context, medicine *Medicine) error {
	if medicine.ID == "" {
		medicine.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medicines (id, name, strength, category)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, medicine.ID, medicine.Name, medicine.Strength, medicine.Category).
		Scan(&medicine.CreatedAt, &medicine.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a medicine by ID
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*Medicine, error) {
	var medicine Medicine
	query := `SELECT id, name, strength, category, created_at, updated_at FROM medicines WHERE id = $1`
	if err := r.db.GetContext(ctx, &medicine, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &medicine, nil
}

// List returns a page of medicines, most recently updated first. q matches
// name and strength as a substring.
func (r *MedicineRepository) List(ctx context.Context, q string, page, limit int) ([]*Medicine, int64, error) {
	conds := []string{}
	args := []interface{}{}

	if q != "" {
		args = append(args, likeContains(q))
		n := fmt.Sprintf("$%d", len(args))
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR strength ILIKE %s)", n, n))
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
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM medicines`+where, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, name, strength, category, created_at, updated_at FROM medicines%s
		ORDER BY updated_at DESC, id DESC
		LIMIT %d OFFSET %d`, where, limit, (page-1)*limit)

	var medicines []*Medicine
	if err := r.db.SelectContext(ctx, &medicines, query, args...); err != nil {
		return nil, 0, err
	}
	return medicines, total, nil
}

// Update updates a medicine's master fields
func (r *MedicineRepository) Update(ctx context.Context, medicine *Medicine) error {
	query := `
		UPDATE medicines SET name = $2, strength = $3, category = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, medicine.ID, medicine.Name, medicine.Strength, medicine.Category).
		Scan(&medicine.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("medicine")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// Count returns the total number of medicines
func (r *MedicineRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM medicines`); err != nil {
		return 0, err
	}
	return total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
