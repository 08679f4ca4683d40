package suppliers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListFilters narrows and sorts the supplier listing.
type ListFilters struct {
	Search     string
	ActiveOnly bool
	SortBy     string
	SortDir    string
	Limit      int
	Offset     int
}

type Repository interface {
	List(ctx context.Context, companyID int64, filters ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, companyID, id int64) (Supplier, error)
	TaxIDExists(ctx context.Context, companyID int64, taxID string, excludeID int64) (bool, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, id int64, supplier Supplier) error
	SetActive(ctx context.Context, companyID, id int64, active bool) error
	Delete(ctx context.Context, companyID, id int64) error
	CountOpenOrders(ctx context.Context, companyID, id int64) (int, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, companyID int64, filters ListFilters) ([]Supplier, int, error) {
	query := `SELECT id, company_id, tax_id, name, address, email, phone, active, created_at, updated_at
FROM suppliers WHERE company_id = $1`
	args := []any{companyID}
	argCount := 1

	countQuery := `SELECT COUNT(*) FROM suppliers WHERE company_id = $1`
	countArgs := []any{companyID}

	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR tax_id ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		args = append(args, "%"+filters.Search+"%")
		countQuery += ` AND (name ILIKE $2 OR tax_id ILIKE $2)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.ActiveOnly {
		query += ` AND active`
		countQuery += ` AND active`
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.TaxID, &s.Name, &s.Address, &s.Email, &s.Phone, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, companyID, id int64) (Supplier, error) {
	var s Supplier
	err := r.db.QueryRow(ctx, `SELECT id, company_id, tax_id, name, address, email, phone, active, created_at, updated_at
FROM suppliers WHERE company_id = $1 AND id = $2`, companyID, id).
		Scan(&s.ID, &s.CompanyID, &s.TaxID, &s.Name, &s.Address, &s.Email, &s.Phone, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func (r *repository) TaxIDExists(ctx context.Context, companyID int64, taxID string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM suppliers WHERE company_id = $1 AND tax_id = $2 AND id <> $3)`, companyID, taxID, excludeID).Scan(&exists)
	return exists, err
}

func (r *repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (company_id, tax_id, name, address, email, phone, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id`,
		supplier.CompanyID, supplier.TaxID, supplier.Name, supplier.Address, supplier.Email, supplier.Phone, supplier.Active, now).
		Scan(&supplier.ID)
	if err != nil {
		return Supplier{}, err
	}
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	return supplier, nil
}

func (r *repository) Update(ctx context.Context, id int64, supplier Supplier) error {
	tag, err := r.db.Exec(ctx, `UPDATE suppliers SET tax_id = $1, name = $2, address = $3, email = $4, phone = $5, updated_at = $6
WHERE company_id = $7 AND id = $8`,
		supplier.TaxID, supplier.Name, supplier.Address, supplier.Email, supplier.Phone, time.Now().UTC(), supplier.CompanyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, companyID, id int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE suppliers SET active = $1, updated_at = $2 WHERE company_id = $3 AND id = $4`,
		active, time.Now().UTC(), companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, companyID, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOpenOrders counts purchase orders referencing the supplier that are
// neither received nor cancelled.
func (r *repository) CountOpenOrders(ctx context.Context, companyID, id int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders
WHERE company_id = $1 AND supplier_id = $2 AND status NOT IN ('RECEIVED', 'CANCELLED')`, companyID, id).Scan(&count)
	return count, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "tax_id":
		return "tax_id " + dir
	case "created_at":
		return "created_at " + dir
	case "name":
		return "name " + dir
	default:
		return "name " + dir
	}
}
