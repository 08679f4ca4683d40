package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	List(ctx context.Context, companyID int64, search string, limit, offset int) ([]Level, int, error)
	Get(ctx context.Context, companyID, productID int64) (Level, error)
	Below(ctx context.Context, companyID, threshold int64) ([]Level, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Rows are created lazily by the receive transaction, so products without a
// stock_levels row simply have zero stock and are reported as such.
const levelSelect = `SELECT p.id, p.name, COALESCE(sl.available, 0), COALESCE(sl.total, 0), COALESCE(sl.updated_at, p.created_at)
FROM products p
LEFT JOIN stock_levels sl ON sl.product_id = p.id
WHERE p.company_id = $1 AND NOT p.is_service`

func (r *repository) List(ctx context.Context, companyID int64, search string, limit, offset int) ([]Level, int, error) {
	countSQL := `SELECT COUNT(*) FROM products p WHERE p.company_id = $1 AND NOT p.is_service`
	countArgs := []any{companyID}
	query := levelSelect
	args := []any{companyID}
	if search != "" {
		countSQL += ` AND p.name ILIKE $2`
		countArgs = append(countArgs, "%"+search+"%")
		query += ` AND p.name ILIKE $2 ORDER BY p.name LIMIT $3 OFFSET $4`
		args = append(args, "%"+search+"%", limit, offset)
	} else {
		query += ` ORDER BY p.name LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var levels []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Available, &l.Total, &l.UpdatedAt); err != nil {
			return nil, 0, err
		}
		levels = append(levels, l)
	}
	return levels, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, companyID, productID int64) (Level, error) {
	var l Level
	err := r.db.QueryRow(ctx, levelSelect+` AND p.id = $2`, companyID, productID).
		Scan(&l.ProductID, &l.ProductName, &l.Available, &l.Total, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Level{}, ErrNotFound
	}
	return l, err
}

func (r *repository) Below(ctx context.Context, companyID, threshold int64) ([]Level, error) {
	rows, err := r.db.Query(ctx, levelSelect+` AND COALESCE(sl.available, 0) < $2 ORDER BY COALESCE(sl.available, 0)`, companyID, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var levels []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Available, &l.Total, &l.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}
