package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// kpiStatusScope selects the order statuses that count as committed spend.
const kpiStatusScope = `('CONFIRMED', 'IN_PROGRESS', 'RECEIVED')`

type Repository interface {
	SpendSummary(ctx context.Context, companyID int64, from, to time.Time) (SpendSummary, error)
	TopSuppliers(ctx context.Context, companyID int64, from, to time.Time, limit int) ([]SupplierSpend, error)
	TopCategories(ctx context.Context, companyID int64, from, to time.Time, limit int) ([]CategorySpend, error)
	Fulfillment(ctx context.Context, companyID int64, from, to time.Time) (Fulfillment, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) SpendSummary(ctx context.Context, companyID int64, from, to time.Time) (SpendSummary, error) {
	var s SpendSummary
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0), COUNT(*)
FROM purchase_orders
WHERE company_id = $1 AND status IN `+kpiStatusScope+`
  AND emission_date >= $2 AND emission_date < $3`, companyID, from, to).
		Scan(&s.TotalSpend, &s.OrderCount)
	return s, err
}

func (r *repository) TopSuppliers(ctx context.Context, companyID int64, from, to time.Time, limit int) ([]SupplierSpend, error) {
	rows, err := r.db.Query(ctx, `SELECT o.supplier_id, COALESCE(s.name, ''), SUM(o.total) AS spend
FROM purchase_orders o
LEFT JOIN suppliers s ON s.id = o.supplier_id
WHERE o.company_id = $1 AND o.status IN `+kpiStatusScope+`
  AND o.emission_date >= $2 AND o.emission_date < $3
GROUP BY o.supplier_id, s.name
ORDER BY spend DESC
LIMIT $4`, companyID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SupplierSpend
	for rows.Next() {
		var s SupplierSpend
		if err := rows.Scan(&s.SupplierID, &s.Name, &s.Spend); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) TopCategories(ctx context.Context, companyID int64, from, to time.Time, limit int) ([]CategorySpend, error) {
	rows, err := r.db.Query(ctx, `SELECT COALESCE(p.category, 'uncategorised'), SUM(l.subtotal) AS spend
FROM purchase_order_lines l
JOIN purchase_orders o ON o.id = l.order_id
JOIN products p ON p.id = l.product_id
WHERE o.company_id = $1 AND o.status IN `+kpiStatusScope+`
  AND o.emission_date >= $2 AND o.emission_date < $3
GROUP BY p.category
ORDER BY spend DESC
LIMIT $4`, companyID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategorySpend
	for rows.Next() {
		var c CategorySpend
		if err := rows.Scan(&c.Category, &c.Spend); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Fulfillment measures received orders against the scoped set. Lead time is
// the emission-to-reception delta; the status flip timestamp stands in for
// the reception moment.
func (r *repository) Fulfillment(ctx context.Context, companyID int64, from, to time.Time) (Fulfillment, error) {
	var f Fulfillment
	var lead *float64
	err := r.db.QueryRow(ctx, `SELECT
  COUNT(*) FILTER (WHERE status = 'RECEIVED'),
  COUNT(*),
  AVG(EXTRACT(EPOCH FROM (updated_at - emission_date)) / 86400) FILTER (WHERE status = 'RECEIVED')
FROM purchase_orders
WHERE company_id = $1 AND status IN `+kpiStatusScope+`
  AND emission_date >= $2 AND emission_date < $3`, companyID, from, to).
		Scan(&f.ReceivedCount, &f.ScopedCount, &lead)
	if err != nil {
		return Fulfillment{}, err
	}
	if lead != nil {
		f.AvgLeadDays = decimal.NewFromFloat(*lead).Round(1)
	}
	return f, nil
}
