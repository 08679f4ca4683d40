package purchasing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quipu-erp/quipu-erp/internal/platform/db"
)

// TxRepository exposes the operations available inside one transaction.
// It embeds OrderLookup so uniqueness and quota checks can be re-run against
// the transaction snapshot, closing the check-then-act window.
type TxRepository interface {
	OrderLookup
	GetProducts(ctx context.Context, companyID int64, ids []int64) ([]Product, error)
	CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	UpdateOrderHeader(ctx context.Context, order PurchaseOrder) error
	UpdateOrderStatus(ctx context.Context, id int64, to OrderStatus, from []OrderStatus) error
	ReplaceLines(ctx context.Context, orderID int64, lines []LineResult) error
	IncrementStock(ctx context.Context, productID, qty int64) error
	CreateInvoice(ctx context.Context, inv PurchaseInvoice) (int64, error)
	UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error
	CreatePayment(ctx context.Context, payment Payment) (int64, error)
	SumPayments(ctx context.Context, invoiceID int64) (Payment, error)
	NextOrderNumber(ctx context.Context, companyID int64, date time.Time) (string, error)
	MarkQuotationConverted(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence for purchasing.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepo struct {
	db dbtx
}

// WithTx wraps the callback in a repeatable-read transaction. A callback
// error rolls back everything, including stock side effects. Driver failures,
// including commit-time serialization aborts, are mapped to domain kinds.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{db: tx})
	})
	return mapPgError(err)
}

// mapPgError translates driver failures into domain error kinds. A unique
// violation on the order number means a concurrent allocation won; under
// repeatable read, serialization failures and deadlocks are the same
// retryable conflict.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pgErr.ConstraintName)
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pgErr.Message)
		}
	}
	return err
}

// Pool-level reads

// GetOrder loads the order header and its lines, scoped by company.
func (r *Repository) GetOrder(ctx context.Context, companyID, id int64) (PurchaseOrder, error) {
	return getOrder(ctx, r.pool, companyID, id)
}

// GetQuotation loads a quotation with its lines, scoped by company.
func (r *Repository) GetQuotation(ctx context.Context, companyID, id int64) (Quotation, error) {
	return getQuotation(ctx, r.pool, companyID, id)
}

// GetInvoice fetches a purchase invoice by ID, scoped by company.
func (r *Repository) GetInvoice(ctx context.Context, companyID, id int64) (PurchaseInvoice, error) {
	return getInvoice(ctx, r.pool, companyID, id)
}

// GetCompany fetches a company.
func (r *Repository) GetCompany(ctx context.Context, id int64) (Company, error) {
	return getCompany(ctx, r.pool, id)
}

// GetSupplier fetches a supplier scoped by company.
func (r *Repository) GetSupplier(ctx context.Context, companyID, id int64) (Supplier, error) {
	return getSupplier(ctx, r.pool, companyID, id)
}

// OrderNumberExists reports whether the number is taken within the company.
func (r *Repository) OrderNumberExists(ctx context.Context, companyID int64, number string, excludeID int64) (bool, error) {
	return orderNumberExists(ctx, r.pool, companyID, number, excludeID)
}

// CountOrdersInMonth counts non-cancelled orders emitted in the given month.
func (r *Repository) CountOrdersInMonth(ctx context.Context, companyID int64, month time.Time) (int, error) {
	return countOrdersInMonth(ctx, r.pool, companyID, month)
}

// ListFilters narrows and sorts the order listing.
type ListFilters struct {
	Status     string
	SupplierID int64
	Search     string
	SortBy     string
	SortDir    string
}

// OrderListItem is a denormalised row for the order listing.
type OrderListItem struct {
	ID           int64
	Number       string
	SupplierID   int64
	SupplierName string
	Status       OrderStatus
	EmissionDate time.Time
	Total        string
	CreatedAt    time.Time
}

// ListOrders returns orders with supplier names, filtered and paginated.
func (r *Repository) ListOrders(ctx context.Context, companyID int64, limit, offset int, filters ListFilters) ([]OrderListItem, int, error) {
	countSQL := `SELECT COUNT(*) FROM purchase_orders o WHERE o.company_id = $1`
	args := []any{companyID}
	argNum := 2
	if filters.Status != "" {
		countSQL += fmt.Sprintf(` AND o.status = $%d`, argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.SupplierID > 0 {
		countSQL += fmt.Sprintf(` AND o.supplier_id = $%d`, argNum)
		args = append(args, filters.SupplierID)
		argNum++
	}
	if filters.Search != "" {
		countSQL += fmt.Sprintf(` AND o.number ILIKE $%d`, argNum)
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT o.id, o.number, o.supplier_id, COALESCE(s.name, '') AS supplier_name,
		o.status, o.emission_date, o.total::text, o.created_at
	FROM purchase_orders o
	LEFT JOIN suppliers s ON s.id = o.supplier_id
	WHERE o.company_id = $1`
	args2 := []any{companyID}
	argNum2 := 2
	if filters.Status != "" {
		dataSQL += fmt.Sprintf(` AND o.status = $%d`, argNum2)
		args2 = append(args2, filters.Status)
		argNum2++
	}
	if filters.SupplierID > 0 {
		dataSQL += fmt.Sprintf(` AND o.supplier_id = $%d`, argNum2)
		args2 = append(args2, filters.SupplierID)
		argNum2++
	}
	if filters.Search != "" {
		dataSQL += fmt.Sprintf(` AND o.number ILIKE $%d`, argNum2)
		args2 = append(args2, "%"+filters.Search+"%")
		argNum2++
	}
	dataSQL += ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argNum2, argNum2+1)
	args2 = append(args2, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, args2...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []OrderListItem
	for rows.Next() {
		var item OrderListItem
		if err := rows.Scan(&item.ID, &item.Number, &item.SupplierID, &item.SupplierName,
			&item.Status, &item.EmissionDate, &item.Total, &item.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListOutstandingInvoices returns unpaid purchase invoices ordered by due date.
func (r *Repository) ListOutstandingInvoices(ctx context.Context, companyID int64) ([]PurchaseInvoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, company_id, number, subtotal, tax, total, status, issued_at, COALESCE(due_at, CURRENT_DATE)
FROM purchase_invoices WHERE company_id = $1 AND status = 'PENDING' ORDER BY due_at`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []PurchaseInvoice
	for rows.Next() {
		var inv PurchaseInvoice
		if err := rows.Scan(&inv.ID, &inv.OrderID, &inv.CompanyID, &inv.Number, &inv.Subtotal, &inv.Tax, &inv.Total, &inv.Status, &inv.IssuedAt, &inv.DueAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// sortOrder returns a safe ORDER BY clause for the order listing.
func sortOrder(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "o.number " + dir
	case "supplier":
		return "supplier_name " + dir
	case "emission_date":
		return "o.emission_date " + dir
	case "total":
		return "o.total " + dir
	case "status":
		return "o.status " + dir
	default:
		return "o.created_at DESC"
	}
}

// Shared query helpers used by both the pool and transaction repositories.

func getOrder(ctx context.Context, db dbtx, companyID, id int64) (PurchaseOrder, error) {
	var o PurchaseOrder
	err := db.QueryRow(ctx, `SELECT id, company_id, supplier_id, number, status, emission_date, delivery_date,
	subtotal, discount, tax, total, notes, created_by, created_at, updated_at
FROM purchase_orders WHERE company_id = $1 AND id = $2`, companyID, id).
		Scan(&o.ID, &o.CompanyID, &o.SupplierID, &o.Number, &o.Status, &o.EmissionDate, &o.DeliveryDate,
			&o.Subtotal, &o.Discount, &o.Tax, &o.Total, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("%w: order %d", ErrNotFound, id)
		}
		return PurchaseOrder{}, err
	}
	rows, err := db.Query(ctx, `SELECT id, order_id, product_id, quantity, unit_price, discount, subtotal, received
FROM purchase_order_lines WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.Discount, &line.Subtotal, &line.Received); err != nil {
			return PurchaseOrder{}, err
		}
		o.Lines = append(o.Lines, line)
	}
	return o, rows.Err()
}

func getQuotation(ctx context.Context, db dbtx, companyID, id int64) (Quotation, error) {
	var q Quotation
	err := db.QueryRow(ctx, `SELECT id, company_id, supplier_id, number, status, subtotal, discount, tax, total, notes, created_at
FROM quotations WHERE company_id = $1 AND id = $2`, companyID, id).
		Scan(&q.ID, &q.CompanyID, &q.SupplierID, &q.Number, &q.Status, &q.Subtotal, &q.Discount, &q.Tax, &q.Total, &q.Notes, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, fmt.Errorf("%w: quotation %d", ErrNotFound, id)
		}
		return Quotation{}, err
	}
	rows, err := db.Query(ctx, `SELECT id, quotation_id, product_id, quantity, unit_price, discount, subtotal
FROM quotation_lines WHERE quotation_id = $1 ORDER BY id`, id)
	if err != nil {
		return Quotation{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line QuotationLine
		if err := rows.Scan(&line.ID, &line.QuotationID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.Discount, &line.Subtotal); err != nil {
			return Quotation{}, err
		}
		q.Lines = append(q.Lines, line)
	}
	return q, rows.Err()
}

func getInvoice(ctx context.Context, db dbtx, companyID, id int64) (PurchaseInvoice, error) {
	var inv PurchaseInvoice
	err := db.QueryRow(ctx, `SELECT id, order_id, company_id, number, subtotal, tax, total, status, issued_at, COALESCE(due_at, CURRENT_DATE)
FROM purchase_invoices WHERE company_id = $1 AND id = $2`, companyID, id).
		Scan(&inv.ID, &inv.OrderID, &inv.CompanyID, &inv.Number, &inv.Subtotal, &inv.Tax, &inv.Total, &inv.Status, &inv.IssuedAt, &inv.DueAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseInvoice{}, fmt.Errorf("%w: invoice %d", ErrNotFound, id)
		}
		return PurchaseInvoice{}, err
	}
	return inv, nil
}

func getCompany(ctx context.Context, db dbtx, id int64) (Company, error) {
	var c Company
	err := db.QueryRow(ctx, `SELECT id, name, active FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, fmt.Errorf("%w: company %d", ErrNotFound, id)
		}
		return Company{}, err
	}
	return c, nil
}

func getSupplier(ctx context.Context, db dbtx, companyID, id int64) (Supplier, error) {
	var s Supplier
	err := db.QueryRow(ctx, `SELECT id, company_id, tax_id, name, COALESCE(email,''), COALESCE(phone,''), active
FROM suppliers WHERE company_id = $1 AND id = $2`, companyID, id).
		Scan(&s.ID, &s.CompanyID, &s.TaxID, &s.Name, &s.Email, &s.Phone, &s.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, fmt.Errorf("%w: supplier %d", ErrNotFound, id)
		}
		return Supplier{}, err
	}
	return s, nil
}

func orderNumberExists(ctx context.Context, db dbtx, companyID int64, number string, excludeID int64) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM purchase_orders WHERE company_id = $1 AND number = $2 AND id <> $3
)`, companyID, number, excludeID).Scan(&exists)
	return exists, err
}

func countOrdersInMonth(ctx context.Context, db dbtx, companyID int64, month time.Time) (int, error) {
	var count int
	err := db.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders
WHERE company_id = $1 AND status <> 'CANCELLED'
  AND date_trunc('month', emission_date) = date_trunc('month', $2::date)`, companyID, month).Scan(&count)
	return count, err
}

// Transaction-scoped implementation

func (tx *txRepo) GetCompany(ctx context.Context, id int64) (Company, error) {
	return getCompany(ctx, tx.db, id)
}

func (tx *txRepo) GetSupplier(ctx context.Context, companyID, id int64) (Supplier, error) {
	return getSupplier(ctx, tx.db, companyID, id)
}

func (tx *txRepo) OrderNumberExists(ctx context.Context, companyID int64, number string, excludeID int64) (bool, error) {
	return orderNumberExists(ctx, tx.db, companyID, number, excludeID)
}

func (tx *txRepo) CountOrdersInMonth(ctx context.Context, companyID int64, month time.Time) (int, error) {
	return countOrdersInMonth(ctx, tx.db, companyID, month)
}

func (tx *txRepo) GetProducts(ctx context.Context, companyID int64, ids []int64) ([]Product, error) {
	rows, err := tx.db.Query(ctx, `SELECT id, company_id, name, is_service FROM products
WHERE company_id = $1 AND id = ANY($2)`, companyID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.IsService); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (tx *txRepo) CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var id int64
	err := tx.db.QueryRow(ctx, `INSERT INTO purchase_orders
	(company_id, supplier_id, number, status, emission_date, delivery_date, subtotal, discount, tax, total, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW()) RETURNING id`,
		order.CompanyID, order.SupplierID, order.Number, order.Status, order.EmissionDate, order.DeliveryDate,
		order.Subtotal, order.Discount, order.Tax, order.Total, order.Notes, order.CreatedBy).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (tx *txRepo) UpdateOrderHeader(ctx context.Context, order PurchaseOrder) error {
	_, err := tx.db.Exec(ctx, `UPDATE purchase_orders
SET number=$1, delivery_date=$2, subtotal=$3, discount=$4, tax=$5, total=$6, notes=$7, updated_at=NOW()
WHERE company_id=$8 AND id=$9`,
		order.Number, order.DeliveryDate, order.Subtotal, order.Discount, order.Tax, order.Total, order.Notes,
		order.CompanyID, order.ID)
	return mapPgError(err)
}

// UpdateOrderStatus flips the status only while the row still sits in one of
// the expected source statuses. Zero affected rows means a concurrent
// transition moved the order first.
func (tx *txRepo) UpdateOrderStatus(ctx context.Context, id int64, to OrderStatus, from []OrderStatus) error {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	tag, err := tx.db.Exec(ctx, `UPDATE purchase_orders SET status=$1, updated_at=NOW()
WHERE id=$2 AND status = ANY($3)`, to, id, allowed)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %d status changed concurrently", ErrConcurrencyConflict, id)
	}
	return nil
}

// ReplaceLines deletes and reinserts the full line set so totals and lines
// can never drift apart under partial patching.
func (tx *txRepo) ReplaceLines(ctx context.Context, orderID int64, lines []LineResult) error {
	if _, err := tx.db.Exec(ctx, `DELETE FROM purchase_order_lines WHERE order_id=$1`, orderID); err != nil {
		return err
	}
	for _, line := range lines {
		_, err := tx.db.Exec(ctx, `INSERT INTO purchase_order_lines (order_id, product_id, quantity, unit_price, discount, subtotal, received)
VALUES ($1,$2,$3,$4,$5,$6,false)`, orderID, line.ProductID, line.Quantity, line.UnitPrice, line.Discount, line.Subtotal)
		if err != nil {
			return err
		}
	}
	return nil
}

// IncrementStock bumps (or initialises) both the available and total counters
// in one statement, avoiding read-modify-write at the application layer.
func (tx *txRepo) IncrementStock(ctx context.Context, productID, qty int64) error {
	_, err := tx.db.Exec(ctx, `INSERT INTO stock_levels (product_id, available, total, updated_at)
VALUES ($1, $2, $2, NOW())
ON CONFLICT (product_id)
DO UPDATE SET available = stock_levels.available + EXCLUDED.available,
              total = stock_levels.total + EXCLUDED.total,
              updated_at = NOW()`, productID, qty)
	return err
}

func (tx *txRepo) CreateInvoice(ctx context.Context, inv PurchaseInvoice) (int64, error) {
	var id int64
	err := tx.db.QueryRow(ctx, `INSERT INTO purchase_invoices (order_id, company_id, number, subtotal, tax, total, status, issued_at, due_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id`,
		inv.OrderID, inv.CompanyID, inv.Number, inv.Subtotal, inv.Tax, inv.Total, inv.Status, inv.IssuedAt, inv.DueAt).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (tx *txRepo) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	_, err := tx.db.Exec(ctx, `UPDATE purchase_invoices SET status=$1 WHERE id=$2`, status, id)
	return err
}

func (tx *txRepo) CreatePayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := tx.db.QueryRow(ctx, `INSERT INTO purchase_payments (invoice_id, amount, method, paid_at)
VALUES ($1,$2,$3,$4) RETURNING id`, payment.InvoiceID, payment.Amount, payment.Method, payment.PaidAt).Scan(&id)
	return id, err
}

// SumPayments returns the settled amount against an invoice as a synthetic
// Payment row.
func (tx *txRepo) SumPayments(ctx context.Context, invoiceID int64) (Payment, error) {
	p := Payment{InvoiceID: invoiceID}
	err := tx.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM purchase_payments WHERE invoice_id=$1`, invoiceID).Scan(&p.Amount)
	return p, err
}

// NextOrderNumber allocates the next per-company, per-month sequence through
// an atomic upsert on document_sequences. Concurrent allocations serialise on
// the sequence row; a fresh month starts again at 0001.
func (tx *txRepo) NextOrderNumber(ctx context.Context, companyID int64, date time.Time) (string, error) {
	var seq int64
	err := tx.db.QueryRow(ctx, `INSERT INTO document_sequences (company_id, doc_type, period, seq)
VALUES ($1, 'OC', $2, 1)
ON CONFLICT (company_id, doc_type, period)
DO UPDATE SET seq = document_sequences.seq + 1
RETURNING seq`, companyID, date.Format("200601")).Scan(&seq)
	if err != nil {
		return "", mapPgError(err)
	}
	return fmt.Sprintf("OC-%s-%04d", date.Format("0601"), seq), nil
}

// MarkQuotationConverted consumes a pending quotation. Zero affected rows
// means another conversion won the race.
func (tx *txRepo) MarkQuotationConverted(ctx context.Context, id int64) error {
	tag, err := tx.db.Exec(ctx, `UPDATE quotations SET status='CONVERTED' WHERE id=$1 AND status='PENDING'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quotation %d already consumed", ErrConcurrencyConflict, id)
	}
	return nil
}
