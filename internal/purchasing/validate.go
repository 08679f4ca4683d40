package purchasing

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Order numbers follow PREFIX-YYYY-NNNN, e.g. OC-2026-0042.
var orderNumberRx = regexp.MustCompile(`^[A-Z]{2,5}-[0-9]{4}-[0-9]{4}$`)

// OrderLookup is the read surface the validator needs. Both the pooled
// repository and the transaction-scoped repository satisfy it, so uniqueness
// and quota checks can be repeated inside the write transaction.
type OrderLookup interface {
	GetCompany(ctx context.Context, id int64) (Company, error)
	GetSupplier(ctx context.Context, companyID, id int64) (Supplier, error)
	OrderNumberExists(ctx context.Context, companyID int64, number string, excludeID int64) (bool, error)
	CountOrdersInMonth(ctx context.Context, companyID int64, month time.Time) (int, error)
}

// Validator asserts preconditions for order mutations. Each check either
// succeeds silently or fails with one specific error kind.
type Validator struct {
	cfg Config
}

// NewValidator constructs a Validator with the given configuration.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// CheckCompany loads the company and requires it to be active.
func (v *Validator) CheckCompany(ctx context.Context, lookup OrderLookup, companyID int64) (Company, error) {
	company, err := lookup.GetCompany(ctx, companyID)
	if err != nil {
		return Company{}, err
	}
	if !company.Active {
		return Company{}, fmt.Errorf("%w: company %d is inactive", ErrBusinessRule, companyID)
	}
	return company, nil
}

// CheckSupplier loads the supplier scoped to the company and requires it to be
// active. A supplier belonging to another company is reported as not found.
func (v *Validator) CheckSupplier(ctx context.Context, lookup OrderLookup, companyID, supplierID int64) (Supplier, error) {
	supplier, err := lookup.GetSupplier(ctx, companyID, supplierID)
	if err != nil {
		return Supplier{}, err
	}
	if !supplier.Active {
		return Supplier{}, fmt.Errorf("%w: supplier %d is inactive", ErrBusinessRule, supplierID)
	}
	return supplier, nil
}

// ValidateOrderNumber checks the fixed number format.
func (v *Validator) ValidateOrderNumber(number string) error {
	if !orderNumberRx.MatchString(number) {
		return fmt.Errorf("%w: order number %q does not match PREFIX-YYYY-NNNN", ErrInvalidInput, number)
	}
	return nil
}

// CheckNumberUnique asserts the number is unused within the company,
// excluding the record under update.
func (v *Validator) CheckNumberUnique(ctx context.Context, lookup OrderLookup, companyID int64, number string, excludeID int64) error {
	exists, err := lookup.OrderNumberExists(ctx, companyID, number, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: order number %q already used", ErrInvalidInput, number)
	}
	return nil
}

// ValidateDates requires the delivery date, when present, to fall inside
// [emission, emission + MaxDeliveryDays].
func (v *Validator) ValidateDates(emission time.Time, delivery *time.Time) error {
	if delivery == nil {
		return nil
	}
	if delivery.Before(emission) {
		return fmt.Errorf("%w: delivery date before emission date", ErrBusinessRule)
	}
	if delivery.After(emission.AddDate(0, 0, v.cfg.MaxDeliveryDays)) {
		return fmt.Errorf("%w: delivery date beyond %d days after emission", ErrBusinessRule, v.cfg.MaxDeliveryDays)
	}
	return nil
}

// ValidateLines applies the pure line rules: non-empty set, line count bound,
// no duplicate products, quantity and price bounds, at most two price decimals.
func (v *Validator) ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: order requires at least one line", ErrInvalidInput)
	}
	if len(lines) > v.cfg.MaxLines {
		return fmt.Errorf("%w: %d lines exceed the maximum of %d", ErrInvalidInput, len(lines), v.cfg.MaxLines)
	}
	seen := make(map[int64]struct{}, len(lines))
	for i, line := range lines {
		if line.ProductID <= 0 {
			return fmt.Errorf("%w: line %d missing product", ErrInvalidInput, i+1)
		}
		if _, dup := seen[line.ProductID]; dup {
			return fmt.Errorf("%w: duplicate product %d", ErrInvalidInput, line.ProductID)
		}
		seen[line.ProductID] = struct{}{}
		if line.Quantity <= 0 || line.Quantity > v.cfg.MaxQuantity {
			return fmt.Errorf("%w: line %d quantity out of range (1..%d)", ErrInvalidInput, i+1, v.cfg.MaxQuantity)
		}
		if !line.UnitPrice.IsPositive() || line.UnitPrice.GreaterThan(v.cfg.MaxUnitPrice) {
			return fmt.Errorf("%w: line %d unit price out of range", ErrInvalidInput, i+1)
		}
		if !line.UnitPrice.Equal(line.UnitPrice.Round(2)) {
			return fmt.Errorf("%w: line %d unit price has more than two decimals", ErrInvalidInput, i+1)
		}
	}
	return nil
}

// CheckMonthlyQuota enforces the per-company soft quota of orders per month.
func (v *Validator) CheckMonthlyQuota(ctx context.Context, lookup OrderLookup, companyID int64, emission time.Time) error {
	count, err := lookup.CountOrdersInMonth(ctx, companyID, emission)
	if err != nil {
		return err
	}
	if count >= v.cfg.MonthlyOrderQuota {
		return fmt.Errorf("%w: monthly order quota of %d reached", ErrBusinessRule, v.cfg.MonthlyOrderQuota)
	}
	return nil
}

// CheckCeiling compares the computed total, never a caller-supplied one,
// against the order monetary ceiling.
func (v *Validator) CheckCeiling(total decimal.Decimal) error {
	if total.GreaterThan(v.cfg.MaxOrderTotal) {
		return fmt.Errorf("%w: order total %s exceeds ceiling %s", ErrBusinessRule, total, v.cfg.MaxOrderTotal)
	}
	return nil
}
