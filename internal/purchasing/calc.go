package purchasing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config carries the tax rate and limits for calculation and validation.
// It is injected at construction so per-company overrides stay possible.
type Config struct {
	TaxRate           decimal.Decimal
	MaxLines          int
	MaxQuantity       int64
	MaxUnitPrice      decimal.Decimal
	MaxOrderTotal     decimal.Decimal
	MonthlyOrderQuota int
	MaxDeliveryDays   int
}

// DefaultConfig returns the Peru defaults: 18% IGV and the standard bounds.
func DefaultConfig() Config {
	return Config{
		TaxRate:           decimal.NewFromFloat(0.18),
		MaxLines:          50,
		MaxQuantity:       10000,
		MaxUnitPrice:      decimal.NewFromInt(1_000_000),
		MaxOrderTotal:     decimal.NewFromInt(10_000_000),
		MonthlyOrderQuota: 500,
		MaxDeliveryDays:   365,
	}
}

// totalTolerance is the maximum accepted drift between stored and recomputed
// aggregates, in currency units.
var totalTolerance = decimal.NewFromFloat(0.01)

// LineInput is a caller-supplied order line before calculation.
type LineInput struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// LineResult is a priced line produced by Calculate.
type LineResult struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	Subtotal  decimal.Decimal
}

// CalculationResult holds the derived monetary fields for one order. It is
// transient: the lifecycle service consumes it inside the same transaction
// that persists the order.
type CalculationResult struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Lines    []LineResult
}

// Calculator derives order totals from line inputs.
type Calculator struct {
	cfg Config
}

// NewCalculator constructs a Calculator with the given configuration.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate prices every line and aggregates subtotal, discount, tax and
// total. Subtotal sums the discounted line amounts and the tax base nets the
// accumulated discount off that sum before applying the rate. Aggregates are
// summed at full precision and rounded once at the end so per-line rounding
// never accumulates into the order totals.
func (c *Calculator) Calculate(lines []LineInput) (CalculationResult, error) {
	if len(lines) == 0 {
		return CalculationResult{}, fmt.Errorf("%w: order requires at least one line", ErrInvalidInput)
	}
	subtotal := decimal.Zero
	discount := decimal.Zero
	result := CalculationResult{Lines: make([]LineResult, 0, len(lines))}
	for i, line := range lines {
		if line.Quantity <= 0 {
			return CalculationResult{}, fmt.Errorf("%w: line %d quantity must be positive", ErrInvalidInput, i+1)
		}
		if !line.UnitPrice.IsPositive() {
			return CalculationResult{}, fmt.Errorf("%w: line %d unit price must be positive", ErrInvalidInput, i+1)
		}
		lineSubtotal := line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
		lineDiscount := resolveDiscount(line.Discount, lineSubtotal)
		lineFinal := lineSubtotal.Sub(lineDiscount).Round(2)

		subtotal = subtotal.Add(lineSubtotal.Sub(lineDiscount))
		discount = discount.Add(lineDiscount)
		result.Lines = append(result.Lines, LineResult{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  lineDiscount.Round(2),
			Subtotal:  lineFinal,
		})
	}
	result.Subtotal = subtotal.Round(2)
	result.Discount = discount.Round(2)
	taxBase := subtotal.Sub(discount)
	result.Tax = taxBase.Mul(c.cfg.TaxRate).Round(2)
	result.Total = taxBase.Add(taxBase.Mul(c.cfg.TaxRate)).Round(2)
	return result, nil
}

// resolveDiscount disambiguates the raw discount by magnitude: values in
// (0, 100] are a percentage of the line subtotal, larger values a fixed
// amount. Inherited pricing rule: a genuine fixed discount of 100 or less is
// indistinguishable from a percentage and is treated as one. The result is
// clamped so a discount never exceeds its line subtotal.
func resolveDiscount(raw, lineSubtotal decimal.Decimal) decimal.Decimal {
	if !raw.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	if raw.LessThanOrEqual(decimal.NewFromInt(100)) {
		amount = lineSubtotal.Mul(raw).Div(decimal.NewFromInt(100))
	} else {
		amount = raw
	}
	if amount.GreaterThan(lineSubtotal) {
		return lineSubtotal
	}
	return amount
}

// Verify recomputes tax and total from the stored aggregates and rejects any
// drift beyond the 0.01 tolerance. A failure here blocks persistence.
func (c *Calculator) Verify(subtotal, discount, tax, total decimal.Decimal) error {
	taxBase := subtotal.Sub(discount)
	wantTax := taxBase.Mul(c.cfg.TaxRate).Round(2)
	if tax.Sub(wantTax).Abs().GreaterThan(totalTolerance) {
		return fmt.Errorf("%w: tax %s, expected %s", ErrCalculationInconsistency, tax, wantTax)
	}
	wantTotal := taxBase.Add(tax).Round(2)
	if total.Sub(wantTotal).Abs().GreaterThan(totalTolerance) {
		return fmt.Errorf("%w: total %s, expected %s", ErrCalculationInconsistency, total, wantTotal)
	}
	return nil
}
