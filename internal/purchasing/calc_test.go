package purchasing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func money(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Equal(t, want, got.StringFixed(2))
}

func TestCalculateAggregates(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	result, err := calc.Calculate([]LineInput{
		{ProductID: 1, Quantity: 3, UnitPrice: money(t, "50.00")},
		{ProductID: 2, Quantity: 1, UnitPrice: money(t, "200.00"), Discount: money(t, "5")},
	})
	require.NoError(t, err)
	requireMoney(t, "340.00", result.Subtotal)
	requireMoney(t, "10.00", result.Discount)
	requireMoney(t, "59.40", result.Tax)
	requireMoney(t, "389.40", result.Total)
	require.Len(t, result.Lines, 2)
	requireMoney(t, "150.00", result.Lines[0].Subtotal)
	requireMoney(t, "190.00", result.Lines[1].Subtotal)
}

func TestCalculateDiscountHeuristic(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	cases := []struct {
		name     string
		qty      int64
		price    string
		discount string
		want     string
	}{
		{"percentage", 2, "100.00", "10", "20.00"},
		{"boundary is percentage", 1, "200.00", "100", "200.00"},
		{"fixed amount", 1, "200.00", "150", "150.00"},
		{"fixed clamped to line", 1, "200.00", "250", "200.00"},
		{"zero", 1, "200.00", "0", "0.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := calc.Calculate([]LineInput{
				{ProductID: 1, Quantity: tc.qty, UnitPrice: money(t, tc.price), Discount: money(t, tc.discount)},
			})
			require.NoError(t, err)
			requireMoney(t, tc.want, result.Discount)
		})
	}
}

func TestCalculateRoundsAggregatesAfterSummation(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	// 0.5% of 1.00 is 0.005 per line. Summed first, the discounted subtotal
	// is 2.985 -> 2.99 and the aggregate discount 0.015 -> 0.02; rounding
	// each line first would give 3.00 and 0.03.
	result, err := calc.Calculate([]LineInput{
		{ProductID: 1, Quantity: 1, UnitPrice: money(t, "1.00"), Discount: money(t, "0.5")},
		{ProductID: 2, Quantity: 1, UnitPrice: money(t, "1.00"), Discount: money(t, "0.5")},
		{ProductID: 3, Quantity: 1, UnitPrice: money(t, "1.00"), Discount: money(t, "0.5")},
	})
	require.NoError(t, err)
	requireMoney(t, "2.99", result.Subtotal)
	requireMoney(t, "0.02", result.Discount)
	requireMoney(t, "0.53", result.Tax)
	requireMoney(t, "3.50", result.Total)
}

func TestCalculateRejectsBadLines(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	_, err := calc.Calculate(nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = calc.Calculate([]LineInput{{ProductID: 1, Quantity: 0, UnitPrice: money(t, "10.00")}})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = calc.Calculate([]LineInput{{ProductID: 1, Quantity: 1, UnitPrice: money(t, "-1.00")}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestVerify(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	require.NoError(t, calc.Verify(money(t, "340.00"), money(t, "10.00"), money(t, "59.40"), money(t, "389.40")))
	// One cent of drift is tolerated.
	require.NoError(t, calc.Verify(money(t, "340.00"), money(t, "10.00"), money(t, "59.41"), money(t, "389.41")))

	err := calc.Verify(money(t, "340.00"), money(t, "10.00"), money(t, "59.45"), money(t, "389.45"))
	require.ErrorIs(t, err, ErrCalculationInconsistency)
	require.False(t, errors.Is(err, ErrInvalidInput))

	err = calc.Verify(money(t, "340.00"), money(t, "10.00"), money(t, "59.40"), money(t, "400.00"))
	require.ErrorIs(t, err, ErrCalculationInconsistency)
}
