package purchasing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateOrderNumber(t *testing.T) {
	v := NewValidator(DefaultConfig())
	valid := []string{"OC-2026-0001", "PO-1999-9999", "COMPR-2026-0042"}
	for _, n := range valid {
		require.NoError(t, v.ValidateOrderNumber(n), n)
	}
	invalid := []string{"", "OC-2026-1", "oc-2026-0001", "O-2026-0001", "TOOLONG-2026-0001", "OC-26-0001", "OC-2026-00001", "OC20260001"}
	for _, n := range invalid {
		require.ErrorIs(t, v.ValidateOrderNumber(n), ErrInvalidInput, n)
	}
}

func TestValidateDates(t *testing.T) {
	v := NewValidator(DefaultConfig())
	emission := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, v.ValidateDates(emission, nil))

	sameDay := emission
	require.NoError(t, v.ValidateDates(emission, &sameDay))

	edge := emission.AddDate(0, 0, 365)
	require.NoError(t, v.ValidateDates(emission, &edge))

	before := emission.AddDate(0, 0, -1)
	require.ErrorIs(t, v.ValidateDates(emission, &before), ErrBusinessRule)

	tooLate := emission.AddDate(0, 0, 366)
	require.ErrorIs(t, v.ValidateDates(emission, &tooLate), ErrBusinessRule)
}

func TestValidateLines(t *testing.T) {
	v := NewValidator(DefaultConfig())

	ok := []LineInput{{ProductID: 1, Quantity: 2, UnitPrice: money(t, "10.50")}}
	require.NoError(t, v.ValidateLines(ok))

	require.ErrorIs(t, v.ValidateLines(nil), ErrInvalidInput)

	dup := []LineInput{
		{ProductID: 1, Quantity: 1, UnitPrice: money(t, "10.00")},
		{ProductID: 1, Quantity: 2, UnitPrice: money(t, "12.00")},
	}
	require.ErrorIs(t, v.ValidateLines(dup), ErrInvalidInput)

	tooMany := make([]LineInput, 51)
	for i := range tooMany {
		tooMany[i] = LineInput{ProductID: int64(i + 1), Quantity: 1, UnitPrice: money(t, "1.00")}
	}
	require.ErrorIs(t, v.ValidateLines(tooMany), ErrInvalidInput)

	bigQty := []LineInput{{ProductID: 1, Quantity: 10001, UnitPrice: money(t, "1.00")}}
	require.ErrorIs(t, v.ValidateLines(bigQty), ErrInvalidInput)

	bigPrice := []LineInput{{ProductID: 1, Quantity: 1, UnitPrice: money(t, "1000000.01")}}
	require.ErrorIs(t, v.ValidateLines(bigPrice), ErrInvalidInput)

	fractional := []LineInput{{ProductID: 1, Quantity: 1, UnitPrice: money(t, "9.999")}}
	require.ErrorIs(t, v.ValidateLines(fractional), ErrInvalidInput)
}

func TestCheckCeiling(t *testing.T) {
	v := NewValidator(DefaultConfig())
	require.NoError(t, v.CheckCeiling(money(t, "10000000.00")))
	require.ErrorIs(t, v.CheckCeiling(money(t, "10000000.01")), ErrBusinessRule)
}
