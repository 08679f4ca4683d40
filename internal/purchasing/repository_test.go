package purchasing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapPgErrorTranslatesConflictCodes(t *testing.T) {
	cases := []struct {
		name     string
		code     string
		conflict bool
	}{
		{"unique violation", "23505", true},
		{"serialization failure", "40001", true},
		{"deadlock detected", "40P01", true},
		{"foreign key violation", "23503", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tc.code, Message: tc.name, ConstraintName: "purchase_orders_company_id_number_key"}
			err := mapPgError(fmt.Errorf("exec: %w", pgErr))
			if tc.conflict {
				require.ErrorIs(t, err, ErrConcurrencyConflict)
			} else {
				require.NotErrorIs(t, err, ErrConcurrencyConflict)
				require.ErrorIs(t, err, pgErr)
			}
		})
	}
}

func TestMapPgErrorPassesThroughNonDriverErrors(t *testing.T) {
	require.Nil(t, mapPgError(nil))

	plain := errors.New("connection reset")
	require.Same(t, plain, mapPgError(plain))
}
