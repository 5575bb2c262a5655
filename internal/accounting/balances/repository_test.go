package balances

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridianledger/meridian/internal/accounting/accounts"
)

// stubRow plays back aggregates the way the text-cast queries deliver them.
type stubRow struct {
	vals []any
}

func (r stubRow) Scan(dest ...any) error {
	if len(dest) != len(r.vals) {
		return fmt.Errorf("stub row: %d targets for %d values", len(dest), len(r.vals))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d).Elem()
		sv := reflect.ValueOf(r.vals[i])
		if !sv.Type().ConvertibleTo(dv.Type()) {
			return fmt.Errorf("stub row: cannot scan %T into %T", r.vals[i], d)
		}
		dv.Set(sv.Convert(dv.Type()))
	}
	return nil
}

func TestScanAccountBalanceParsesNumericText(t *testing.T) {
	row := stubRow{vals: []any{int64(1), "1000", "Cash", "ASSET", "150.00", "50.00"}}

	balance, err := scanAccountBalance(row)
	require.NoError(t, err)
	require.Equal(t, int64(1), balance.AccountID)
	require.Equal(t, accounts.AccountTypeAsset, balance.Type)
	require.True(t, balance.DebitTotal.Equal(dec("150.00")))
	require.True(t, balance.CreditTotal.Equal(dec("50.00")))
	require.True(t, balance.Balance.Equal(dec("100.00")), "balance fills from the normal side")
}

func TestScanAccountBalanceRejectsMalformedNumeric(t *testing.T) {
	row := stubRow{vals: []any{int64(1), "1000", "Cash", "ASSET", "oops", "50.00"}}
	_, err := scanAccountBalance(row)
	require.Error(t, err)
}
