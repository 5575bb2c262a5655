package journals

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/meridianledger/meridian/internal/accounting/shared"
)

// stubRow plays back one row the way the text-cast queries deliver it:
// numeric columns arrive as strings, nullable columns as nil.
type stubRow struct {
	vals []any
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("stub row: %d targets for %d values", len(dest), len(r.vals))
	}
	for i, d := range dest {
		if r.vals[i] == nil {
			continue
		}
		dv := reflect.ValueOf(d).Elem()
		sv := reflect.ValueOf(r.vals[i])
		if !sv.Type().ConvertibleTo(dv.Type()) {
			return fmt.Errorf("stub row: cannot scan %T into %T", r.vals[i], d)
		}
		dv.Set(sv.Convert(dv.Type()))
	}
	return nil
}

func TestScanEntryParsesNumericText(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	row := stubRow{vals: []any{
		int64(7), "JE-00007", now, "Consulting invoice", "POSTED", "MANUAL",
		nil, nil, "150.00", "149.99", false, "alice", now,
		nil, nil, nil, nil, nil, nil, nil, nil, now,
	}}

	entry, err := scanEntry(row)
	require.NoError(t, err)
	require.Equal(t, int64(7), entry.ID)
	require.Equal(t, EntryStatusPosted, entry.Status)
	require.True(t, entry.TotalDebit.Equal(dec("150.00")))
	require.True(t, entry.TotalCredit.Equal(dec("149.99")))
}

func TestScanEntryRejectsMalformedNumeric(t *testing.T) {
	now := time.Now()
	row := stubRow{vals: []any{
		int64(7), "JE-00007", now, "", "DRAFT", "MANUAL",
		nil, nil, "not-a-number", "0.00", false, "alice", now,
		nil, nil, nil, nil, nil, nil, nil, nil, now,
	}}

	_, err := scanEntry(row)
	require.Error(t, err)
}

func TestScanEntryNotFound(t *testing.T) {
	_, err := scanEntry(stubRow{err: pgx.ErrNoRows})
	require.ErrorIs(t, err, shared.ErrJournalNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: idempotencyConstraint}
	require.True(t, IsUniqueViolation(pgErr, idempotencyConstraint))
	require.True(t, IsUniqueViolation(pgErr, ""))
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), idempotencyConstraint))

	require.False(t, IsUniqueViolation(pgErr, "uq_other"))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, idempotencyConstraint))
	require.False(t, IsUniqueViolation(errors.New("plain"), idempotencyConstraint))
}

func TestNumericBoundaryFormat(t *testing.T) {
	require.Equal(t, "150.00", toNumeric(dec("150")))
	require.Equal(t, "0.10", toNumeric(dec("0.1")))

	amount := dec("15.50")
	require.Equal(t, "15.50", toNullNumeric(&amount))
	require.Nil(t, toNullNumeric(nil))
}
