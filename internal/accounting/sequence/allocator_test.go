package sequence

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type counterRow struct {
	value int64
	width int
	err   error
}

func (r counterRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.value
	*(dest[1].(*int)) = r.width
	return nil
}

// fakeTx replays scripted counter rows for the allocator's SELECT ... FOR
// UPDATE statements and records every Exec it sees. The embedded pgx.Tx is
// nil; only the methods the allocator touches are overridden.
type fakeTx struct {
	pgx.Tx
	rows  []counterRow
	execs []string
	args  [][]any
}

func (t *fakeTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	row := t.rows[0]
	t.rows = t.rows[1:]
	return row
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, sql)
	t.args = append(t.args, args)
	return pgconn.NewCommandTag("INSERT 0 0"), nil
}

func TestFormat(t *testing.T) {
	require.Equal(t, "JE-00001", Format(PrefixJournalEntry, 1, 5))
	require.Equal(t, "JE-00042", Format(PrefixJournalEntry, 42, 5))
	require.Equal(t, "JE-007", Format(PrefixJournalEntry, 7, 3))

	// Values wider than the pad keep all digits.
	require.Equal(t, "JE-123456", Format(PrefixJournalEntry, 123456, 5))
}

func TestNextAdvancesExistingCounter(t *testing.T) {
	tx := &fakeTx{rows: []counterRow{{value: 41, width: 5}}}

	got, err := NewAllocator(5).Next(context.Background(), tx, PrefixJournalEntry)
	require.NoError(t, err)
	require.Equal(t, "JE-00042", got)

	require.Len(t, tx.execs, 1)
	require.Contains(t, tx.execs[0], "UPDATE sequence_counters")
	require.Equal(t, []any{PrefixJournalEntry, int64(42)}, tx.args[0])
}

func TestNextFirstUseLosesInsertRace(t *testing.T) {
	// The initial locking select finds nothing, the insert hits an existing
	// row (a concurrent transaction created it first), and the repeated
	// select picks up the winner's counter once its lock is released.
	tx := &fakeTx{rows: []counterRow{
		{err: pgx.ErrNoRows},
		{value: 3, width: 5},
	}}

	got, err := NewAllocator(5).Next(context.Background(), tx, PrefixJournalEntry)
	require.NoError(t, err)
	require.Equal(t, "JE-00004", got)

	require.Len(t, tx.execs, 2)
	require.Contains(t, tx.execs[0], "ON CONFLICT (prefix) DO NOTHING")
	require.Contains(t, tx.execs[1], "UPDATE sequence_counters")
	require.Empty(t, tx.rows, "both locking selects should run")
}

func TestNextFirstUseCreatesCounter(t *testing.T) {
	tx := &fakeTx{rows: []counterRow{
		{err: pgx.ErrNoRows},
		{value: 0, width: 5},
	}}

	got, err := NewAllocator(5).Next(context.Background(), tx, PrefixJournalEntry)
	require.NoError(t, err)
	require.Equal(t, "JE-00001", got)
}

func TestNewAllocatorWidthFloor(t *testing.T) {
	require.Equal(t, 5, NewAllocator(0).defaultWidth)
	require.Equal(t, 5, NewAllocator(-3).defaultWidth)
	require.Equal(t, 8, NewAllocator(8).defaultWidth)
}
