package journals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridianledger/meridian/internal/accounting/accounts"
	"github.com/meridianledger/meridian/internal/accounting/shared"
)

type stubDirectory struct {
	byCode map[string]accounts.Account
}

func (d *stubDirectory) GetByCode(ctx context.Context, code string) (accounts.Account, error) {
	acct, ok := d.byCode[code]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return acct, nil
}

func newRoundingService(t *testing.T) (*Service, *memoryJournalRepo) {
	t.Helper()
	svc, repo, _, _, _ := newTestService(t)
	repo.addAccount(10, "7950", true)
	repo.addAccount(11, "9999", true)
	svc.ConfigureRounding(&stubDirectory{byCode: map[string]accounts.Account{
		"7950": {ID: 10, Code: "7950", Type: accounts.AccountTypeExpense, IsActive: true},
		"9999": {ID: 11, Code: "9999", Type: accounts.AccountTypeLiability, IsActive: true},
	}}, "7950", "9999")
	return svc, repo
}

func TestHandleRoundingDifferenceZeroIsNoop(t *testing.T) {
	svc, repo := newRoundingService(t)

	entry, err := svc.HandleRoundingDifference(context.Background(), RoundingInput{
		Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		CreatedBy: "system",
	})
	require.NoError(t, err)
	require.Zero(t, entry.ID)
	require.Empty(t, repo.entries)
}

func TestHandleRoundingDifferencePositive(t *testing.T) {
	svc, _ := newRoundingService(t)

	entry, err := svc.HandleRoundingDifference(context.Background(), RoundingInput{
		Amount:         dec("0.25"),
		Date:           time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		SourceDocument: SourceInvoice,
		CreatedBy:      "system",
	})
	require.NoError(t, err)

	require.Equal(t, EntryStatusPosted, entry.Status)
	require.True(t, entry.AutoGenerated)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, int64(10), entry.Lines[0].AccountID)
	require.True(t, entry.Lines[0].Debit.Equal(dec("0.25")))
	require.Equal(t, int64(11), entry.Lines[1].AccountID)
	require.True(t, entry.Lines[1].Credit.Equal(dec("0.25")))
}

func TestHandleRoundingDifferenceNegativeSwapsLegs(t *testing.T) {
	svc, _ := newRoundingService(t)

	entry, err := svc.HandleRoundingDifference(context.Background(), RoundingInput{
		Amount:    dec("-0.40"),
		Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		CreatedBy: "system",
	})
	require.NoError(t, err)

	require.Len(t, entry.Lines, 2)
	require.Equal(t, int64(11), entry.Lines[0].AccountID)
	require.True(t, entry.Lines[0].Debit.Equal(dec("0.40")))
	require.Equal(t, int64(10), entry.Lines[1].AccountID)
	require.True(t, entry.Lines[1].Credit.Equal(dec("0.40")))
}

func TestHandleRoundingDifferenceThreshold(t *testing.T) {
	svc, _ := newRoundingService(t)
	ctx := context.Background()

	// Exactly at the cap is still a rounding artifact.
	_, err := svc.HandleRoundingDifference(ctx, RoundingInput{
		Amount:    dec("1.00"),
		Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		CreatedBy: "system",
	})
	require.NoError(t, err)

	_, err = svc.HandleRoundingDifference(ctx, RoundingInput{
		Amount:    dec("1.01"),
		Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		CreatedBy: "system",
	})
	require.ErrorIs(t, err, shared.ErrThresholdExceeded)

	_, err = svc.HandleRoundingDifference(ctx, RoundingInput{
		Amount:    dec("-1.01"),
		Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		CreatedBy: "system",
	})
	require.ErrorIs(t, err, shared.ErrThresholdExceeded)
}

func TestHandleRoundingDifferenceIdempotent(t *testing.T) {
	svc, repo := newRoundingService(t)
	ctx := context.Background()
	key := "rounding-inv-77"

	in := RoundingInput{
		Amount:         dec("0.10"),
		Date:           time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		CreatedBy:      "system",
		IdempotencyKey: &key,
	}
	first, err := svc.HandleRoundingDifference(ctx, in)
	require.NoError(t, err)
	second, err := svc.HandleRoundingDifference(ctx, in)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.entries, 1)
}
