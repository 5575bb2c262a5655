package journals

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridianledger/meridian/internal/accounting/accounts"
	"github.com/meridianledger/meridian/internal/accounting/shared"
)

// roundingThreshold caps the absolute amount the helper may post. Anything
// larger is a real discrepancy, not a rounding artifact.
var roundingThreshold = decimal.RequireFromString("1.00")

// AccountDirectory resolves system account codes to chart accounts.
type AccountDirectory interface {
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// ConfigureRounding wires the system rounding and suspense accounts used by
// HandleRoundingDifference.
func (s *Service) ConfigureRounding(dir AccountDirectory, roundingCode, suspenseCode string) {
	s.coa = dir
	s.roundingCode = roundingCode
	s.suspenseCode = suspenseCode
}

// HandleRoundingDifference posts a small balancing entry between the system
// rounding and suspense accounts when a document total and its computed line
// sum disagree by a sub-unit amount. A zero amount is a no-op.
func (s *Service) HandleRoundingDifference(ctx context.Context, in RoundingInput) (JournalEntry, error) {
	if in.Amount.IsZero() {
		return JournalEntry{}, nil
	}
	if in.Amount.Abs().GreaterThan(roundingThreshold) {
		return JournalEntry{}, fmt.Errorf("%w: %s exceeds %s", shared.ErrThresholdExceeded, in.Amount.Abs(), roundingThreshold)
	}
	if s.coa == nil || s.roundingCode == "" || s.suspenseCode == "" {
		return JournalEntry{}, errors.New("journals: rounding accounts not configured")
	}
	rounding, err := s.coa.GetByCode(ctx, s.roundingCode)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("journals: resolve rounding account: %w", err)
	}
	suspense, err := s.coa.GetByCode(ctx, s.suspenseCode)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("journals: resolve suspense account: %w", err)
	}

	// A positive difference (document total above the line sum) debits the
	// rounding account; a negative one swaps the legs.
	amount := in.Amount.Abs()
	debitAccount, creditAccount := rounding.ID, suspense.ID
	if in.Amount.IsNegative() {
		debitAccount, creditAccount = suspense.ID, rounding.ID
	}

	description := in.Description
	if description == "" {
		description = "Rounding difference adjustment"
	}
	return s.Create(ctx, CreateInput{
		Date:           in.Date,
		Description:    description,
		SourceDocument: in.SourceDocument,
		SourceID:       in.SourceID,
		AutoPost:       true,
		CreatedBy:      in.CreatedBy,
		IdempotencyKey: in.IdempotencyKey,
		Lines: []LineInput{
			{AccountID: debitAccount, Description: description, Debit: amount},
			{AccountID: creditAccount, Description: description, Credit: amount},
		},
	})
}
