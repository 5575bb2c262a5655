package journals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianledger/meridian/internal/accounting/shared"
)

// balanceTolerance bounds the acceptable debit/credit difference caused by
// per-line rounding of document amounts.
var balanceTolerance = decimal.RequireFromString("0.01")

// LineInput describes one requested journal line.
type LineInput struct {
	AccountID    int64
	Description  string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	CostCenterID *int64
	ProjectID    *int64
	TaxCode      *string
	TaxAmount    *decimal.Decimal
	EntityType   EntityType
	EntityID     *string
}

// CreateInput groups fields required to create a journal entry.
type CreateInput struct {
	Date           time.Time
	Description    string
	Lines          []LineInput
	SourceDocument SourceDocument
	SourceID       *string
	AutoPost       bool
	CreatedBy      string
	IdempotencyKey *string
}

// Validate rejects malformed line sets before any persistence attempt.
func (in CreateInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: transaction date required", shared.ErrInvalidEntry)
	}
	if len(in.Lines) < 2 {
		return fmt.Errorf("%w: at least two lines required", shared.ErrInvalidEntry)
	}
	for idx, line := range in.Lines {
		n := idx + 1
		if line.AccountID == 0 {
			return fmt.Errorf("%w: line %d missing account", shared.ErrInvalidEntry, n)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", shared.ErrInvalidEntry, n)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d cannot be both debit and credit", shared.ErrInvalidEntry, n)
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return fmt.Errorf("%w: line %d must carry a debit or a credit", shared.ErrInvalidEntry, n)
		}
		if !line.EntityType.Valid() {
			return fmt.Errorf("%w: line %d unknown entity type %q", shared.ErrInvalidEntry, n, line.EntityType)
		}
		if line.EntityType != EntityNone && (line.EntityID == nil || *line.EntityID == "") {
			return fmt.Errorf("%w: line %d entity id required for %s", shared.ErrInvalidEntry, n, line.EntityType)
		}
	}
	return nil
}

// Totals sums debit and credit across the requested lines.
func (in CreateInput) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// Balanced reports whether the totals agree within tolerance.
func (in CreateInput) Balanced() bool {
	debit, credit := in.Totals()
	return debit.Sub(credit).Abs().LessThanOrEqual(balanceTolerance)
}

// ReverseInput wraps parameters for reversing a posted entry.
type ReverseInput struct {
	ReversalDate *time.Time
	Reason       string
	ReversedBy   string
}

// RoundingInput describes a sub-unit difference between a document total and
// its computed line sum.
type RoundingInput struct {
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	SourceDocument SourceDocument
	SourceID       *string
	CreatedBy      string
	IdempotencyKey *string
}
