// Package sequence issues gap-minimizing document numbers per prefix.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Prefixes used by the ledger engine.
const (
	PrefixJournalEntry = "JE"
)

// Allocator increments per-prefix counters under a row lock. Next must run
// inside the caller's transaction so a rollback undoes the increment.
type Allocator struct {
	defaultWidth int
}

// NewAllocator constructs an Allocator with the given zero-pad width for
// counters created lazily on first use.
func NewAllocator(defaultWidth int) *Allocator {
	if defaultWidth < 1 {
		defaultWidth = 5
	}
	return &Allocator{defaultWidth: defaultWidth}
}

// Next locks the counter row for prefix, creating it when absent, increments
// it, and returns the rendered document number.
func (a *Allocator) Next(ctx context.Context, tx pgx.Tx, prefix string) (string, error) {
	if prefix == "" {
		return "", errors.New("sequence: prefix required")
	}
	var value int64
	var width int
	err := tx.QueryRow(ctx, `SELECT value, pad_width FROM sequence_counters WHERE prefix=$1 FOR UPDATE`, prefix).
		Scan(&value, &width)
	if errors.Is(err, pgx.ErrNoRows) {
		// Two first-ever allocations can race here. ON CONFLICT makes the
		// loser's insert a no-op, and the repeated SELECT then blocks on the
		// winner's row lock instead of failing the whole transaction.
		if _, err := tx.Exec(ctx, `INSERT INTO sequence_counters (prefix, value, pad_width) VALUES ($1, 0, $2)
ON CONFLICT (prefix) DO NOTHING`, prefix, a.defaultWidth); err != nil {
			return "", fmt.Errorf("sequence: create counter %s: %w", prefix, err)
		}
		err = tx.QueryRow(ctx, `SELECT value, pad_width FROM sequence_counters WHERE prefix=$1 FOR UPDATE`, prefix).
			Scan(&value, &width)
	}
	if err != nil {
		return "", fmt.Errorf("sequence: lock counter %s: %w", prefix, err)
	}
	value++
	if _, err := tx.Exec(ctx, `UPDATE sequence_counters SET value=$2 WHERE prefix=$1`, prefix, value); err != nil {
		return "", fmt.Errorf("sequence: advance counter %s: %w", prefix, err)
	}
	return Format(prefix, value, width), nil
}

// Format renders a document number as PREFIX-00042.
func Format(prefix string, value int64, width int) string {
	return fmt.Sprintf("%s-%0*d", prefix, width, value)
}
