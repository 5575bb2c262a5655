package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerIntegrityJob re-checks every posted entry against the balance
// invariant and its stored totals. Posted data is immutable, so any hit here
// means corruption outside the engine's write path.
type LedgerIntegrityJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{pool: pool, logger: logger}
}

// Handle processes TaskLedgerIntegrityScan tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	window := payload.WindowDays
	if window <= 0 {
		window = 90
	}

	rows, err := j.pool.Query(ctx, `SELECT e.id, e.number,
COALESCE(SUM(l.debit), 0)::text AS line_debit,
COALESCE(SUM(l.credit), 0)::text AS line_credit,
e.total_debit::text, e.total_credit::text
FROM journal_entries e
LEFT JOIN journal_lines l ON l.entry_id = e.id
WHERE e.status IN ('POSTED', 'REVERSED')
  AND e.date >= NOW() - make_interval(days => $1)
GROUP BY e.id, e.number, e.total_debit, e.total_credit
HAVING ABS(COALESCE(SUM(l.debit), 0) - COALESCE(SUM(l.credit), 0)) > 0.01
    OR COALESCE(SUM(l.debit), 0) <> e.total_debit
    OR COALESCE(SUM(l.credit), 0) <> e.total_credit`, window)
	if err != nil {
		return fmt.Errorf("jobs: integrity scan query: %w", err)
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		var id int64
		var number, lineDebit, lineCredit, totalDebit, totalCredit string
		if err := rows.Scan(&id, &number, &lineDebit, &lineCredit, &totalDebit, &totalCredit); err != nil {
			return err
		}
		violations++
		j.logger.Error("ledger integrity violation",
			slog.Int64("entry_id", id),
			slog.String("number", number),
			slog.String("line_debit", lineDebit),
			slog.String("line_credit", lineCredit),
			slog.String("total_debit", totalDebit),
			slog.String("total_credit", totalCredit))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if violations > 0 {
		return fmt.Errorf("jobs: %d ledger integrity violations found", violations)
	}
	j.logger.Info("ledger integrity scan clean", slog.Int("window_days", window))
	return nil
}
