package journals

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridianledger/meridian/internal/accounting/accounts"
	"github.com/meridianledger/meridian/internal/accounting/sequence"
	"github.com/meridianledger/meridian/internal/accounting/shared"
)

// Repository encapsulates DB operations for journal entries.
type Repository interface {
	GetEntry(ctx context.Context, id int64) (JournalEntry, error)
	GetEntryByIdempotencyKey(ctx context.Context, key string) (JournalEntry, bool, error)
	List(ctx context.Context) ([]JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside one transaction. All
// create/transition work runs through it so a failure at any step rolls back
// everything, sequence allocation included.
type TxRepository interface {
	FindByIdempotencyKey(ctx context.Context, key string) (JournalEntry, bool, error)
	ResolveAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	NextSequence(ctx context.Context, prefix string) (string, error)
	InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error)
	GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	GetEntryWithLinesForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	UpdateEntry(ctx context.Context, e JournalEntry) error
}

// Numeric columns are cast to text so they scan into strings regardless of
// the wire format pgx negotiates; parsing into decimal happens in scanEntry
// and loadLines.
const entryColumns = `id, number, date, description, status, source_document, source_id, period_id,
total_debit::text, total_credit::text, auto_generated, created_by, created_at, approved_by, approved_at,
posted_by, posted_at, idempotency_key, reversed_by_entry_id, reversal_reason, reversal_date, updated_at`

type repository struct {
	db  *pgxpool.Pool
	seq *sequence.Allocator
}

func NewRepository(db *pgxpool.Pool, seq *sequence.Allocator) Repository {
	return &repository{db: db, seq: seq}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx, seq: r.seq}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) GetEntry(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		return JournalEntry{}, err
	}
	lines, err := loadLines(ctx, r.db, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *repository) GetEntryByIdempotencyKey(ctx context.Context, key string) (JournalEntry, bool, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE idempotency_key=$1`, key))
	if err != nil {
		if errors.Is(err, shared.ErrJournalNotFound) {
			return JournalEntry{}, false, nil
		}
		return JournalEntry{}, false, err
	}
	lines, err := loadLines(ctx, r.db, entry.ID)
	if err != nil {
		return JournalEntry{}, false, err
	}
	entry.Lines = lines
	return entry, true, nil
}

func (r *repository) List(ctx context.Context) ([]JournalEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type txRepository struct {
	tx  pgx.Tx
	seq *sequence.Allocator
}

func (r *txRepository) FindByIdempotencyKey(ctx context.Context, key string) (JournalEntry, bool, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE idempotency_key=$1`, key))
	if err != nil {
		if errors.Is(err, shared.ErrJournalNotFound) {
			return JournalEntry{}, false, nil
		}
		return JournalEntry{}, false, err
	}
	lines, err := loadLines(ctx, r.tx, entry.ID)
	if err != nil {
		return JournalEntry{}, false, err
	}
	entry.Lines = lines
	return entry, true, nil
}

func (r *txRepository) ResolveAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, name, type, is_active, created_at, updated_at FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[int64]accounts.Account, len(ids))
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		found[a.ID] = a
	}
	return found, rows.Err()
}

func (r *txRepository) NextSequence(ctx context.Context, prefix string) (string, error) {
	return r.seq.Next(ctx, r.tx, prefix)
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(number, date, description, status, source_document, source_id, period_id, total_debit, total_credit,
 auto_generated, created_by, approved_by, approved_at, posted_by, posted_at, idempotency_key)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING id, created_at, updated_at`,
		e.Number, e.Date, e.Description, e.Status, e.SourceDocument, e.SourceID, e.PeriodID,
		toNumeric(e.TotalDebit), toNumeric(e.TotalCredit), e.AutoGenerated, e.CreatedBy,
		e.ApprovedBy, e.ApprovedAt, e.PostedBy, e.PostedAt, e.IdempotencyKey).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		line.EntryID = entryID
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines
(entry_id, line_no, account_id, description, debit, credit, cost_center_id, project_id, tax_code, tax_amount, entity_type, entity_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id, created_at`,
			line.EntryID, line.LineNo, line.AccountID, line.Description,
			toNumeric(line.Debit), toNumeric(line.Credit),
			line.CostCenterID, line.ProjectID, line.TaxCode, toNullNumeric(line.TaxAmount),
			nullEntityType(line.EntityType), line.EntityID).
			Scan(&line.ID, &line.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("journals: insert line %d: %w", line.LineNo, err)
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	return scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetEntryWithLinesForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := r.GetEntryForUpdate(ctx, id)
	if err != nil {
		return JournalEntry{}, err
	}
	lines, err := loadLines(ctx, r.tx, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *txRepository) UpdateEntry(ctx context.Context, e JournalEntry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries
SET status=$2, approved_by=$3, approved_at=$4, posted_by=$5, posted_at=$6,
    reversed_by_entry_id=$7, reversal_reason=$8, reversal_date=$9, updated_at=NOW()
WHERE id=$1`,
		e.ID, e.Status, e.ApprovedBy, e.ApprovedAt, e.PostedBy, e.PostedAt,
		e.ReversedByEntryID, e.ReversalReason, e.ReversalDate)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q queryer, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, line_no, account_id, description, debit::text, credit::text,
cost_center_id, project_id, tax_code, tax_amount::text, entity_type, entity_id, created_at
FROM journal_lines WHERE entry_id=$1 ORDER BY line_no ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		var debit, credit string
		var taxAmount, entityType *string
		if err := rows.Scan(&line.ID, &line.EntryID, &line.LineNo, &line.AccountID, &line.Description,
			&debit, &credit, &line.CostCenterID, &line.ProjectID, &line.TaxCode, &taxAmount,
			&entityType, &line.EntityID, &line.CreatedAt); err != nil {
			return nil, err
		}
		if line.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if line.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		if taxAmount != nil {
			amount, err := decimal.NewFromString(*taxAmount)
			if err != nil {
				return nil, err
			}
			line.TaxAmount = &amount
		}
		if entityType != nil {
			line.EntityType = EntityType(*entityType)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	var totalDebit, totalCredit string
	err := row.Scan(&e.ID, &e.Number, &e.Date, &e.Description, &e.Status, &e.SourceDocument, &e.SourceID,
		&e.PeriodID, &totalDebit, &totalCredit, &e.AutoGenerated, &e.CreatedBy, &e.CreatedAt,
		&e.ApprovedBy, &e.ApprovedAt, &e.PostedBy, &e.PostedAt, &e.IdempotencyKey,
		&e.ReversedByEntryID, &e.ReversalReason, &e.ReversalDate, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	if e.TotalDebit, err = decimal.NewFromString(totalDebit); err != nil {
		return JournalEntry{}, err
	}
	if e.TotalCredit, err = decimal.NewFromString(totalCredit); err != nil {
		return JournalEntry{}, err
	}
	return e, nil
}

// IsUniqueViolation reports whether err is a unique-index violation on the
// named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}

func toNumeric(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func toNullNumeric(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return v.StringFixed(2)
}

func nullEntityType(t EntityType) any {
	if t == EntityNone {
		return nil
	}
	return string(t)
}
