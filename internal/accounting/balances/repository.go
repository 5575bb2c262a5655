package balances

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridianledger/meridian/internal/accounting/journals"
	"github.com/meridianledger/meridian/internal/accounting/shared"
)

// Repository aggregates posted journal lines. It never writes; every query
// rebuilds from POSTED entries so it can only ever see immutable data.
type Repository interface {
	AccountBalance(ctx context.Context, accountID int64, f Filter) (AccountBalance, error)
	AllAccountBalances(ctx context.Context, f Filter) ([]AccountBalance, error)
	SubledgerBalances(ctx context.Context, entityType journals.EntityType, f Filter) ([]SubledgerBalance, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// postedLines scopes aggregation to lines on POSTED entries within the filter.
const postedLines = `
SELECT l.account_id, l.entity_type, l.entity_id, l.debit, l.credit
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id AND e.status = 'POSTED'
WHERE ($1::date IS NULL OR e.date >= $1)
  AND ($2::date IS NULL OR e.date <= $2)
  AND ($3::bigint IS NULL OR l.cost_center_id = $3)
  AND ($4::bigint IS NULL OR l.project_id = $4)`

func (r *repository) AccountBalance(ctx context.Context, accountID int64, f Filter) (AccountBalance, error) {
	row := r.db.QueryRow(ctx, `SELECT a.id, a.code, a.name, a.type,
COALESCE(SUM(pl.debit), 0)::text, COALESCE(SUM(pl.credit), 0)::text
FROM accounts a
LEFT JOIN (`+postedLines+`) pl ON pl.account_id = a.id
WHERE a.id = $5
GROUP BY a.id, a.code, a.name, a.type`,
		f.From, f.To, f.CostCenterID, f.ProjectID, accountID)
	balance, err := scanAccountBalance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountBalance{}, shared.ErrAccountNotFound
		}
		return AccountBalance{}, err
	}
	return balance, nil
}

func (r *repository) AllAccountBalances(ctx context.Context, f Filter) ([]AccountBalance, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, a.type,
COALESCE(SUM(pl.debit), 0)::text, COALESCE(SUM(pl.credit), 0)::text
FROM accounts a
LEFT JOIN (`+postedLines+`) pl ON pl.account_id = a.id
WHERE a.is_active
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`,
		f.From, f.To, f.CostCenterID, f.ProjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		balance, err := scanAccountBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, balance)
	}
	return out, rows.Err()
}

func (r *repository) SubledgerBalances(ctx context.Context, entityType journals.EntityType, f Filter) ([]SubledgerBalance, error) {
	rows, err := r.db.Query(ctx, `SELECT pl.entity_id,
COALESCE(SUM(pl.debit), 0)::text, COALESCE(SUM(pl.credit), 0)::text
FROM (`+postedLines+`) pl
WHERE pl.entity_type = $5 AND pl.entity_id IS NOT NULL
GROUP BY pl.entity_id
ORDER BY pl.entity_id`,
		f.From, f.To, f.CostCenterID, f.ProjectID, string(entityType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SubledgerBalance
	for rows.Next() {
		var b SubledgerBalance
		var debit, credit string
		if err := rows.Scan(&b.EntityID, &debit, &credit); err != nil {
			return nil, err
		}
		b.EntityType = entityType
		if b.DebitTotal, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if b.CreditTotal, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		out = append(out, b.WithBalance())
	}
	return out, rows.Err()
}

func scanAccountBalance(row pgx.Row) (AccountBalance, error) {
	var b AccountBalance
	var debit, credit string
	if err := row.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &debit, &credit); err != nil {
		return AccountBalance{}, err
	}
	var err error
	if b.DebitTotal, err = decimal.NewFromString(debit); err != nil {
		return AccountBalance{}, err
	}
	if b.CreditTotal, err = decimal.NewFromString(credit); err != nil {
		return AccountBalance{}, err
	}
	return b.WithBalance(), nil
}
