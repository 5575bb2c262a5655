package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianledger/meridian/internal/accounting/shared"
	"github.com/meridianledger/meridian/internal/platform/db"
)

const periodColumns = `id, fiscal_year_id, name, start_date, end_date, status, closed_by, closed_at, locked_by, locked_at, created_at, updated_at`

// Repository persists fiscal years and accounting periods.
type Repository interface {
	FindForDate(ctx context.Context, date time.Time) (AccountingPeriod, error)
	CountPeriods(ctx context.Context) (int64, error)
	GetPeriod(ctx context.Context, id int64) (AccountingPeriod, error)
	GetPeriodForUpdate(ctx context.Context, tx pgx.Tx, id int64) (AccountingPeriod, error)
	UpdatePeriodStatus(ctx context.Context, tx pgx.Tx, p AccountingPeriod) error
	InsertFiscalYear(ctx context.Context, tx pgx.Tx, in CreateFiscalYearInput) (FiscalYear, error)
	InsertPeriods(ctx context.Context, tx pgx.Tx, fiscalYearID int64, ps []AccountingPeriod) ([]AccountingPeriod, error)
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return db.WithTx(ctx, r.db, fn)
}

// FindForDate returns the period whose inclusive bounds contain date,
// regardless of its status.
func (r *repository) FindForDate(ctx context.Context, date time.Time) (AccountingPeriod, error) {
	var p AccountingPeriod
	err := r.db.QueryRow(ctx, `SELECT `+periodColumns+`
FROM accounting_periods WHERE $1 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, date).
		Scan(&p.ID, &p.FiscalYearID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedBy, &p.ClosedAt, &p.LockedBy, &p.LockedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountingPeriod{}, shared.ErrPeriodNotFound
		}
		return AccountingPeriod{}, err
	}
	return p, nil
}

func (r *repository) CountPeriods(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounting_periods`).Scan(&count)
	return count, err
}

func (r *repository) GetPeriod(ctx context.Context, id int64) (AccountingPeriod, error) {
	return scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1`, id))
}

func (r *repository) GetPeriodForUpdate(ctx context.Context, tx pgx.Tx, id int64) (AccountingPeriod, error) {
	return scanPeriod(tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1 FOR UPDATE`, id))
}

func (r *repository) UpdatePeriodStatus(ctx context.Context, tx pgx.Tx, p AccountingPeriod) error {
	cmd, err := tx.Exec(ctx, `UPDATE accounting_periods
SET status=$2, closed_by=$3, closed_at=$4, locked_by=$5, locked_at=$6, updated_at=NOW()
WHERE id=$1`, p.ID, p.Status, p.ClosedBy, p.ClosedAt, p.LockedBy, p.LockedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

func (r *repository) InsertFiscalYear(ctx context.Context, tx pgx.Tx, in CreateFiscalYearInput) (FiscalYear, error) {
	fy := FiscalYear{
		Name:      in.Name,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    FiscalYearStatusOpen,
		CreatedBy: in.CreatedBy,
	}
	err := tx.QueryRow(ctx, `INSERT INTO fiscal_years (name, start_date, end_date, status, created_by)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		fy.Name, fy.StartDate, fy.EndDate, fy.Status, fy.CreatedBy).
		Scan(&fy.ID, &fy.CreatedAt, &fy.UpdatedAt)
	if err != nil {
		return FiscalYear{}, fmt.Errorf("periods: insert fiscal year: %w", err)
	}
	return fy, nil
}

func (r *repository) InsertPeriods(ctx context.Context, tx pgx.Tx, fiscalYearID int64, ps []AccountingPeriod) ([]AccountingPeriod, error) {
	out := make([]AccountingPeriod, 0, len(ps))
	for _, p := range ps {
		p.FiscalYearID = fiscalYearID
		err := tx.QueryRow(ctx, `INSERT INTO accounting_periods (fiscal_year_id, name, start_date, end_date, status)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
			p.FiscalYearID, p.Name, p.StartDate, p.EndDate, p.Status).
			Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("periods: insert period %s: %w", p.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func scanPeriod(row pgx.Row) (AccountingPeriod, error) {
	var p AccountingPeriod
	err := row.Scan(&p.ID, &p.FiscalYearID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedBy, &p.ClosedAt, &p.LockedBy, &p.LockedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountingPeriod{}, shared.ErrPeriodNotFound
		}
		return AccountingPeriod{}, err
	}
	return p, nil
}
