package balances

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianledger/meridian/internal/accounting/accounts"
	"github.com/meridianledger/meridian/internal/accounting/journals"
)

// Filter bounds an aggregation by date range and posting dimensions.
type Filter struct {
	From         *time.Time
	To           *time.Time
	CostCenterID *int64
	ProjectID    *int64
}

// Key renders the filter for cache key composition.
func (f Filter) Key() string {
	parts := make([]string, 0, 4)
	if f.From != nil {
		parts = append(parts, "from="+f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		parts = append(parts, "to="+f.To.Format("2006-01-02"))
	}
	if f.CostCenterID != nil {
		parts = append(parts, fmt.Sprintf("cc=%d", *f.CostCenterID))
	}
	if f.ProjectID != nil {
		parts = append(parts, fmt.Sprintf("prj=%d", *f.ProjectID))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, ",")
}

// AccountBalance aggregates posted activity for one account. Balance follows
// the normal-balance convention: debit minus credit for asset and expense
// accounts, credit minus debit otherwise.
type AccountBalance struct {
	AccountID   int64                `json:"account_id"`
	Code        string               `json:"code"`
	Name        string               `json:"name"`
	Type        accounts.AccountType `json:"type"`
	DebitTotal  decimal.Decimal      `json:"debit_total"`
	CreditTotal decimal.Decimal      `json:"credit_total"`
	Balance     decimal.Decimal      `json:"balance"`
}

// WithBalance fills Balance from the totals and account type.
func (b AccountBalance) WithBalance() AccountBalance {
	if b.Type.NormalSide() == accounts.BalanceSideDebit {
		b.Balance = b.DebitTotal.Sub(b.CreditTotal)
	} else {
		b.Balance = b.CreditTotal.Sub(b.DebitTotal)
	}
	return b
}

// SubledgerBalance aggregates posted activity by counterparty, used for
// AR/AP aging. Customers carry debit-normal balances, vendors credit-normal.
type SubledgerBalance struct {
	EntityType  journals.EntityType `json:"entity_type"`
	EntityID    string              `json:"entity_id"`
	DebitTotal  decimal.Decimal     `json:"debit_total"`
	CreditTotal decimal.Decimal     `json:"credit_total"`
	Balance     decimal.Decimal     `json:"balance"`
}

// WithBalance fills Balance by counterparty convention.
func (b SubledgerBalance) WithBalance() SubledgerBalance {
	if b.EntityType == journals.EntityVendor {
		b.Balance = b.CreditTotal.Sub(b.DebitTotal)
	} else {
		b.Balance = b.DebitTotal.Sub(b.CreditTotal)
	}
	return b
}

// TrialBalanceGroup aggregates accounts sharing a code prefix.
type TrialBalanceGroup struct {
	Key      string           `json:"key"`
	Accounts []AccountBalance `json:"accounts"`
	Debit    decimal.Decimal  `json:"debit"`
	Credit   decimal.Decimal  `json:"credit"`
}

// TrialBalance is the grouped projection reports render from.
type TrialBalance struct {
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
}

func groupKey(code string) string {
	if idx := strings.Index(code, "."); idx > 0 {
		return code[:idx]
	}
	if len(code) >= 2 {
		return code[:2]
	}
	return code
}

// BuildTrialBalance converts account balances into grouped trial balance data.
func BuildTrialBalance(rows []AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, row := range rows {
		key := groupKey(row.Code)
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[key] = grp
			keys = append(keys, key)
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit = grp.Debit.Add(row.DebitTotal)
		grp.Credit = grp.Credit.Add(row.CreditTotal)
	}

	sort.Strings(keys)
	result := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	return result
}
