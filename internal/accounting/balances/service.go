package balances

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/meridianledger/meridian/internal/accounting/journals"
)

// Service answers balance queries over posted entries only. Reads never fail
// on business conditions: an account with no activity yields zeroed totals.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
}

func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Bump invalidates cached reads. The journal engine calls this after each
// successful post or reversal.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// AccountBalance returns debit/credit totals and the normal-balance signed
// balance for one account.
func (s *Service) AccountBalance(ctx context.Context, accountID int64, f Filter) (AccountBalance, error) {
	var out AccountBalance
	err := s.fetch(ctx, fmt.Sprintf("gl:balance:account:%d:%s", accountID, f.Key()), &out,
		func(ctx context.Context) (any, error) {
			return s.repo.AccountBalance(ctx, accountID, f)
		})
	return out, err
}

// AllAccountBalances returns per-active-account aggregates; the sole source
// reports may read from.
func (s *Service) AllAccountBalances(ctx context.Context, f Filter) ([]AccountBalance, error) {
	var out []AccountBalance
	err := s.fetch(ctx, "gl:balance:accounts:"+f.Key(), &out,
		func(ctx context.Context) (any, error) {
			return s.repo.AllAccountBalances(ctx, f)
		})
	return out, err
}

// TrialBalance groups AllAccountBalances for statement construction.
func (s *Service) TrialBalance(ctx context.Context, f Filter) (TrialBalance, error) {
	rows, err := s.AllAccountBalances(ctx, f)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(rows), nil
}

// SubledgerBalances aggregates by counterparty id for AR/AP aging.
func (s *Service) SubledgerBalances(ctx context.Context, entityType journals.EntityType, f Filter) ([]SubledgerBalance, error) {
	if !entityType.Valid() || entityType == journals.EntityNone {
		return nil, fmt.Errorf("balances: unknown entity type %q", entityType)
	}
	var out []SubledgerBalance
	err := s.fetch(ctx, fmt.Sprintf("gl:balance:subledger:%s:%s", entityType, f.Key()), &out,
		func(ctx context.Context) (any, error) {
			return s.repo.SubledgerBalances(ctx, entityType, f)
		})
	return out, err
}

// fetch resolves through the versioned cache, collapsing concurrent misses
// for the same key to a single repository query.
func (s *Service) fetch(ctx context.Context, keyBase string, dest any, loader func(context.Context) (any, error)) error {
	key, err := s.cache.BuildKey(ctx, keyBase)
	if err != nil {
		return err
	}
	resultCh := s.group.DoChan(key, func() (any, error) {
		var raw json.RawMessage
		if err := s.cache.FetchJSON(ctx, key, &raw, loader); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}
