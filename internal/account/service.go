// Package account reports regenerated voting, downvote and RC mana for accounts.
package account

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/core/mana"
)

// Querier reads account state from a node. *hive.Client implements it.
type Querier interface {
	GetManaAccounts(ctx context.Context, names []string) ([]domain.Account, []domain.RCAccount, error)
}

// Manabars is the regenerated mana of one account.
type Manabars struct {
	Username string               `json:"username"`
	Voting   domain.ManabarResult `json:"voting"`
	Downvote domain.ManabarResult `json:"downvote"`
	RC       domain.ManabarResult `json:"rc"`
	// HasRC is false when the node returned no RC record for the account.
	HasRC bool `json:"has_rc"`
}

// Service combines account and RC queries into Manabars.
type Service struct {
	now func() time.Time
}

// NewService creates a Service using the wall clock.
func NewService() *Service {
	return &Service{now: time.Now}
}

// Fetch queries accounts and RC state in one round trip and computes mana
// at the current time. Accounts unknown to the node are omitted; the result
// keeps the order of usernames.
func (s *Service) Fetch(ctx context.Context, q Querier, usernames []string) ([]Manabars, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	accounts, rcs, err := q.GetManaAccounts(ctx, usernames)
	if err != nil {
		return nil, fmt.Errorf("get mana accounts: %w", err)
	}

	byName := make(map[string]domain.Account, len(accounts))
	for _, a := range accounts {
		byName[a.Name] = a
	}
	rcByName := make(map[string]domain.RCAccount, len(rcs))
	for _, rc := range rcs {
		rcByName[rc.Account] = rc
	}

	now := s.now()
	out := make([]Manabars, 0, len(usernames))
	for _, name := range usernames {
		a, ok := byName[name]
		if !ok {
			continue
		}
		m := Manabars{
			Username: name,
			Voting:   mana.Calculate(mana.VotingSnapshot(a), now),
			Downvote: mana.Calculate(mana.DownvoteSnapshot(a), now),
		}
		if rc, ok := rcByName[name]; ok {
			m.RC = mana.Calculate(mana.RCSnapshot(rc), now)
			m.HasRC = true
		}
		out = append(out, m)
	}
	return out, nil
}
