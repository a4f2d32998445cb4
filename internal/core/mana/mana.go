// Package mana computes the regenerated value of Hive manabars.
//
// Voting power, downvote power and resource credits all regenerate linearly
// from their stored value to their maximum over the same fixed window,
// regardless of how large the maximum is.
package mana

import (
	"math"
	"math/big"
	"time"

	"github.com/vietddude/hivekit/internal/core/domain"
)

// RegenSeconds is the full regeneration window (5 days).
const RegenSeconds = 432000

// DownvoteRatio divides the voting maximum to obtain the downvote maximum.
const DownvoteRatio = 4

var regen = big.NewInt(RegenSeconds)

// Calculate returns the value of snapshot regenerated up to now.
// It is pure: the same inputs always produce the same result.
func Calculate(snapshot domain.ManabarSnapshot, now time.Time) domain.ManabarResult {
	if snapshot.Max <= 0 {
		return domain.ManabarResult{Percentage: 100}
	}

	elapsed := int64(now.Sub(snapshot.LastUpdateTime) / time.Second)
	elapsed = max(elapsed, 0)
	current := min(max(snapshot.Current, 0), snapshot.Max)

	maxMana := big.NewInt(snapshot.Max)

	// effective = min(max, current + elapsed*max/RegenSeconds)
	gained := new(big.Int).Mul(big.NewInt(elapsed), maxMana)
	gained.Quo(gained, regen)
	effective := gained.Add(gained, big.NewInt(current))
	if effective.Cmp(maxMana) > 0 {
		effective.Set(maxMana)
	}
	value := effective.Int64()

	if value >= snapshot.Max {
		return domain.ManabarResult{
			Current:    snapshot.Max,
			Max:        snapshot.Max,
			Percentage: 100,
		}
	}

	return domain.ManabarResult{
		Current:         value,
		Max:             snapshot.Max,
		Percentage:      percentage(value, snapshot.Max),
		CooldownSeconds: cooldown(value, snapshot.Max),
	}
}

// percentage never reaches 100 for a bar that is not full.
func percentage(value, maxMana int64) float64 {
	p := float64(value) / float64(maxMana) * 100
	if p >= 100 {
		return math.Nextafter(100, 0)
	}
	return max(p, 0)
}

// cooldown is ceil((max-value) * RegenSeconds / max).
func cooldown(value, maxMana int64) int64 {
	missing := big.NewInt(maxMana - value)
	missing.Mul(missing, regen)

	div := big.NewInt(maxMana)
	q, r := new(big.Int).QuoRem(missing, div, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Int64()
}

// VotingSnapshot builds the voting power snapshot of account.
func VotingSnapshot(account domain.Account) domain.ManabarSnapshot {
	return domain.ManabarSnapshot{
		Current:        account.VotingManabar.CurrentMana,
		Max:            account.EffectiveVests,
		LastUpdateTime: account.VotingManabar.LastUpdateTime,
	}
}

// DownvoteSnapshot builds the downvote power snapshot of account.
func DownvoteSnapshot(account domain.Account) domain.ManabarSnapshot {
	return domain.ManabarSnapshot{
		Current:        account.DownvoteManabar.CurrentMana,
		Max:            account.EffectiveVests / DownvoteRatio,
		LastUpdateTime: account.DownvoteManabar.LastUpdateTime,
	}
}

// RCSnapshot builds the resource credit snapshot of account.
func RCSnapshot(account domain.RCAccount) domain.ManabarSnapshot {
	return domain.ManabarSnapshot{
		Current:        account.RCManabar.CurrentMana,
		Max:            account.MaxRC,
		LastUpdateTime: account.RCManabar.LastUpdateTime,
	}
}
