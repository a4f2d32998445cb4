package domain

import "time"

// Manabar is the raw on-chain representation of a regenerating resource.
type Manabar struct {
	CurrentMana    int64
	LastUpdateTime time.Time
}

// ManabarSnapshot is the input to the regeneration calculator.
type ManabarSnapshot struct {
	Current        int64     `json:"current"`
	Max            int64     `json:"max"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

// ManabarResult is the regenerated value at a point in time.
// Percentage is within [0,100]; CooldownSeconds is zero only when full.
type ManabarResult struct {
	Current         int64   `json:"current"`
	Max             int64   `json:"max"`
	Percentage      float64 `json:"percentage"`
	CooldownSeconds int64   `json:"cooldown_seconds"`
}

// Account holds the mana-relevant fields of a chain account.
type Account struct {
	Name            string
	VotingManabar   Manabar
	DownvoteManabar Manabar
	// EffectiveVests is expressed in micro-VESTS (the chain's integer unit).
	EffectiveVests int64
}

// RCAccount holds resource credit data for an account.
type RCAccount struct {
	Account   string
	RCManabar Manabar
	MaxRC     int64
}
