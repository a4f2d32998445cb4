package hive

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// chainTimeLayout is the timestamp format used by the node APIs (always UTC).
const chainTimeLayout = "2006-01-02T15:04:05"

// chainTime decodes node timestamps without a zone suffix.
type chainTime struct{ time.Time }

func (t *chainTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(chainTimeLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("parse chain time %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// flexInt decodes integers sent either as JSON numbers or as strings.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", s, err)
	}
	*n = flexInt(v)
	return nil
}

type rawManabar struct {
	CurrentMana    flexInt `json:"current_mana"`
	LastUpdateTime int64   `json:"last_update_time"`
}

type rawAccount struct {
	Name                   string     `json:"name"`
	VotingManabar          rawManabar `json:"voting_manabar"`
	DownvoteManabar        rawManabar `json:"downvote_manabar"`
	VestingShares          string     `json:"vesting_shares"`
	ReceivedVestingShares  string     `json:"received_vesting_shares"`
	DelegatedVestingShares string     `json:"delegated_vesting_shares"`
	VestingWithdrawRate    string     `json:"vesting_withdraw_rate"`
	ToWithdraw             flexInt    `json:"to_withdraw"`
	Withdrawn              flexInt    `json:"withdrawn"`
}

type rawRCAccount struct {
	Account   string     `json:"account"`
	RCManabar rawManabar `json:"rc_manabar"`
	MaxRC     flexInt    `json:"max_rc"`
}

type rawPost struct {
	Author             string    `json:"author"`
	Permlink           string    `json:"permlink"`
	Title              string    `json:"title"`
	Category           string    `json:"category"`
	Created            chainTime `json:"created"`
	PendingPayoutValue string    `json:"pending_payout_value"`
	Children           int       `json:"children"`
	URL                string    `json:"url"`
	Stats              struct {
		TotalVotes int `json:"total_votes"`
	} `json:"stats"`
}

// GlobalProperties is the subset of dynamic global properties used by the core.
type GlobalProperties struct {
	HeadBlockNumber uint64    `json:"head_block_number"`
	Time            chainTime `json:"time"`
}

// assetPrecision is the number of decimals of VESTS.
const assetPrecision = 6

// parseVests converts "1234.567890 VESTS" to integer micro-VESTS.
func parseVests(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	amount, symbol, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok || symbol != "VESTS" {
		return 0, fmt.Errorf("invalid VESTS asset %q", s)
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if len(frac) > assetPrecision {
		return 0, fmt.Errorf("invalid VESTS precision %q", s)
	}
	frac += strings.Repeat("0", assetPrecision-len(frac))

	v, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid VESTS amount %q: %w", s, err)
	}
	return v, nil
}
