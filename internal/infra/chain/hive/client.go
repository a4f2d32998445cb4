// Package hive implements the chain handle used to query a Hive API node.
package hive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/infra/rpc/provider"
)

// ErrNotConnected is returned when no live chain handle is available.
var ErrNotConnected = errors.New("not connected to any endpoint")

// Client is a chain handle bound to a single endpoint.
type Client struct {
	endpoint string
	rpc      provider.Provider
}

// NewClient creates a client for endpoint. timeout bounds each call.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		rpc:      provider.NewHTTPProvider(endpoint, endpoint, timeout),
	}
}

// ClientFromState returns the live client published in state.
func ClientFromState(state domain.ConnectionState) (*Client, error) {
	if !state.IsConnected() {
		return nil, ErrNotConnected
	}
	c, ok := state.ChainHandle.(*Client)
	if !ok {
		return nil, fmt.Errorf("unexpected chain handle %T", state.ChainHandle)
	}
	return c, nil
}

// Endpoint returns the URL this client is bound to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close releases the client's connections.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// Call invokes method and decodes the result into out.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	raw, err := c.rpc.Call(ctx, method, params)
	if err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w: %v", method, provider.ErrMalformedResponse, err)
	}
	return nil
}

// GetDynamicGlobalProperties returns the current head block and chain time.
func (c *Client) GetDynamicGlobalProperties(ctx context.Context) (*GlobalProperties, error) {
	var props GlobalProperties
	if err := c.Call(ctx, "condenser_api.get_dynamic_global_properties", []any{}, &props); err != nil {
		return nil, err
	}
	return &props, nil
}

// RankedPostsQuery is the input of bridge.get_ranked_posts.
// StartAuthor and StartPermlink are omitted for the first page.
type RankedPostsQuery struct {
	Sort          string
	Tag           string
	Observer      string
	StartAuthor   string
	StartPermlink string
	Limit         int
}

func (q RankedPostsQuery) params() map[string]any {
	params := map[string]any{
		"sort":  q.Sort,
		"limit": q.Limit,
	}
	if q.Tag != "" {
		params["tag"] = q.Tag
	}
	if q.Observer != "" {
		params["observer"] = q.Observer
	}
	if q.StartAuthor != "" && q.StartPermlink != "" {
		params["start_author"] = q.StartAuthor
		params["start_permlink"] = q.StartPermlink
	}
	return params
}

// GetRankedPosts fetches one page of a ranked feed.
func (c *Client) GetRankedPosts(ctx context.Context, q RankedPostsQuery) ([]domain.Post, error) {
	var raw []rawPost
	if err := c.Call(ctx, "bridge.get_ranked_posts", q.params(), &raw); err != nil {
		return nil, err
	}

	posts := make([]domain.Post, len(raw))
	for i, p := range raw {
		posts[i] = domain.Post{
			Author:      p.Author,
			Permlink:    p.Permlink,
			Title:       p.Title,
			Category:    p.Category,
			Created:     p.Created.Time,
			PayoutValue: p.PendingPayoutValue,
			Children:    p.Children,
			NetVotes:    p.Stats.TotalVotes,
			URL:         p.URL,
		}
	}
	return posts, nil
}

const (
	getAccountsMethod    = "condenser_api.get_accounts"
	findRCAccountsMethod = "rc_api.find_rc_accounts"
)

// GetManaAccounts fetches accounts and their resource credits in one batch
// request. Names unknown to the node are omitted from both results.
func (c *Client) GetManaAccounts(ctx context.Context, names []string) ([]domain.Account, []domain.RCAccount, error) {
	if len(names) == 0 {
		return nil, nil, nil
	}

	responses, err := c.rpc.BatchCall(ctx, []provider.BatchRequest{
		{Method: getAccountsMethod, Params: []any{names}},
		{Method: findRCAccountsMethod, Params: map[string]any{"accounts": names}},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("account batch failed: %w", err)
	}
	if len(responses) != 2 {
		return nil, nil, fmt.Errorf("account batch: %w: got %d responses", provider.ErrMalformedResponse, len(responses))
	}

	accounts, err := decodeAccounts(responses[0])
	if err != nil {
		return nil, nil, err
	}
	rcs, err := decodeRCAccounts(responses[1])
	if err != nil {
		return nil, nil, err
	}
	return accounts, rcs, nil
}

func decodeAccounts(resp provider.BatchResponse) ([]domain.Account, error) {
	if resp.Error != nil {
		return nil, fmt.Errorf("%s failed: %w", getAccountsMethod, resp.Error)
	}

	var raw []rawAccount
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", getAccountsMethod, provider.ErrMalformedResponse, err)
	}

	accounts := make([]domain.Account, 0, len(raw))
	for _, a := range raw {
		vests, err := effectiveVests(a)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", a.Name, err)
		}
		accounts = append(accounts, domain.Account{
			Name:            a.Name,
			VotingManabar:   a.VotingManabar.toDomain(),
			DownvoteManabar: a.DownvoteManabar.toDomain(),
			EffectiveVests:  vests,
		})
	}
	return accounts, nil
}

func decodeRCAccounts(resp provider.BatchResponse) ([]domain.RCAccount, error) {
	if resp.Error != nil {
		return nil, fmt.Errorf("%s failed: %w", findRCAccountsMethod, resp.Error)
	}

	var raw struct {
		RCAccounts []rawRCAccount `json:"rc_accounts"`
	}
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", findRCAccountsMethod, provider.ErrMalformedResponse, err)
	}

	out := make([]domain.RCAccount, len(raw.RCAccounts))
	for i, a := range raw.RCAccounts {
		out[i] = domain.RCAccount{
			Account:   a.Account,
			RCManabar: a.RCManabar.toDomain(),
			MaxRC:     int64(a.MaxRC),
		}
	}
	return out, nil
}

func (m rawManabar) toDomain() domain.Manabar {
	return domain.Manabar{
		CurrentMana:    int64(m.CurrentMana),
		LastUpdateTime: time.Unix(m.LastUpdateTime, 0).UTC(),
	}
}

// effectiveVests is own + received - delegated - the pending power-down step.
func effectiveVests(a rawAccount) (int64, error) {
	own, err := parseVests(a.VestingShares)
	if err != nil {
		return 0, err
	}
	received, err := parseVests(a.ReceivedVestingShares)
	if err != nil {
		return 0, err
	}
	delegated, err := parseVests(a.DelegatedVestingShares)
	if err != nil {
		return 0, err
	}
	rate, err := parseVests(a.VestingWithdrawRate)
	if err != nil {
		return 0, err
	}

	withdrawing := min(rate, int64(a.ToWithdraw)-int64(a.Withdrawn))
	withdrawing = max(withdrawing, 0)

	return max(own+received-delegated-withdrawing, 0), nil
}
