package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/hivekit/internal/core/domain"
)

// StateSnapshot is the cached summary of a published connection state.
type StateSnapshot struct {
	Status    domain.Status `json:"status"`
	Endpoint  string        `json:"endpoint,omitempty"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SaveState caches state: the summary under one key and every endpoint
// status as a hash field keyed by URL.
func (c *Client) SaveState(ctx context.Context, state domain.ConnectionState) error {
	summary, err := json.Marshal(StateSnapshot{
		Status:    state.Status,
		Endpoint:  state.Endpoint,
		Error:     state.Error,
		UpdatedAt: state.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	fields := make(map[string]any, len(state.Endpoints))
	for _, ep := range state.Endpoints {
		data, err := json.Marshal(ep)
		if err != nil {
			return fmt.Errorf("failed to marshal endpoint %s: %w", ep.URL, err)
		}
		fields[ep.URL] = data
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, stateKey(c.prefix), summary, c.ttl)
		pipe.Del(ctx, endpointsKey(c.prefix))
		if len(fields) > 0 {
			pipe.HSet(ctx, endpointsKey(c.prefix), fields)
			if c.ttl > 0 {
				pipe.Expire(ctx, endpointsKey(c.prefix), c.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// LoadState reads the cached state. found is false when nothing is cached.
// Endpoints are returned in no particular order.
func (c *Client) LoadState(ctx context.Context) (snap StateSnapshot, endpoints []domain.EndpointStatus, found bool, err error) {
	data, err := c.rdb.Get(ctx, stateKey(c.prefix)).Bytes()
	if err == redis.Nil {
		return StateSnapshot{}, nil, false, nil
	}
	if err != nil {
		return StateSnapshot{}, nil, false, fmt.Errorf("failed to get state: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return StateSnapshot{}, nil, false, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	raw, err := c.rdb.HGetAll(ctx, endpointsKey(c.prefix)).Result()
	if err != nil {
		return StateSnapshot{}, nil, false, fmt.Errorf("failed to get endpoints: %w", err)
	}
	endpoints = make([]domain.EndpointStatus, 0, len(raw))
	for url, v := range raw {
		var ep domain.EndpointStatus
		if err := json.Unmarshal([]byte(v), &ep); err != nil {
			return StateSnapshot{}, nil, false, fmt.Errorf("failed to unmarshal endpoint %s: %w", url, err)
		}
		endpoints = append(endpoints, ep)
	}
	return snap, endpoints, true, nil
}
