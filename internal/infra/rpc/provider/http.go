package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/vietddude/hivekit/internal/metrics"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 16 << 20

// HTTPProvider implements Provider for JSON-RPC 2.0 over HTTP.
type HTTPProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64

	Monitor *Monitor
}

// NewHTTPProvider creates a new HTTP-based RPC provider.
// A zero timeout leaves deadlines to the caller's context.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Monitor: NewMonitor(),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      uint64 `json:"id"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call makes a single JSON-RPC call and returns the raw result.
func (p *HTTPProvider) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	start := time.Now()
	metrics.RPCCallsTotal.WithLabelValues(p.name, method).Inc()

	req := p.newRequest(method, params)
	body, err := p.post(ctx, req)
	if err != nil {
		return nil, p.fail(method, err)
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, p.fail(method, fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	if resp.Error != nil {
		return nil, p.fail(method, resp.Error)
	}
	if resp.ID != req.ID {
		return nil, p.fail(method, fmt.Errorf("%w: response id %d for request %d", ErrMalformedResponse, resp.ID, req.ID))
	}
	if len(resp.Result) == 0 {
		return nil, p.fail(method, fmt.Errorf("%w: missing result", ErrMalformedResponse))
	}

	p.succeed(method, time.Since(start))
	return resp.Result, nil
}

// BatchCall makes multiple RPC calls in one request.
// Responses are returned in request order regardless of the order the node replies in.
func (p *HTTPProvider) BatchCall(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	start := time.Now()
	const method = "batch"
	metrics.RPCCallsTotal.WithLabelValues(p.name, method).Inc()

	batch := make([]rpcRequest, len(requests))
	index := make(map[uint64]int, len(requests))
	for i, r := range requests {
		batch[i] = p.newRequest(r.Method, r.Params)
		index[batch[i].ID] = i
	}

	body, err := p.post(ctx, batch)
	if err != nil {
		return nil, p.fail(method, err)
	}

	var batchResp []rpcResponse
	if err := json.Unmarshal(body, &batchResp); err != nil {
		return nil, p.fail(method, fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}

	responses := make([]BatchResponse, len(requests))
	for i := range responses {
		responses[i].Error = fmt.Errorf("%w: no response for request", ErrMalformedResponse)
	}
	for _, r := range batchResp {
		i, ok := index[r.ID]
		if !ok {
			continue
		}
		if r.Error != nil {
			responses[i] = BatchResponse{Error: r.Error}
		} else {
			responses[i] = BatchResponse{Result: r.Result}
		}
	}

	p.succeed(method, time.Since(start))
	return responses, nil
}

func (p *HTTPProvider) newRequest(method string, params any) rpcRequest {
	if params == nil {
		params = []any{}
	}
	return rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      p.nextID.Add(1),
	}
}

// post sends payload unless the endpoint asked us to back off.
func (p *HTTPProvider) post(ctx context.Context, payload any) ([]byte, error) {
	if wait := p.Monitor.BackoffRemaining(); wait > 0 {
		return nil, fmt.Errorf("%w: %s for another %s", ErrRateLimited, p.Monitor.Status(), wait.Round(time.Second))
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		p.Monitor.RecordThrottle(resp.StatusCode, retryAfter(resp.Header.Get("Retry-After")))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	return body, nil
}

func (p *HTTPProvider) fail(method string, err error) error {
	metrics.RPCErrorsTotal.WithLabelValues(p.name, method, string(ClassifyError(err))).Inc()
	return err
}

func (p *HTTPProvider) succeed(method string, latency time.Duration) {
	metrics.RPCLatency.WithLabelValues(p.name, method).Observe(latency.Seconds())
	p.Monitor.RecordRequest(latency)
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// retryAfter parses a Retry-After header given in seconds.
// HTTP-date values fall back to the default backoff.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
