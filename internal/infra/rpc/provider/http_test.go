package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPProvider_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}

		if v, ok := req["jsonrpc"].(string); !ok || v != "2.0" {
			t.Errorf("expected jsonrpc: 2.0, got %v", req["jsonrpc"])
		}
		if req["method"] != "condenser_api.get_dynamic_global_properties" {
			t.Errorf("unexpected method %v", req["method"])
		}
		if _, ok := req["params"].([]any); !ok {
			t.Errorf("expected empty params array, got %v", req["params"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"result":  map[string]any{"head_block_number": 90000000},
			"id":      req["id"],
		})
	}))
	defer server.Close()

	p := NewHTTPProvider("mock", server.URL, 5*time.Second)
	defer p.Close()

	result, err := p.Call(context.Background(), "condenser_api.get_dynamic_global_properties", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var props struct {
		HeadBlockNumber uint64 `json:"head_block_number"`
	}
	if err := json.Unmarshal(result, &props); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if props.HeadBlockNumber != 90000000 {
		t.Errorf("expected head block 90000000, got %d", props.HeadBlockNumber)
	}
	if got := p.Monitor.Status(); got != StatusHealthy {
		t.Errorf("expected healthy monitor, got %s", got)
	}
}

func TestHTTPProvider_CallErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    ErrorKind
	}{
		{
			name: "rpc error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"method not found"},"id":1}`))
			},
			kind: KindRPC,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "slow down", http.StatusTooManyRequests)
			},
			kind: KindRateLimited,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			kind: KindHTTP,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>maintenance</html>`))
			},
			kind: KindMalformed,
		},
		{
			name: "mismatched id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"jsonrpc":"2.0","result":{"head_block_number":1},"id":999}`))
			},
			kind: KindMalformed,
		},
		{
			name: "missing result",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"jsonrpc":"2.0","id":1}`))
			},
			kind: KindMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			p := NewHTTPProvider("mock", server.URL, 5*time.Second)
			_, err := p.Call(context.Background(), "any_method", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := ClassifyError(err); got != tt.kind {
				t.Errorf("ClassifyError(%v) = %s, want %s", err, got, tt.kind)
			}
		})
	}
}

func TestHTTPProvider_CallTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := NewHTTPProvider("slow", server.URL, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Call(ctx, "any_method", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if got := ClassifyError(err); got != KindTimeout {
		t.Errorf("expected timeout kind, got %s", got)
	}
}

func TestHTTPProvider_BacksOffAfterThrottle(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "30")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewHTTPProvider("mock", server.URL, 5*time.Second)
	if _, err := p.Call(context.Background(), "any_method", nil); ClassifyError(err) != KindRateLimited {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if got := p.Monitor.Status(); got != StatusThrottled {
		t.Errorf("expected throttled, got %s", got)
	}
	if wait := p.Monitor.BackoffRemaining(); wait <= 25*time.Second || wait > 30*time.Second {
		t.Errorf("expected Retry-After backoff near 30s, got %v", wait)
	}

	_, err := p.Call(context.Background(), "any_method", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited during backoff, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected no request during backoff, got %d hits", hits.Load())
	}
}

func TestHTTPProvider_BatchCallKeepsRequestOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqs []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}
		// Reply in reverse order.
		out := make([]map[string]any, 0, len(reqs))
		for i := len(reqs) - 1; i >= 0; i-- {
			out = append(out, map[string]any{
				"jsonrpc": "2.0",
				"result":  reqs[i]["method"],
				"id":      reqs[i]["id"],
			})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer server.Close()

	p := NewHTTPProvider("mock", server.URL, 5*time.Second)
	responses, err := p.BatchCall(context.Background(), []BatchRequest{
		{Method: "first"},
		{Method: "second"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if string(responses[0].Result) != `"first"` || string(responses[1].Result) != `"second"` {
		t.Errorf("responses out of order: %s, %s", responses[0].Result, responses[1].Result)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorKind
	}{
		{nil, KindNone},
		{context.DeadlineExceeded, KindTimeout},
		{context.Canceled, KindCanceled},
		{ErrRateLimited, KindRateLimited},
		{&HTTPError{StatusCode: 403}, KindRateLimited},
		{&RPCError{Code: -32000, Message: "Rate limit exceeded"}, KindRateLimited},
		{&RPCError{Code: -32602, Message: "invalid params"}, KindRPC},
		{errors.New("connection reset by peer"), KindTransport},
		{errors.New("i/o timeout"), KindTimeout},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}
