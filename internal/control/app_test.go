package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/hivekit/internal/core/config"
	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/feed"
	"github.com/vietddude/hivekit/internal/infra/chain/hive"
	"github.com/vietddude/hivekit/internal/metrics"
)

// newHiveNode serves the probe and a short ranked feed.
func newHiveNode(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			ID     any    `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result any
		switch req.Method {
		case "condenser_api.get_dynamic_global_properties":
			result = map[string]any{"head_block_number": 91000000, "time": "2024-05-01T12:00:00"}
		case "bridge.get_ranked_posts":
			result = []map[string]any{
				{"author": "alice", "permlink": "one", "created": "2024-05-01T10:00:00"},
				{"author": "bob", "permlink": "two", "created": "2024-05-01T11:00:00"},
			}
		default:
			w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"unknown method"},"id":1}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "result": result, "id": req.ID})
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(endpoints ...string) *config.AppConfig {
	cfg := &config.AppConfig{Endpoints: endpoints}
	cfg.ApplyDefaults()
	cfg.Health.Timeout = time.Second
	return cfg
}

func waitConnected(t *testing.T, app *App) domain.ConnectionState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st := app.Store().GetState(); st.IsConnected() {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("store never connected: %+v", app.Store().GetState())
	return domain.ConnectionState{}
}

func TestApp_Lifecycle(t *testing.T) {
	node := newHiveNode(t)
	app, err := NewApp(testConfig("http://127.0.0.1:1", node.URL))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	st := waitConnected(t, app)
	if st.Endpoint != node.URL {
		t.Errorf("expected %s, got %s", node.URL, st.Endpoint)
	}
	if st.Endpoints[0].Healthy || st.Endpoints[0].LastError == "" {
		t.Errorf("expected first endpoint to be unhealthy with an error, got %+v", st.Endpoints[0])
	}

	p, err := app.NewPaginator(feed.SortTrending, "")
	if err != nil {
		t.Fatalf("NewPaginator failed: %v", err)
	}
	if err := p.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	page, _ := p.CurrentPage()
	if len(page.Posts) != 2 || p.HasNext() {
		t.Errorf("unexpected page %+v", page)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestSources_NotConnected(t *testing.T) {
	s, err := NewStore(testConfig("http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	if _, err := FetcherSource(s)(); !errors.Is(err, hive.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if _, err := QuerierSource(s)(); !errors.Is(err, hive.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestStore_SetEndpointsForgetsRemovedNode(t *testing.T) {
	first := newHiveNode(t)
	second := newHiveNode(t)

	s, err := NewStore(testConfig(first.URL))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.RefreshEndpoints(ctx); err != nil {
		t.Fatalf("RefreshEndpoints failed: %v", err)
	}
	if st := s.GetState(); st.Endpoint != first.URL {
		t.Fatalf("expected %s, got %+v", first.URL, st)
	}

	if err := s.SetEndpoints(ctx, []string{second.URL}); err != nil {
		t.Fatalf("SetEndpoints failed: %v", err)
	}
	st := s.GetState()
	if st.Endpoint != second.URL || len(st.Endpoints) != 1 {
		t.Errorf("expected only %s, got %+v", second.URL, st)
	}
	if metrics.EndpointHealthy.DeleteLabelValues(first.URL) {
		t.Errorf("removed endpoint %s still exported as a health series", first.URL)
	}
}

func TestNewStore_InvalidEndpoint(t *testing.T) {
	if _, err := NewStore(testConfig("ftp://node")); err == nil {
		t.Error("expected error for invalid endpoint")
	}
}
