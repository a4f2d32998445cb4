// Package control wires the runtime core into a long-running process.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/hivekit/internal/account"
	"github.com/vietddude/hivekit/internal/core/config"
	"github.com/vietddude/hivekit/internal/core/connection"
	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/core/store"
	"github.com/vietddude/hivekit/internal/feed"
	"github.com/vietddude/hivekit/internal/health"
	"github.com/vietddude/hivekit/internal/infra/chain/hive"
	redisclient "github.com/vietddude/hivekit/internal/infra/redis"
	rpchealth "github.com/vietddude/hivekit/internal/infra/rpc/health"
	"github.com/vietddude/hivekit/internal/transport/grpchealth"
)

// App owns the store and every component that projects it.
type App struct {
	cfg          *config.AppConfig
	store        *store.Store
	healthServer *health.Server
	grpcServer   *grpchealth.Server
	redisClient  *redisclient.Client
	cache        *stateCache
	poller       *account.Poller
	log          *slog.Logger
}

// NewApp creates an App with all dependencies initialized. Nothing runs until Start.
func NewApp(cfg *config.AppConfig) (*App, error) {
	s, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:          cfg,
		store:        s,
		healthServer: health.NewServer(s, cfg.Server.Port),
		log:          slog.Default().With("component", "app"),
	}

	if cfg.Server.GRPCPort > 0 {
		app.grpcServer = grpchealth.NewServer(s, cfg.Server.GRPCPort)
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, state cache disabled", "error", err)
		} else {
			app.redisClient = client
			app.cache = newStateCache(client)
		}
	}

	if len(cfg.Mana.Accounts) > 0 {
		app.poller = account.NewPoller(
			account.NewService(),
			QuerierSource(s),
			cfg.Mana.Accounts,
			cfg.Mana.RefreshInterval,
			app.logMana,
		)
	}

	return app, nil
}

// NewStore builds a store from configuration.
func NewStore(cfg *config.AppConfig) (*store.Store, error) {
	policy, err := cfg.Health.Policy()
	if err != nil {
		return nil, err
	}
	registry, err := connection.NewRegistry(cfg.Endpoints, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to init endpoint registry: %w", err)
	}
	return store.New(
		registry,
		rpchealth.NewChecker(registry.Policy().Timeout),
		hive.NewSessionFactory(hive.DefaultCallTimeout),
	), nil
}

// Store returns the application's store.
func (a *App) Store() *store.Store {
	return a.store
}

// NewPaginator creates a feed paginator reading from the store's live client.
func (a *App) NewPaginator(sort feed.Sort, tag string) (*feed.Paginator, error) {
	return feed.NewPaginator(FetcherSource(a.store), sort, tag, a.cfg.Feed.PageLimit)
}

// Start starts the store and all its projections.
func (a *App) Start(ctx context.Context) error {
	if a.cache != nil {
		if url, ok, err := a.redisClient.LastEndpoint(ctx); err != nil {
			a.log.Warn("Failed to read last endpoint", "error", err)
		} else if ok {
			a.log.Info("Preferring last used endpoint", "endpoint", url)
			a.store.SetPreferred(url)
		}
		a.cache.start(a.store)
	}

	if err := a.store.Start(ctx); err != nil {
		return err
	}

	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.grpcServer != nil {
		go func() {
			if err := a.grpcServer.Start(); err != nil {
				a.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	if a.poller != nil {
		a.log.Info("Starting mana poller", "accounts", len(a.cfg.Mana.Accounts))
		go a.poller.Run(ctx)
	}

	return nil
}

// Stop stops every component.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping hivekit...")

	if a.poller != nil {
		a.poller.Stop()
	}
	if a.grpcServer != nil {
		a.grpcServer.Stop()
	}

	var errs []error
	if err := a.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop health server: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}

	if a.cache != nil {
		a.cache.stop()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) logMana(result []account.Manabars, err error) {
	if err != nil {
		return
	}
	for _, m := range result {
		a.log.Info("Mana",
			"account", m.Username,
			"voting_pct", fmt.Sprintf("%.2f", m.Voting.Percentage),
			"voting_full_in", time.Duration(m.Voting.CooldownSeconds)*time.Second,
			"downvote_pct", fmt.Sprintf("%.2f", m.Downvote.Percentage),
			"rc_pct", fmt.Sprintf("%.2f", m.RC.Percentage),
		)
	}
}

// FetcherSource resolves the feed fetcher from the store's live client.
func FetcherSource(s *store.Store) feed.Source {
	return func() (feed.Fetcher, error) {
		c, err := clientFromStore(s)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// QuerierSource resolves the account querier from the store's live client.
func QuerierSource(s *store.Store) account.Source {
	return func() (account.Querier, error) {
		c, err := clientFromStore(s)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func clientFromStore(s *store.Store) (*hive.Client, error) {
	return hive.ClientFromState(s.GetState())
}

// stateCache writes published states to Redis off the publish path.
// Only the latest pending state is kept.
type stateCache struct {
	client      *redisclient.Client
	pending     chan domain.ConnectionState
	done        chan struct{}
	unsubscribe func()
	log         *slog.Logger
}

func newStateCache(client *redisclient.Client) *stateCache {
	return &stateCache{
		client:  client,
		pending: make(chan domain.ConnectionState, 1),
		done:    make(chan struct{}),
		log:     slog.Default().With("component", "state-cache"),
	}
}

func (c *stateCache) start(s *store.Store) {
	c.unsubscribe = s.Subscribe(c.offer)
	go c.run()
}

func (c *stateCache) offer(state domain.ConnectionState) {
	for {
		select {
		case c.pending <- state:
			return
		default:
		}
		select {
		case <-c.pending:
		default:
		}
	}
}

func (c *stateCache) run() {
	defer close(c.done)
	for state := range c.pending {
		c.write(state)
	}
}

func (c *stateCache) write(state domain.ConnectionState) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.SaveState(ctx, state); err != nil {
		c.log.Warn("Failed to cache state", "error", err)
	}
	if state.IsConnected() {
		if err := c.client.SetLastEndpoint(ctx, state.Endpoint); err != nil {
			c.log.Warn("Failed to cache last endpoint", "error", err)
		}
	}
}

// stop must be called after the store is closed.
func (c *stateCache) stop() {
	if c.unsubscribe == nil {
		return
	}
	c.unsubscribe()
	close(c.pending)
	<-c.done
}
