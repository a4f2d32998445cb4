package account

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/hivekit/internal/metrics"
)

// DefaultRefreshInterval is how often mana is refreshed.
const DefaultRefreshInterval = 60 * time.Second

// Source resolves the querier for the next poll, usually from the chain
// handle the store currently publishes.
type Source func() (Querier, error)

// Callback receives each poll outcome. err is non-nil when the poll failed.
// It must not call Stop.
type Callback func(result []Manabars, err error)

// Poller refreshes mana for a fixed set of accounts on an interval.
// Failures are reported to the callback and wait for the next tick.
type Poller struct {
	service   *Service
	source    Source
	usernames []string
	interval  time.Duration
	callback  Callback

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc

	log *slog.Logger
}

// NewPoller creates a poller. A non-positive interval selects DefaultRefreshInterval.
func NewPoller(service *Service, source Source, usernames []string, interval time.Duration, cb Callback) *Poller {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Poller{
		service:   service,
		source:    source,
		usernames: append([]string(nil), usernames...),
		interval:  interval,
		callback:  cb,
		log:       slog.Default().With("component", "mana-poller"),
	}
}

// Run polls immediately and then on every tick until ctx is done or Stop is called.
func (p *Poller) Run(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Stop ends Run. No callback fires after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Poller) poll(ctx context.Context) {
	result, err := p.fetch(ctx)

	// Held across the callback so Stop cannot return while one is running.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || ctx.Err() != nil {
		return
	}

	if err != nil {
		metrics.ManaPollsTotal.WithLabelValues("error").Inc()
		p.log.Warn("Mana refresh failed", "accounts", len(p.usernames), "error", err)
	} else {
		metrics.ManaPollsTotal.WithLabelValues("ok").Inc()
		p.log.Debug("Mana refreshed", "accounts", len(result))
	}
	p.callback(result, err)
}

func (p *Poller) fetch(ctx context.Context) ([]Manabars, error) {
	q, err := p.source()
	if err != nil {
		return nil, err
	}
	return p.service.Fetch(ctx, q, p.usernames)
}
