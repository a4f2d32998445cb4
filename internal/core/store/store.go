// Package store owns the published connection state.
//
// The Store is the only writer of domain.ConnectionState. It runs health
// sweeps, feeds the results through the connection machine, swaps chain
// handles when the active endpoint changes, and publishes immutable
// snapshots to subscribers.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/hivekit/internal/core/connection"
	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/metrics"
)

var (
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store closed")
	// ErrSweepSuperseded is returned when a sweep's results were dropped
	// because a newer sweep published first or the endpoint list changed.
	ErrSweepSuperseded = errors.New("sweep superseded")
)

// Checker probes endpoints. *health.Checker implements it.
type Checker interface {
	ProbeAll(ctx context.Context, endpoints []domain.EndpointStatus) []domain.EndpointStatus
	Close() error
}

// SessionFactory builds and disposes chain handles. *hive.SessionFactory implements it.
type SessionFactory interface {
	Build(endpoint string) domain.ChainHandle
	Dispose(handle domain.ChainHandle)
}

// Listener receives every published state. Listeners run synchronously in
// subscription order and must not call RefreshEndpoints or SetEndpoints.
type Listener func(state domain.ConnectionState)

type subscription struct {
	id uuid.UUID
	fn Listener
}

// Store publishes connection state.
type Store struct {
	registry *connection.Registry
	machine  *connection.Machine
	checker  Checker
	sessions SessionFactory
	now      func() time.Time

	state atomic.Pointer[domain.ConnectionState]

	sweepSeq   atomic.Uint64
	closedFlag atomic.Bool

	// publishMu serializes sweep commits and publishes.
	publishMu    sync.Mutex
	committedSeq uint64
	handle       domain.ChainHandle
	closed       bool

	subsMu        sync.Mutex
	subscriptions []subscription

	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	closeOnce  sync.Once

	log *slog.Logger
}

// New creates a store in CONNECTING. Nothing is probed until Start or RefreshEndpoints.
func New(registry *connection.Registry, checker Checker, sessions SessionFactory) *Store {
	policy := registry.Policy()

	s := &Store{
		registry: registry,
		machine:  connection.NewMachine(connection.NewSelector(policy.Selection), policy.MaxConsecutiveFailures),
		checker:  checker,
		sessions: sessions,
		now:      time.Now,
		log:      slog.Default().With("component", "store"),
	}

	urls, _ := registry.Snapshot()
	initial := domain.ConnectionState{
		Status:    domain.StatusConnecting,
		Endpoints: domain.NewEndpointStatuses(urls),
		UpdatedAt: s.now(),
	}
	s.state.Store(&initial)
	metrics.SetConnectionStatus(string(initial.Status), statusLabels())
	return s
}

// GetState returns a copy of the current state.
func (s *Store) GetState() domain.ConnectionState {
	return s.state.Load().Clone()
}

// Subscribe registers fn for every future publish. The returned function
// unsubscribes and may be called any number of times.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	id := uuid.New()

	s.subsMu.Lock()
	s.subscriptions = append(s.subscriptions, subscription{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subscriptions {
				if sub.id == id {
					s.subscriptions = append(s.subscriptions[:i:i], s.subscriptions[i+1:]...)
					return
				}
			}
		})
	}
}

// SetPreferred seeds the endpoint the selection policy should favour,
// typically the last endpoint used before a restart.
func (s *Store) SetPreferred(url string) {
	s.machine.SetPreferred(url)
}

// History returns recent connection transitions, oldest first.
func (s *Store) History() []connection.Transition {
	return s.machine.History()
}

// Registry returns the endpoint registry the store sweeps.
func (s *Store) Registry() *connection.Registry {
	return s.registry
}

// RefreshEndpoints runs a sweep now. From ERROR or DISCONNECTED it first
// publishes CONNECTING.
func (s *Store) RefreshEndpoints(ctx context.Context) error {
	if err := s.retry("manual refresh"); err != nil {
		return err
	}
	return s.sweep(ctx)
}

// SetEndpoints replaces the candidate endpoints and sweeps them.
// Sweeps in flight against the old list are dropped.
func (s *Store) SetEndpoints(ctx context.Context, urls []string) error {
	if s.closedFlag.Load() {
		return ErrStoreClosed
	}
	if err := s.registry.Replace(urls); err != nil {
		return err
	}
	s.log.Info("Endpoints replaced", "count", len(urls), "version", s.registry.Version())
	return s.RefreshEndpoints(ctx)
}

// retry re-enters CONNECTING if the machine is parked in a terminal state.
func (s *Store) retry(reason string) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	status := s.machine.Status()
	if status != domain.StatusError && status != domain.StatusDisconnected {
		return nil
	}
	if _, err := s.machine.Retry(reason); err != nil {
		return err
	}

	current := s.state.Load()
	s.publishLocked(domain.ConnectionState{
		Status:    domain.StatusConnecting,
		Endpoints: current.Endpoints,
		UpdatedAt: s.now(),
	})
	return nil
}

// sweep probes the registry and commits the result unless a newer sweep
// or an endpoint change got there first.
func (s *Store) sweep(ctx context.Context) error {
	if s.closedFlag.Load() {
		return ErrStoreClosed
	}

	seq := s.sweepSeq.Add(1)
	urls, version := s.registry.Snapshot()
	input := s.carryOver(urls)

	started := s.now()
	results := s.checker.ProbeAll(ctx, input)

	if err := ctx.Err(); err != nil {
		metrics.SweepsTotal.WithLabelValues("canceled").Inc()
		return err
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if s.closed {
		metrics.SweepsTotal.WithLabelValues("closed").Inc()
		return ErrStoreClosed
	}
	if seq < s.committedSeq || s.registry.Version() != version {
		metrics.SweepsTotal.WithLabelValues("superseded").Inc()
		s.log.Debug("Dropping superseded sweep", "sweep", seq, "committed", s.committedSeq)
		return ErrSweepSuperseded
	}
	s.committedSeq = seq

	outcome := s.machine.Evaluate(results)
	if failedOver(outcome) {
		// Subscribers see the lost endpoint before the replacement.
		s.swapHandle(connection.Outcome{Status: domain.StatusReconnecting})
		s.publishLocked(domain.ConnectionState{
			Status:    domain.StatusReconnecting,
			Endpoints: results,
			UpdatedAt: s.now(),
		})
	}
	handle := s.swapHandle(outcome)

	s.publishLocked(domain.ConnectionState{
		Status:      outcome.Status,
		Endpoint:    outcome.Endpoint,
		Endpoints:   results,
		ChainHandle: handle,
		Error:       outcome.Error,
		UpdatedAt:   s.now(),
	})

	metrics.SweepsTotal.WithLabelValues("ok").Inc()
	s.log.Debug("Sweep complete",
		"sweep", seq,
		"status", outcome.Status,
		"endpoint", outcome.Endpoint,
		"healthy", countHealthy(results),
		"total", len(results),
		"duration", s.now().Sub(started),
	)
	return nil
}

// carryOver builds the sweep input, keeping previous results for known URLs.
func (s *Store) carryOver(urls []string) []domain.EndpointStatus {
	previous := make(map[string]domain.EndpointStatus)
	for _, ep := range s.state.Load().Endpoints {
		previous[ep.URL] = ep
	}

	out := make([]domain.EndpointStatus, len(urls))
	for i, url := range urls {
		if ep, ok := previous[url]; ok {
			out[i] = ep.Clone()
			continue
		}
		out[i] = domain.EndpointStatus{URL: url}
	}
	return out
}

// swapHandle keeps one live handle for the active endpoint. Caller holds publishMu.
func (s *Store) swapHandle(outcome connection.Outcome) domain.ChainHandle {
	if outcome.Status != domain.StatusConnected || outcome.Endpoint == "" {
		if s.handle != nil {
			s.sessions.Dispose(s.handle)
			s.handle = nil
		}
		return nil
	}

	if s.handle != nil && s.handle.Endpoint() == outcome.Endpoint {
		return s.handle
	}
	if s.handle != nil {
		s.sessions.Dispose(s.handle)
	}
	s.handle = s.sessions.Build(outcome.Endpoint)
	return s.handle
}

// publishLocked swaps in next and notifies subscribers. Caller holds publishMu.
func (s *Store) publishLocked(next domain.ConnectionState) {
	if s.closed {
		return
	}
	if next.Status != domain.StatusConnected {
		next.Endpoint = ""
		next.ChainHandle = nil
	}

	prev := s.state.Load()
	s.state.Store(&next)

	if prev.Status != next.Status {
		metrics.SetConnectionStatus(string(next.Status), statusLabels())
	}

	s.subsMu.Lock()
	subs := make([]subscription, len(s.subscriptions))
	copy(subs, s.subscriptions)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(next.Clone())
	}
}

// Close stops the sweep loop, disposes the live handle and closes the checker.
// No state is published after Close returns.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.publishMu.Lock()
		s.closed = true
		s.closedFlag.Store(true)
		if s.handle != nil {
			s.sessions.Dispose(s.handle)
			s.handle = nil
		}
		s.publishMu.Unlock()

		s.stopLoop()

		if cerr := s.checker.Close(); cerr != nil {
			err = fmt.Errorf("close checker: %w", cerr)
		}
		s.log.Info("Store closed")
	})
	return err
}

// failedOver reports a sweep that lost the active endpoint and connected
// to another one in the same pass.
func failedOver(outcome connection.Outcome) bool {
	return outcome.Status == domain.StatusConnected &&
		len(outcome.Transitions) > 1 &&
		outcome.Transitions[0].To == domain.StatusReconnecting
}

func countHealthy(endpoints []domain.EndpointStatus) int {
	n := 0
	for _, ep := range endpoints {
		if ep.Healthy {
			n++
		}
	}
	return n
}

func statusLabels() []string {
	out := make([]string, len(connection.AllStates))
	for i, st := range connection.AllStates {
		out[i] = string(st)
	}
	return out
}
