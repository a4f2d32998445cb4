package store

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/hivekit/internal/core/domain"
)

// Start runs an initial sweep and then sweeps periodically until ctx is
// done or the store is closed. The policy's ReconnectInterval is used
// while reconnecting. ERROR and DISCONNECTED are left alone until
// RefreshEndpoints is called.
func (s *Store) Start(ctx context.Context) error {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	if s.closedFlag.Load() {
		return ErrStoreClosed
	}
	if s.loopCancel != nil {
		return errors.New("store already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.loopCancel = cancel
	s.loopDone = make(chan struct{})

	go s.run(ctx, s.loopDone)
	return nil
}

func (s *Store) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.log.Info("Starting endpoint sweeps", "interval", s.registry.Policy().Interval)
	s.runSweep(ctx)

	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			switch s.machine.Status() {
			case domain.StatusError, domain.StatusDisconnected:
				s.log.Debug("Skipping sweep until refresh", "status", s.machine.Status())
			default:
				s.runSweep(ctx)
			}
			timer.Reset(s.nextDelay())
		}
	}
}

func (s *Store) runSweep(ctx context.Context) {
	err := s.sweep(ctx)
	switch {
	case err == nil, errors.Is(err, ErrSweepSuperseded):
	case errors.Is(err, context.Canceled), errors.Is(err, ErrStoreClosed):
	default:
		s.log.Warn("Sweep failed", "error", err)
	}
}

func (s *Store) nextDelay() time.Duration {
	policy := s.registry.Policy()
	if s.machine.Status() == domain.StatusReconnecting && policy.ReconnectInterval > 0 {
		return policy.ReconnectInterval
	}
	return policy.Interval
}

func (s *Store) stopLoop() {
	s.loopMu.Lock()
	cancel, done := s.loopCancel, s.loopDone
	s.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
